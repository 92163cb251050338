package acquiring

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxDescriptionLength = 140
	maxDataEntries       = 20
	maxDataKeyLength     = 20
	maxDataValueLength   = 100
	maxContactLength     = 64
	maxItemNameLength    = 128
	maxPaymentIDLength   = 20
	maxRedirectDueDays   = 90

	defaultTaxation = "osn"
	defaultItemTax  = "vat20"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	payTypes       = set("O", "T")
	languages      = set("ru", "en")
	initiatorTypes = set("0", "1", "2", "R", "I")
	taxations      = set("osn", "usn_income", "usn_income_outcome", "envd", "esn", "patent")
	itemTaxes      = set("none", "vat0", "vat10", "vat20", "vat110", "vat120")
	ffdVersions    = set("1.05", "1.2")
	hundred        = decimal.NewFromInt(100)
)

// ValidationError names the rule a request broke. It is returned before
// anything is signed or sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NormalizeInit validates req and returns the wire form of the Init call.
// The caller's Receipt is copied, never modified.
func NormalizeInit(req PaymentRequest, now time.Time) (*InitRequest, error) {
	if req.OrderID == "" {
		return nil, invalid("OrderId", "OrderId is required")
	}

	amount, err := toMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	out := &InitRequest{
		Amount:          amount,
		OrderID:         req.OrderID,
		Description:     truncate(req.Description, maxDescriptionLength),
		CustomerKey:     req.CustomerKey,
		Recurrent:       req.Recurrent,
		PayType:         req.PayType,
		Language:        req.Language,
		NotificationURL: req.NotificationURL,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		RedirectDueDate: req.RedirectDueDate,
	}

	if req.Recurrent == "Y" && req.CustomerKey == "" && req.Data["QR"] != "true" {
		return nil, invalid("CustomerKey", "CustomerKey is required when Recurrent is Y")
	}

	if req.PayType != "" && !payTypes[req.PayType] {
		return nil, invalid("PayType", "PayType must be 'O' (one-stage) or 'T' (two-stage)")
	}

	if req.Language != "" && !languages[req.Language] {
		return nil, invalid("Language", "Language must be 'ru' or 'en'")
	}

	if req.RedirectDueDate != "" {
		if err := validateRedirectDueDate(req.RedirectDueDate, now); err != nil {
			return nil, err
		}
	}

	if req.Data != nil {
		if err := validateData(req.Data); err != nil {
			return nil, err
		}
		out.Data = make(map[string]string, len(req.Data))
		for k, v := range req.Data {
			out.Data[k] = v
		}
	}

	if req.Receipt != nil {
		receipt := copyReceipt(req.Receipt)
		if err := normalizeReceipt(receipt, amount); err != nil {
			return nil, err
		}
		out.Receipt = receipt
	}

	return out, nil
}

// toMinorUnits keeps integral amounts as they are (already minor units) and
// converts fractional ones from major units.
func toMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, invalid("Amount", "Amount is required and must be positive")
	}
	if amount.Equal(amount.Truncate(0)) {
		return amount.IntPart(), nil
	}
	return amount.Mul(hundred).Round(0).IntPart(), nil
}

// parseDueDate accepts a full RFC 3339 timestamp or a bare date, which is
// taken as midnight UTC.
func parseDueDate(value string) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, value); err == nil {
		return due, nil
	}
	return time.Parse(time.DateOnly, value)
}

func validateRedirectDueDate(value string, now time.Time) error {
	due, err := parseDueDate(value)
	if err != nil {
		return invalid("RedirectDueDate", "Invalid RedirectDueDate format, use ISO 8601 (YYYY-MM-DDTHH:MM:SS+TZ)")
	}
	if due.Before(now) {
		return invalid("RedirectDueDate", "RedirectDueDate must be in the future")
	}
	if due.After(now.AddDate(0, 0, maxRedirectDueDays)) {
		return invalid("RedirectDueDate", "RedirectDueDate cannot be more than %d days in the future", maxRedirectDueDays)
	}
	return nil
}

func validateData(data map[string]string) error {
	if len(data) > maxDataEntries {
		return invalid("DATA", "DATA cannot have more than %d key-value pairs", maxDataEntries)
	}
	for key, value := range data {
		if utf8.RuneCountInString(key) > maxDataKeyLength {
			return invalid("DATA", "DATA key '%s' exceeds maximum length of %d characters", key, maxDataKeyLength)
		}
		if utf8.RuneCountInString(value) > maxDataValueLength {
			return invalid("DATA", "DATA value for key '%s' exceeds maximum length of %d characters", key, maxDataValueLength)
		}
	}
	if initType, ok := data["InitType"]; ok && !initiatorTypes[initType] {
		return invalid("DATA.InitType", "InitType must be one of: '0', '1', '2', 'R', 'I'")
	}
	return nil
}

func normalizeReceipt(r *Receipt, total int64) error {
	if r.Email == "" && r.Phone == "" {
		return invalid("Receipt", "Receipt must contain either Email or Phone")
	}
	if r.Email != "" {
		if utf8.RuneCountInString(r.Email) > maxContactLength {
			return invalid("Receipt.Email", "Receipt Email cannot exceed %d characters", maxContactLength)
		}
		if !emailPattern.MatchString(r.Email) {
			return invalid("Receipt.Email", "Invalid Receipt Email format")
		}
	}
	if r.Phone != "" && utf8.RuneCountInString(r.Phone) > maxContactLength {
		return invalid("Receipt.Phone", "Receipt Phone cannot exceed %d characters", maxContactLength)
	}

	if r.Taxation == "" {
		r.Taxation = defaultTaxation
	} else if !taxations[r.Taxation] {
		return invalid("Receipt.Taxation", "Invalid Taxation value '%s'", r.Taxation)
	}

	if r.FfdVersion != "" && !ffdVersions[r.FfdVersion] {
		return invalid("Receipt.FfdVersion", "FfdVersion must be '1.05' or '1.2'")
	}

	if len(r.Items) == 0 {
		return invalid("Receipt.Items", "Receipt.Items must be a non-empty array")
	}

	var itemsTotal int64
	for i := range r.Items {
		item := &r.Items[i]
		if item.Name == "" {
			return invalid("Receipt.Items", "Item %d must have a Name", i)
		}
		if utf8.RuneCountInString(item.Name) > maxItemNameLength {
			return invalid("Receipt.Items", "Item %d Name cannot exceed %d characters", i, maxItemNameLength)
		}
		if item.Price <= 0 {
			return invalid("Receipt.Items", "Item %d must have a valid Price", i)
		}
		if !(item.Quantity > 0) {
			return invalid("Receipt.Items", "Item %d must have a valid Quantity", i)
		}
		if item.Amount == 0 {
			item.Amount = decimal.NewFromInt(item.Price).Mul(decimal.NewFromFloat(item.Quantity)).Round(0).IntPart()
		}
		if item.Tax == "" {
			item.Tax = defaultItemTax
		} else if !itemTaxes[item.Tax] {
			return invalid("Receipt.Items", "Item %d has invalid Tax value '%s'", i, item.Tax)
		}
		itemsTotal += item.Amount
	}

	if itemsTotal != total {
		return invalid("Receipt.Items", "Total amount (%d) doesn't match sum of item amounts (%d)", total, itemsTotal)
	}

	if p := r.Payments; p != nil {
		if p.Electronic == 0 {
			return invalid("Receipt.Payments", "Electronic payment amount is required in Receipt.Payments")
		}
		if p.Total() != total {
			return invalid("Receipt.Payments", "Total payments (%d) doesn't match total amount (%d)", p.Total(), total)
		}
		if p.Electronic != total {
			return invalid("Receipt.Payments", "Electronic payment (%d) must equal total amount (%d)", p.Electronic, total)
		}
	}

	if len(r.Shops) > 0 {
		var shopsTotal int64
		for i, shop := range r.Shops {
			if shop.ShopCode == "" {
				return invalid("Receipt.Shops", "Shop %d must have a ShopCode", i)
			}
			if shop.Amount <= 0 {
				return invalid("Receipt.Shops", "Shop %d must have a valid Amount", i)
			}
			shopsTotal += shop.Amount
		}
		if shopsTotal != total {
			return invalid("Receipt.Shops", "Total shops amount (%d) doesn't match total amount (%d)", shopsTotal, total)
		}
	}

	return nil
}

func copyReceipt(r *Receipt) *Receipt {
	cp := *r
	cp.Items = append([]ReceiptItem(nil), r.Items...)
	cp.Shops = append([]Shop(nil), r.Shops...)
	if r.Payments != nil {
		payments := *r.Payments
		cp.Payments = &payments
	}
	return &cp
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
