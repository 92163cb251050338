package acquiring

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentRequest is what callers hand to Init. Amount may be given either in
// minor units (integral value) or in major units with a fractional part, in
// which case it is converted by NormalizeInit.
type PaymentRequest struct {
	OrderID         string
	Amount          decimal.Decimal
	Description     string
	CustomerKey     string
	Recurrent       string
	PayType         string
	Language        string
	NotificationURL string
	SuccessURL      string
	FailURL         string
	RedirectDueDate string
	Data            map[string]string
	Receipt         *Receipt
}

// InitRequest is the validated Init body as it travels to the gateway.
type InitRequest struct {
	Amount          int64             `json:"Amount"`
	OrderID         string            `json:"OrderId"`
	Description     string            `json:"Description,omitempty"`
	CustomerKey     string            `json:"CustomerKey,omitempty"`
	Recurrent       string            `json:"Recurrent,omitempty"`
	PayType         string            `json:"PayType,omitempty"`
	Language        string            `json:"Language,omitempty"`
	NotificationURL string            `json:"NotificationURL,omitempty"`
	SuccessURL      string            `json:"SuccessURL,omitempty"`
	FailURL         string            `json:"FailURL,omitempty"`
	RedirectDueDate string            `json:"RedirectDueDate,omitempty"`
	Data            map[string]string `json:"DATA,omitempty"`
	Receipt         *Receipt          `json:"Receipt,omitempty"`
}

// Receipt is the fiscal line-item structure. All money fields are minor units.
type Receipt struct {
	Email      string           `json:"Email,omitempty"`
	Phone      string           `json:"Phone,omitempty"`
	Taxation   string           `json:"Taxation"`
	FfdVersion string           `json:"FfdVersion,omitempty"`
	Items      []ReceiptItem    `json:"Items"`
	Payments   *ReceiptPayments `json:"Payments,omitempty"`
	Shops      []Shop           `json:"Shops,omitempty"`
}

// ItemsTotal sums the item amounts.
func (r *Receipt) ItemsTotal() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.Amount
	}
	return total
}

type ReceiptItem struct {
	Name          string                 `json:"Name"`
	Price         int64                  `json:"Price"`
	Quantity      float64                `json:"Quantity"`
	Amount        int64                  `json:"Amount"`
	Tax           string                 `json:"Tax"`
	PaymentMethod string                 `json:"PaymentMethod,omitempty"`
	PaymentObject string                 `json:"PaymentObject,omitempty"`
	Ean13         string                 `json:"Ean13,omitempty"`
	ShopCode      string                 `json:"ShopCode,omitempty"`
	AgentData     map[string]interface{} `json:"AgentData,omitempty"`
	SupplierInfo  map[string]interface{} `json:"SupplierInfo,omitempty"`
}

type ReceiptPayments struct {
	Electronic     int64 `json:"Electronic"`
	Cash           int64 `json:"Cash,omitempty"`
	AdvancePayment int64 `json:"AdvancePayment,omitempty"`
	Credit         int64 `json:"Credit,omitempty"`
	Provision      int64 `json:"Provision,omitempty"`
}

// Total sums every payment component.
func (p *ReceiptPayments) Total() int64 {
	return p.Electronic + p.Cash + p.AdvancePayment + p.Credit + p.Provision
}

type Shop struct {
	ShopCode   string `json:"ShopCode"`
	Amount     int64  `json:"Amount"`
	Name       string `json:"Name,omitempty"`
	Fee        int64  `json:"Fee,omitempty"`
	Descriptor string `json:"Descriptor,omitempty"`
}

type GetStateOptions struct {
	PaymentID string
	IP        string
}

type ChargeOptions struct {
	PaymentID string
	RebillID  string
	IP        string
	SendEmail bool
	InfoEmail string
}

type CancelOptions struct {
	PaymentID         string
	Amount            int64
	Receipt           *Receipt
	IP                string
	ExternalRequestID string
}

type CardListOptions struct {
	CustomerKey string
	SavedCard   *bool
	IP          string
}

type getStateBody struct {
	PaymentID string `json:"PaymentId"`
	IP        string `json:"IP,omitempty"`
}

type chargeBody struct {
	PaymentID string `json:"PaymentId"`
	RebillID  string `json:"RebillId"`
	IP        string `json:"IP,omitempty"`
	SendEmail bool   `json:"SendEmail,omitempty"`
	InfoEmail string `json:"InfoEmail,omitempty"`
}

type cancelBody struct {
	PaymentID         string   `json:"PaymentId"`
	Amount            int64    `json:"Amount,omitempty"`
	IP                string   `json:"IP,omitempty"`
	Receipt           *Receipt `json:"Receipt,omitempty"`
	ExternalRequestID string   `json:"ExternalRequestId,omitempty"`
}

type cardListBody struct {
	CustomerKey string `json:"CustomerKey"`
	SavedCard   *bool  `json:"SavedCard,omitempty"`
	IP          string `json:"IP,omitempty"`
}

// FlexString accepts both JSON strings and numbers; the gateway is not
// consistent about how it encodes identifiers such as PaymentId.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.Trim(string(data), `"`))
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Response holds the fields shared by every gateway operation. Raw keeps the
// full decoded body for anything operation-specific.
type Response struct {
	Success        bool                   `json:"Success"`
	ErrorCode      FlexString             `json:"ErrorCode"`
	Message        string                 `json:"Message"`
	Details        string                 `json:"Details"`
	TerminalKey    string                 `json:"TerminalKey"`
	Status         Status                 `json:"Status"`
	PaymentID      FlexString             `json:"PaymentId"`
	OrderID        string                 `json:"OrderId"`
	Amount         int64                  `json:"Amount"`
	OriginalAmount int64                  `json:"OriginalAmount"`
	NewAmount      int64                  `json:"NewAmount"`
	PaymentURL     string                 `json:"PaymentURL"`
	RebillID       FlexString             `json:"RebillId"`
	CardID         FlexString             `json:"CardId"`
	Pan            string                 `json:"Pan"`
	Raw            map[string]interface{} `json:"-"`
	HTTPStatus     int                    `json:"-"`
}

// ErrorMessage prefers the short Message and falls back to Details.
func (r *Response) ErrorMessage() string {
	if r.Message != "" {
		return r.Message
	}
	if r.Details != "" {
		return r.Details
	}
	return "gateway returned no error message"
}

type Card struct {
	CardID   FlexString `json:"CardId"`
	Pan      string     `json:"Pan"`
	Status   string     `json:"Status"`
	RebillID FlexString `json:"RebillId"`
	CardType int        `json:"CardType"`
	ExpDate  string     `json:"ExpDate"`
}

// CardListResponse: on success the gateway answers with a bare array of
// cards, on failure with an error object.
type CardListResponse struct {
	Success    bool
	Cards      []Card
	ErrorCode  string
	Message    string
	Details    string
	HTTPStatus int
}
