package acquiring

import (
	"github.com/shopspring/decimal"
)

// ReceiptOptions is the friendlier input of CreateReceipt: money is given in
// major units as decimals and converted to minor units on the way out.
type ReceiptOptions struct {
	Email      string
	Phone      string
	Taxation   string
	FfdVersion string
	Items      []ReceiptItemOptions
	Payments   *ReceiptPaymentsOptions
	Shops      []ShopOptions
}

type ReceiptItemOptions struct {
	Name string
	// Price per unit in major units.
	Price decimal.Decimal
	// Quantity defaults to 1.
	Quantity decimal.Decimal
	// Amount overrides Price*Quantity when set.
	Amount        decimal.Decimal
	Tax           string
	PaymentMethod string
	PaymentObject string
	Ean13         string
	ShopCode      string
	AgentData     map[string]interface{}
	SupplierInfo  map[string]interface{}
}

type ReceiptPaymentsOptions struct {
	// Electronic defaults to the item total.
	Electronic     decimal.Decimal
	Cash           decimal.Decimal
	AdvancePayment decimal.Decimal
	Credit         decimal.Decimal
	Provision      decimal.Decimal
}

type ShopOptions struct {
	ShopCode   string
	Amount     decimal.Decimal
	Name       string
	Fee        decimal.Decimal
	Descriptor string
}

// MinorUnits converts a major-unit decimal into integer minor units.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// CreateReceipt builds a Receipt from opts, applying the same defaults and
// total checks NormalizeInit enforces, so that the result validates against
// an Init request for Receipt.ItemsTotal().
func CreateReceipt(opts ReceiptOptions) (*Receipt, error) {
	receipt := &Receipt{
		Email:    opts.Email,
		Phone:    opts.Phone,
		Taxation: opts.Taxation,
	}
	if receipt.Taxation == "" {
		receipt.Taxation = defaultTaxation
	} else if !taxations[receipt.Taxation] {
		return nil, invalid("Receipt.Taxation", "Invalid Taxation value '%s'", receipt.Taxation)
	}

	if receipt.Email == "" && receipt.Phone == "" {
		return nil, invalid("Receipt", "Receipt must have either Email or Phone")
	}

	if opts.FfdVersion != "" {
		if !ffdVersions[opts.FfdVersion] {
			return nil, invalid("Receipt.FfdVersion", "FfdVersion must be '1.05' or '1.2'")
		}
		receipt.FfdVersion = opts.FfdVersion
	}

	if len(opts.Items) == 0 {
		return nil, invalid("Receipt.Items", "Receipt items must be a non-empty array")
	}

	var total int64
	receipt.Items = make([]ReceiptItem, 0, len(opts.Items))
	for i, in := range opts.Items {
		if in.Name == "" {
			return nil, invalid("Receipt.Items", "Item %d must have a name", i)
		}
		if !in.Price.IsPositive() {
			return nil, invalid("Receipt.Items", "Item %d must have a valid price (positive number)", i)
		}

		quantity := in.Quantity
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}
		if !quantity.IsPositive() {
			return nil, invalid("Receipt.Items", "Item %d must have a valid quantity (positive number)", i)
		}

		amount := MinorUnits(in.Price.Mul(quantity))
		if !in.Amount.IsZero() {
			amount = MinorUnits(in.Amount)
		}

		tax := in.Tax
		if tax == "" {
			tax = defaultItemTax
		} else if !itemTaxes[tax] {
			return nil, invalid("Receipt.Items", "Item %d has invalid tax value '%s'", i, tax)
		}

		qty, _ := quantity.Float64()
		receipt.Items = append(receipt.Items, ReceiptItem{
			Name:          in.Name,
			Price:         MinorUnits(in.Price),
			Quantity:      qty,
			Amount:        amount,
			Tax:           tax,
			PaymentMethod: in.PaymentMethod,
			PaymentObject: in.PaymentObject,
			Ean13:         in.Ean13,
			ShopCode:      in.ShopCode,
			AgentData:     in.AgentData,
			SupplierInfo:  in.SupplierInfo,
		})
		total += amount
	}

	if p := opts.Payments; p != nil {
		payments := &ReceiptPayments{
			Electronic:     total,
			Cash:           MinorUnits(p.Cash),
			AdvancePayment: MinorUnits(p.AdvancePayment),
			Credit:         MinorUnits(p.Credit),
			Provision:      MinorUnits(p.Provision),
		}
		if !p.Electronic.IsZero() {
			payments.Electronic = MinorUnits(p.Electronic)
		}
		if payments.Total() != total {
			return nil, invalid("Receipt.Payments", "Total payments (%d) doesn't match total amount (%d)", payments.Total(), total)
		}
		if payments.Electronic != total {
			return nil, invalid("Receipt.Payments", "Electronic payment (%d) must equal total amount (%d)", payments.Electronic, total)
		}
		receipt.Payments = payments
	}

	if len(opts.Shops) > 0 {
		var shopsTotal int64
		receipt.Shops = make([]Shop, 0, len(opts.Shops))
		for i, in := range opts.Shops {
			if in.ShopCode == "" {
				return nil, invalid("Receipt.Shops", "Shop %d must have a ShopCode", i)
			}
			if !in.Amount.IsPositive() {
				return nil, invalid("Receipt.Shops", "Shop %d must have a valid Amount", i)
			}
			shop := Shop{
				ShopCode:   in.ShopCode,
				Amount:     MinorUnits(in.Amount),
				Name:       in.Name,
				Fee:        MinorUnits(in.Fee),
				Descriptor: in.Descriptor,
			}
			shopsTotal += shop.Amount
			receipt.Shops = append(receipt.Shops, shop)
		}
		if shopsTotal != total {
			return nil, invalid("Receipt.Shops", "Total shops amount (%d) doesn't match total amount (%d)", shopsTotal, total)
		}
	}

	return receipt, nil
}
