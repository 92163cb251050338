package acquiring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1050), MinorUnits(decimal.RequireFromString("10.50")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
	assert.Equal(t, int64(10000000), MinorUnits(decimal.NewFromInt(100000)))
}

func TestCreateReceipt_Defaults(t *testing.T) {
	receipt, err := CreateReceipt(ReceiptOptions{
		Email: "admin@example.com",
		Items: []ReceiptItemOptions{
			{Name: "Top-up", Price: decimal.RequireFromString("99.90")},
			{Name: "Fee", Price: decimal.RequireFromString("0.05"), Quantity: decimal.NewFromInt(2)},
		},
		Payments: &ReceiptPaymentsOptions{},
	})
	require.NoError(t, err)

	assert.Equal(t, "osn", receipt.Taxation)
	require.Len(t, receipt.Items, 2)
	assert.Equal(t, int64(9990), receipt.Items[0].Amount)
	assert.Equal(t, float64(1), receipt.Items[0].Quantity)
	assert.Equal(t, "vat20", receipt.Items[0].Tax)
	assert.Equal(t, int64(10), receipt.Items[1].Amount)
	require.NotNil(t, receipt.Payments)
	assert.Equal(t, int64(10000), receipt.Payments.Electronic)
	assert.Equal(t, int64(10000), receipt.ItemsTotal())
}

func TestCreateReceipt_ValidatesAgainstInit(t *testing.T) {
	receipt, err := CreateReceipt(ReceiptOptions{
		Phone: "+79001234567",
		Items: []ReceiptItemOptions{
			{Name: "A", Price: decimal.RequireFromString("33.33"), Quantity: decimal.NewFromInt(3)},
			{Name: "B", Price: decimal.RequireFromString("0.01")},
		},
		Shops: []ShopOptions{
			{ShopCode: "s1", Amount: decimal.RequireFromString("50")},
			{ShopCode: "s2", Amount: decimal.RequireFromString("50")},
		},
	})
	require.NoError(t, err)

	_, err = NormalizeInit(PaymentRequest{
		OrderID: "ADMIN-3",
		Amount:  decimal.NewFromInt(receipt.ItemsTotal()),
		Receipt: receipt,
	}, testNow)
	assert.NoError(t, err)
}

func TestCreateReceipt_AmountOverride(t *testing.T) {
	receipt, err := CreateReceipt(ReceiptOptions{
		Email: "a@b.co",
		Items: []ReceiptItemOptions{
			{Name: "Discounted", Price: decimal.NewFromInt(10), Quantity: decimal.NewFromInt(3), Amount: decimal.NewFromInt(25)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), receipt.Items[0].Amount)
}

func TestCreateReceipt_Errors(t *testing.T) {
	item := ReceiptItemOptions{Name: "x", Price: decimal.NewFromInt(10)}

	tests := []struct {
		name  string
		opts  ReceiptOptions
		field string
	}{
		{"bad taxation", ReceiptOptions{Email: "a@b.co", Taxation: "flat", Items: []ReceiptItemOptions{item}}, "Receipt.Taxation"},
		{"no contact", ReceiptOptions{Items: []ReceiptItemOptions{item}}, "Receipt"},
		{"bad ffd", ReceiptOptions{Email: "a@b.co", FfdVersion: "9", Items: []ReceiptItemOptions{item}}, "Receipt.FfdVersion"},
		{"no items", ReceiptOptions{Email: "a@b.co"}, "Receipt.Items"},
		{"zero price", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{{Name: "x"}}}, "Receipt.Items"},
		{"negative quantity", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{{Name: "x", Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(-1)}}}, "Receipt.Items"},
		{"bad tax", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{{Name: "x", Price: decimal.NewFromInt(1), Tax: "vat18"}}}, "Receipt.Items"},
		{"payments mismatch", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{item}, Payments: &ReceiptPaymentsOptions{Cash: decimal.NewFromInt(1)}}, "Receipt.Payments"},
		{"electronic below total", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{item}, Payments: &ReceiptPaymentsOptions{Electronic: decimal.NewFromInt(5), Cash: decimal.NewFromInt(5)}}, "Receipt.Payments"},
		{"shop without code", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{item}, Shops: []ShopOptions{{Amount: decimal.NewFromInt(10)}}}, "Receipt.Shops"},
		{"shop without amount", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{item}, Shops: []ShopOptions{{ShopCode: "a", Amount: decimal.NewFromInt(10)}, {ShopCode: "b"}}}, "Receipt.Shops"},
		{"shops mismatch", ReceiptOptions{Email: "a@b.co", Items: []ReceiptItemOptions{item}, Shops: []ShopOptions{{ShopCode: "s", Amount: decimal.NewFromInt(9)}}}, "Receipt.Shops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt, err := CreateReceipt(tt.opts)
			requireValidationError(t, err, tt.field)
			assert.Nil(t, receipt)
		})
	}
}
