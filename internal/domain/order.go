package domain

import (
	"strconv"
	"strings"
)

const OrderIDPrefix = "ADMIN-"

// ParseOrderID extracts the transaction id from an order identifier built by
// Transaction.OrderID.
func ParseOrderID(orderID string) (int64, bool) {
	if !strings.HasPrefix(orderID, OrderIDPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(orderID, OrderIDPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func formatInt(id int64) string {
	return strconv.FormatInt(id, 10)
}
