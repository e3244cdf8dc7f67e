package settlement

import "fmt"

// OrderCodeWidth is the minimum number of digits in an order code.
const OrderCodeWidth = 3

// NextOrderCode derives the next order code from the number of orders that
// already exist: count+1, left-padded with zeros to OrderCodeWidth digits.
// Wider counts are never truncated (999 -> "1000").
func NextOrderCode(count int) string {
	return fmt.Sprintf("%0*d", OrderCodeWidth, count+1)
}
