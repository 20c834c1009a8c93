package utils

import (
	"fmt"
	"time"
)

// BuildRequestID derives the human-scannable run identifier: a five digit
// day-since-epoch bucket concatenated with a strictly increasing sequence.
// Sorting lexically within one day matches insertion order.
func BuildRequestID(now time.Time, seq uint) string {
	days := now.Unix() / 86400
	return fmt.Sprintf("%05d%d", days, seq)
}
