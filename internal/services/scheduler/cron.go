package scheduler

import (
	"fmt"

	"github.com/gorhill/cronexpr"
)

// Shorthand is the friendly schedule form the UI offers; it compiles down
// to a five-field cron expression.
type Shorthand struct {
	// Every runs the task on a fixed interval: unit is one of "minutes",
	// "hours" or "days" and N the interval length.
	Unit string
	N    int
	// Daily runs the task once a day at Hour:Minute (Unit "daily").
	Hour   int
	Minute int
}

// BuildCronExpression compiles a shorthand into five-field cron syntax.
func BuildCronExpression(s Shorthand) (string, error) {
	switch s.Unit {
	case "minutes":
		if s.N < 1 || s.N > 59 {
			return "", fmt.Errorf("minute interval must be within 1..59, got %d", s.N)
		}
		return fmt.Sprintf("*/%d * * * *", s.N), nil
	case "hours":
		if s.N < 1 || s.N > 23 {
			return "", fmt.Errorf("hour interval must be within 1..23, got %d", s.N)
		}
		return fmt.Sprintf("0 */%d * * *", s.N), nil
	case "days":
		if s.N < 1 || s.N > 31 {
			return "", fmt.Errorf("day interval must be within 1..31, got %d", s.N)
		}
		return fmt.Sprintf("0 0 */%d * *", s.N), nil
	case "daily":
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return "", fmt.Errorf("invalid time of day %02d:%02d", s.Hour, s.Minute)
		}
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), nil
	default:
		return "", fmt.Errorf("unknown schedule unit %q", s.Unit)
	}
}

// ValidateCronExpression parses expr, returning the parse error verbatim.
func ValidateCronExpression(expr string) error {
	_, err := cronexpr.Parse(expr)
	return err
}
