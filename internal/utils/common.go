package utils

import (
	"context"
	"log"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

func ToPointer[T any](value T) *T {
	return &value
}

// SafeGo runs fn on its own goroutine and swallows panics with a stack dump,
// so a misbehaving background task never takes down the process.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

func ShouldStopCtx(ctx context.Context, log *logrus.Logger) (bool, error) {
	select {
	case <-ctx.Done():
		funcName := "unknown"
		if pc, _, _, ok := runtime.Caller(1); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				parts := strings.Split(fn.Name(), "/")
				funcName = parts[len(parts)-1]
			}
		}
		log.Debug("Context done signal received",
			logrus.Fields{
				"caller": funcName,
				"error":  ctx.Err(),
			},
		)
		return true, ctx.Err()
	default:
		return false, nil
	}
}

// TruncateString cuts s to at most max runes, appending "..." when truncated.
func TruncateString(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
