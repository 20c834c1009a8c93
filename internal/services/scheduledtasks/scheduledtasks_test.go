package scheduledtasks

import (
	"testing"

	"go-feature-platform/internal/services/scheduler"
)

func TestResolveExpression(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		shorthand *scheduler.Shorthand
		want      string
		wantErr   bool
	}{
		{
			name: "raw cron passes through",
			raw:  "*/5 * * * *",
			want: "*/5 * * * *",
		},
		{
			name:      "shorthand wins over raw",
			raw:       "*/5 * * * *",
			shorthand: &scheduler.Shorthand{Unit: "daily", Hour: 6, Minute: 15},
			want:      "15 6 * * *",
		},
		{
			name:      "shorthand alone",
			shorthand: &scheduler.Shorthand{Unit: "hours", N: 4},
			want:      "0 */4 * * *",
		},
		{
			name:    "empty",
			wantErr: true,
		},
		{
			name:    "invalid raw cron",
			raw:     "every day at noon",
			wantErr: true,
		},
		{
			name:      "invalid shorthand",
			shorthand: &scheduler.Shorthand{Unit: "minutes", N: 0},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveExpression(tt.raw, tt.shorthand)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveExpression() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveExpression() = %q, want %q", got, tt.want)
			}
		})
	}
}
