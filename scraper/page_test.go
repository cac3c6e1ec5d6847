package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/use-agent/slotwatch/models"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), models.ErrCodeNavigationTimeout},
		{"canceled", fmt.Errorf("navigate: %w", context.Canceled), models.ErrCodeNavigation},
		{"other", errors.New("net::ERR_CONNECTION_REFUSED"), models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := categorizeError(tt.err, "navigation failed")
			if err.Code != tt.want {
				t.Errorf("code = %s, want %s", err.Code, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("%v does not wrap %v", err, tt.err)
			}
		})
	}
}
