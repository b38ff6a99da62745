package sqldb

import (
	"fmt"
	"time"

	"github.com/MetaSPN/metaspn-tokens/internal/identity"
)

func timeText(t time.Time) string {
	return identity.CanonicalTime(t)
}

func parseTimeText(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
