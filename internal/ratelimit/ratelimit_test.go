package ratelimit

import (
	"testing"
	"time"
)

func TestWindowStart(t *testing.T) {
	window := 15 * time.Minute
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	same := windowStart(base.Add(14*time.Minute), window)
	if windowStart(base.Add(time.Minute), window) != same {
		t.Error("requests within one window should share a bucket")
	}

	if windowStart(base.Add(16*time.Minute), window) == windowStart(base, window) {
		t.Error("requests in different windows should not share a bucket")
	}
}
