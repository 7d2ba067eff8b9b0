package gotlive

import (
	"testing"
	"time"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", p.MaxRetries)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("Expected BaseDelay=1s, got %v", p.BaseDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("Expected MaxDelay=30s, got %v", p.MaxDelay)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{60, 30 * time.Second},
		{-1, time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := DefaultRetryPolicy()

	for failures := 0; failures <= 3; failures++ {
		if p.Exhausted(failures) {
			t.Errorf("%d failures should still allow a retry", failures)
		}
	}
	if !p.Exhausted(4) {
		t.Error("4 failures (1 call + 3 retries) should exhaust the policy")
	}
}
