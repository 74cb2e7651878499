package oauth

import (
	"errors"
	"testing"
	"time"
)

func TestNeedsRefresh(t *testing.T) {
	now := time.Now()
	window := 15 * time.Minute
	cases := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"zero expiry refreshes eagerly", time.Time{}, true},
		{"already expired", now.Add(-time.Minute), true},
		{"inside window", now.Add(10 * time.Minute), true},
		{"exactly at window edge", now.Add(window), true},
		{"well outside window", now.Add(2 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := needsRefresh(tc.expiry, window, now); got != tc.want {
				t.Errorf("needsRefresh(%v) = %v, want %v", tc.expiry, got, tc.want)
			}
		})
	}
}

func TestProbedExpiry(t *testing.T) {
	now := time.Now()
	window := 15 * time.Minute

	// a failed probe forces an eager refresh regardless of the stored expiry
	exp := probedExpiry(0, errors.New("401 invalid token"), now)
	if !exp.IsZero() {
		t.Errorf("probedExpiry with probe error = %v, want zero time", exp)
	}
	if !needsRefresh(exp, window, now) {
		t.Error("failed probe should trigger a refresh")
	}

	// the provider-reported lifetime supersedes the stored expiry
	exp = probedExpiry(2*time.Hour, nil, now)
	if needsRefresh(exp, window, now) {
		t.Error("healthy token with 2h remaining should not refresh")
	}
	exp = probedExpiry(5*time.Minute, nil, now)
	if !needsRefresh(exp, window, now) {
		t.Error("healthy token inside the window should refresh")
	}
}

func TestJitteredBounds(t *testing.T) {
	interval := 5 * time.Minute
	for i := 0; i < 100; i++ {
		d := jittered(interval)
		if d < interval/2 {
			t.Fatalf("jittered(%v) = %v, below floor", interval, d)
		}
		if d > interval+interval/5 {
			t.Fatalf("jittered(%v) = %v, above +20%%", interval, d)
		}
	}
}
