package alerts

import (
	"testing"
	"time"
)

func TestPublishBackoff_DoublesAndCaps(t *testing.T) {
	cfg := retryConfig{
		maxAttempts: 8,
		baseBackoff: 5 * time.Second,
		maxBackoff:  10 * time.Minute,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{7, 320 * time.Second},
		{8, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		if got := publishBackoff(tc.attempt, cfg); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}

func TestGetRetryConfig_Defaults(t *testing.T) {
	t.Setenv("ALERT_PUBLISH_MAX_ATTEMPTS", "")
	t.Setenv("ALERT_PUBLISH_BASE_BACKOFF_SECONDS", "")
	t.Setenv("ALERT_PUBLISH_MAX_BACKOFF_SECONDS", "")

	cfg := getRetryConfig()
	if cfg.maxAttempts != 8 {
		t.Fatalf("expected 8 max attempts, got %d", cfg.maxAttempts)
	}
	if cfg.baseBackoff != 5*time.Second {
		t.Fatalf("expected 5s base backoff, got %s", cfg.baseBackoff)
	}
	if cfg.maxBackoff != 10*time.Minute {
		t.Fatalf("expected 10m max backoff, got %s", cfg.maxBackoff)
	}
}

func TestGetRetryConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ALERT_PUBLISH_MAX_ATTEMPTS", "3")
	t.Setenv("ALERT_PUBLISH_BASE_BACKOFF_SECONDS", "1")
	t.Setenv("ALERT_PUBLISH_MAX_BACKOFF_SECONDS", "30")

	cfg := getRetryConfig()
	if cfg.maxAttempts != 3 || cfg.baseBackoff != time.Second || cfg.maxBackoff != 30*time.Second {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}
