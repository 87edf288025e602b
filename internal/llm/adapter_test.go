package llm

import (
	"errors"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		billing   bool
	}{
		{"rate limit", errors.New("API error: rate limit exceeded"), true, false},
		{"429", errors.New("unexpected status 429"), true, false},
		{"overloaded", errors.New("model is Overloaded, retry later"), true, false},
		{"503", errors.New("503 Service Unavailable"), true, false},
		{"gateway timeout", errors.New("upstream gateway timeout"), true, false},
		{"auth", errors.New("401 unauthorized"), false, false},
		{"billing", errors.New("quota exceeded for project"), false, true},
		{"payment", errors.New("payment required (402)"), false, true},
		{"plain", errors.New("invalid request body"), false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.retryable {
				t.Errorf("isRetryableError = %v, want %v", got, tc.retryable)
			}
			if got := isBillingError(tc.err); got != tc.billing {
				t.Errorf("isBillingError = %v, want %v", got, tc.billing)
			}
		})
	}

	if isRetryableError(nil) || isBillingError(nil) {
		t.Error("nil error must not classify")
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	a := NewFantasyAdapter(nil, 0, RetryConfig{})
	maxRetries, initBackoff, maxBackoff := a.getRetryConfig()
	if maxRetries != defaultMaxRetries {
		t.Errorf("maxRetries = %d", maxRetries)
	}
	if initBackoff != defaultInitBackoff || maxBackoff != defaultMaxBackoff {
		t.Errorf("backoff = %s / %s", initBackoff, maxBackoff)
	}
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "mystery", Model: "m", APIKey: "k"})
	if err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}
