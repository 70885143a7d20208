package reliability

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{599, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsRetryableTransportError(t *testing.T) {
	if IsRetryableTransportError(nil) {
		t.Fatalf("nil error classified retryable")
	}
	if !IsRetryableTransportError(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded not classified retryable")
	}
	if !IsRetryableTransportError(&net.OpError{Op: "dial", Err: errors.New("refused")}) {
		t.Fatalf("dial error not classified retryable")
	}
	if IsRetryableTransportError(errors.New("bad payload")) {
		t.Fatalf("generic error classified retryable")
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, capDur); got != 200*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want %v", got, 200*time.Millisecond)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
