package webclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestDoWithRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		attempts  int
		responses []int
		errs      []error
		wantCalls int
		wantCode  int
		wantErr   bool
	}{
		{name: "first attempt succeeds", attempts: 3, responses: []int{200}, errs: []error{nil}, wantCalls: 1, wantCode: 200},
		{name: "retries server errors", attempts: 3, responses: []int{503, 502, 200}, errs: []error{errBoom, errBoom, nil}, wantCalls: 3, wantCode: 200},
		{name: "retries rate limit", attempts: 2, responses: []int{429, 200}, errs: []error{errBoom, nil}, wantCalls: 2, wantCode: 200},
		{name: "stops on client error", attempts: 3, responses: []int{404}, errs: []error{errBoom}, wantCalls: 1, wantCode: 404, wantErr: true},
		{name: "gives up after attempts", attempts: 2, responses: []int{500, 500}, errs: []error{errBoom, errBoom}, wantCalls: 2, wantCode: 500, wantErr: true},
		{name: "transport errors are retried", attempts: 2, responses: []int{0, 200}, errs: []error{errBoom, nil}, wantCalls: 2, wantCode: 200},
		{name: "private address is not retried", attempts: 3, responses: []int{0}, errs: []error{ErrPrivateAddress}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			code, _, err := DoWithRetry(context.Background(), tt.attempts, time.Millisecond, func() (int, []byte, error) {
				i := calls
				calls++
				return tt.responses[i], nil, tt.errs[i]
			})
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d", code, tt.wantCode)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDoWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := DoWithRetry(ctx, 5, time.Hour, func() (int, []byte, error) {
		calls++
		cancel()
		return http.StatusServiceUnavailable, nil, errors.New("unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate([]byte("short"), 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate([]byte("0123456789abc"), 4); got != "0123... (truncated)" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestIsPublicIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"8.8.8.8", true},
		{"2804:14c::1", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"192.168.0.10", false},
		{"169.254.169.254", false},
		{"0.0.0.0", false},
		{"::1", false},
		{"fe80::1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		if got := IsPublicIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Fatalf("IsPublicIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
	if err := rejectNonPublic("tcp", "127.0.0.1:80", nil); !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("loopback dial allowed: %v", err)
	}
	if err := rejectNonPublic("tcp", "8.8.8.8:443", nil); err != nil {
		t.Fatalf("public dial refused: %v", err)
	}
}
