package metrics

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/torosent/pacefire/internal/executor"
)

func TestFailureLabel(t *testing.T) {
	dial := func(err error) error {
		return &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: err}}
	}

	tests := []struct {
		name   string
		reason executor.FailureReason
		err    error
		want   string
	}{
		{"client timeout", executor.ReasonTimeout, fmt.Errorf("do: %w", context.DeadlineExceeded), "timeout: deadline exceeded"},
		{"os deadline", executor.ReasonTimeout, &url.Error{Op: "Get", URL: "http://x", Err: os.ErrDeadlineExceeded}, "timeout: deadline exceeded"},
		{"canceled", executor.ReasonTransport, context.Canceled, "transport: canceled"},
		{"refused", executor.ReasonTransport, dial(os.NewSyscallError("connect", syscall.ECONNREFUSED)), "transport: connection refused"},
		{"reset", executor.ReasonTransport, &url.Error{Op: "Get", URL: "http://x", Err: syscall.ECONNRESET}, "transport: connection reset"},
		{"dns", executor.ReasonTransport, dial(&net.DNSError{Err: "no such host", Name: "nope.invalid"}), "transport: dns lookup failed"},
		{"eof", executor.ReasonTransport, &url.Error{Op: "Post", URL: "http://x", Err: io.EOF}, "transport: connection closed early"},
		{"tls", executor.ReasonTransport, &url.Error{Op: "Get", URL: "https://x", Err: x509.UnknownAuthorityError{}}, "transport: tls handshake failed"},
		{"dial", executor.ReasonTransport, dial(errors.New("network is down")), "transport: dial failed"},
		{"unknown", executor.ReasonTransport, errors.New("boom"), "transport: other"},
		{"nil error", executor.ReasonTransport, nil, "transport: other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FailureLabel(executor.Failure(tt.reason, time.Millisecond, tt.err))
			if got != tt.want {
				t.Errorf("FailureLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}
