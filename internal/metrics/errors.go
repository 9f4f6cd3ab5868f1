package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/torosent/pacefire/internal/executor"
)

// Causes reported under a failure reason.
const (
	CauseDeadlineExceeded  = "deadline exceeded"
	CauseCanceled          = "canceled"
	CauseDNS               = "dns lookup failed"
	CauseConnectionRefused = "connection refused"
	CauseConnectionReset   = "connection reset"
	CauseConnectionClosed  = "connection closed early"
	CauseTLS               = "tls handshake failed"
	CauseDial              = "dial failed"
	CauseOther             = "other"
)

// FailureLabel keys a failed outcome in Summary.Errors as "<reason>: <cause>",
// e.g. "transport: connection refused" or "timeout: deadline exceeded".
func FailureLabel(o executor.Outcome) string {
	return o.Reason.String() + ": " + failureCause(o.Err)
}

func failureCause(err error) string {
	if err == nil {
		return CauseOther
	}

	var (
		dnsErr     *net.DNSError
		opErr      *net.OpError
		netErr     net.Error
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		recordErr  tls.RecordHeaderError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CauseDeadlineExceeded
	case errors.As(err, &netErr) && netErr.Timeout():
		return CauseDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	case errors.As(err, &dnsErr):
		return CauseDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return CauseConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return CauseConnectionReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CauseConnectionClosed
	case errors.As(err, &certErr), errors.As(err, &unknownCA), errors.As(err, &hostErr),
		errors.As(err, &recordErr), errors.As(err, &invalidErr):
		return CauseTLS
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return CauseDial
	default:
		return CauseOther
	}
}
