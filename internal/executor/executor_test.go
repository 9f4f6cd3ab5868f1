package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeTransport struct {
	mu      sync.Mutex
	status  int
	err     error
	panics  bool
	delay   time.Duration
	headers []map[string]string
}

func (f *fakeTransport) Do(ctx context.Context, method, target string, headers map[string]string, body []byte) (int, error) {
	f.mu.Lock()
	f.headers = append(f.headers, headers)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.status, f.err
}

type recordingLogger struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingLogger) LogFailure(_ RequestSpec, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestExecuteClassifiesOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		transport  *fakeTransport
		wantKind   OutcomeKind
		wantReason FailureReason
		wantStatus int
	}{
		{"ok", &fakeTransport{status: 200}, OutcomeSuccess, ReasonNone, 200},
		{"server error is still a response", &fakeTransport{status: 503}, OutcomeSuccess, ReasonNone, 503},
		{"not found is still a response", &fakeTransport{status: 404}, OutcomeSuccess, ReasonNone, 404},
		{"connection refused", &fakeTransport{err: errors.New("dial tcp: connection refused")}, OutcomeFailure, ReasonTransport, 0},
		{"context deadline", &fakeTransport{err: fmt.Errorf("do: %w", context.DeadlineExceeded)}, OutcomeFailure, ReasonTimeout, 0},
		{"net timeout", &fakeTransport{err: &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}}, OutcomeFailure, ReasonTimeout, 0},
		{"panic", &fakeTransport{panics: true}, OutcomeFailure, ReasonTransport, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := New(tt.transport).Execute(context.Background(), RequestSpec{URL: "http://x", Method: "GET"})
			if out.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", out.Kind, tt.wantKind)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", out.Reason, tt.wantReason)
			}
			if out.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", out.StatusCode, tt.wantStatus)
			}
			if tt.wantKind == OutcomeFailure && out.Err == nil {
				t.Errorf("expected error on failure outcome")
			}
			if out.Latency < 0 {
				t.Errorf("Latency = %v, want >= 0", out.Latency)
			}
		})
	}
}

func TestExecuteMeasuresLatency(t *testing.T) {
	tr := &fakeTransport{status: 200, delay: 20 * time.Millisecond}
	out := New(tr).Execute(context.Background(), RequestSpec{URL: "http://x", Method: "GET"})
	if out.Latency < 20*time.Millisecond {
		t.Fatalf("Latency = %v, want >= 20ms", out.Latency)
	}
}

func TestExecuteReportsFailuresToLogger(t *testing.T) {
	logger := &recordingLogger{}
	exec := New(&fakeTransport{err: errors.New("reset")}, WithFailureLogger(logger))
	exec.Execute(context.Background(), RequestSpec{URL: "http://x", Method: "GET"})

	okExec := New(&fakeTransport{status: 500}, WithFailureLogger(logger))
	okExec.Execute(context.Background(), RequestSpec{URL: "http://x", Method: "GET"})

	if len(logger.outcomes) != 1 {
		t.Fatalf("logged %d failures, want 1", len(logger.outcomes))
	}
	if logger.outcomes[0].Reason != ReasonTransport {
		t.Errorf("Reason = %v", logger.outcomes[0].Reason)
	}
}

func TestExecuteWithTracerInjectsHeaders(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tr := &fakeTransport{status: 200}
	spec := RequestSpec{URL: "http://x/path", Method: "GET", Headers: map[string]string{"Accept": "*/*"}}
	New(tr, WithTracer(tp.Tracer("test"), true)).Execute(context.Background(), spec)

	if len(exporter.GetSpans()) != 1 {
		t.Fatalf("got %d spans, want 1", len(exporter.GetSpans()))
	}
	if len(spec.Headers) != 1 {
		t.Errorf("shared spec headers were modified: %v", spec.Headers)
	}
	if tr.headers[0]["Accept"] != "*/*" {
		t.Errorf("original header not forwarded: %v", tr.headers[0])
	}
}

func TestLogrusFailureLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	NewLogrusFailureLogger(logger, logrus.WarnLevel).LogFailure(
		RequestSpec{URL: "http://x", Method: "POST"},
		Failure(ReasonTimeout, time.Second, context.DeadlineExceeded),
	)

	got := buf.String()
	for _, want := range []string{`"reason":"timeout"`, `"method":"POST"`, `"msg":"request failed"`, `"level":"warning"`} {
		if !bytes.Contains([]byte(got), []byte(want)) {
			t.Errorf("log output %q missing %s", got, want)
		}
	}

	buf.Reset()
	NewLogrusFailureLogger(logger, logrus.DebugLevel).LogFailure(RequestSpec{}, Failure(ReasonTransport, 0, errors.New("x")))
	if buf.Len() != 0 {
		t.Errorf("debug entry written at info level: %q", buf.String())
	}
}

func TestOutcomeHelpers(t *testing.T) {
	if !Success(200, 0).IsSuccess() || Success(200, 0).IsApplicationError() {
		t.Error("200 should be a plain success")
	}
	if !Success(500, 0).IsApplicationError() {
		t.Error("500 should be an application error")
	}
	if Failure(ReasonTransport, 0, errors.New("x")).IsApplicationError() {
		t.Error("transport failure is not an application error")
	}
	if ReasonTimeout.String() != "timeout" || OutcomeFailure.String() != "failure" {
		t.Error("unexpected String() output")
	}
}
