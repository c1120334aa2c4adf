package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestRequireRejectsUndeclaredCapability(t *testing.T) {
	caps := []Capability{CapEmbeddings}
	if err := Require(SubprocessEmbed, caps, CapEmbeddings); err != nil {
		t.Fatalf("declared capability rejected: %v", err)
	}
	for _, c := range []Capability{CapChat, CapVision} {
		err := Require(SubprocessEmbed, caps, c)
		if !IsUnsupportedCapability(err) {
			t.Fatalf("%s: expected unsupported capability, got %v", c, err)
		}
	}
}

func TestEmbedInputJSONShape(t *testing.T) {
	b, err := json.Marshal(Text("a"))
	if err != nil || string(b) != `"a"` {
		t.Fatalf("single: %s %v", b, err)
	}
	b, err = json.Marshal(Texts("a", "b"))
	if err != nil || string(b) != `["a","b"]` {
		t.Fatalf("batch: %s %v", b, err)
	}
	b, _ = json.Marshal(Texts("only"))
	if string(b) != `["only"]` {
		t.Fatalf("batch of one must stay an array, got %s", b)
	}

	var in EmbedInput
	if err := json.Unmarshal([]byte(`"x"`), &in); err != nil || in.IsBatch() || in.Len() != 1 {
		t.Fatalf("unmarshal single: %+v %v", in, err)
	}
	if err := json.Unmarshal([]byte(`["x","y"]`), &in); err != nil || !in.IsBatch() || in.Len() != 2 {
		t.Fatalf("unmarshal batch: %+v %v", in, err)
	}
	if err := json.Unmarshal([]byte(`42`), &in); err == nil {
		t.Fatalf("expected error for numeric input")
	}
}

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"unavailable", ErrUnavailable(HTTPRemote, "down"), IsUnavailable},
		{"unsupported", ErrUnsupportedCapability(SubprocessEmbed, CapChat), IsUnsupportedCapability},
		{"request-timeout", ErrRequestTimeout(SubprocessEmbed, "embed", time.Second), IsRequestTimeout},
		{"startup-timeout", ErrStartupTimeout(SubprocessEmbed, time.Second), IsStartupTimeout},
		{"no-backend", ErrNoBackendAvailable([]Identity{HTTPRemote}), IsNoBackendAvailable},
		{"not-initialized", ErrNotInitialized(""), IsNotInitialized},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !tc.is(wrapped) {
			t.Fatalf("%s: predicate false for wrapped error %v", tc.name, wrapped)
		}
		if tc.is(errors.New(tc.err.Error())) {
			t.Fatalf("%s: predicate matched a plain error with the same text", tc.name)
		}
	}
}

func TestInitializationErrorKeepsCause(t *testing.T) {
	err := ErrInitialization(SubprocessEmbed, ErrStartupTimeout(SubprocessEmbed, 10*time.Second))
	if !IsInitialization(err) || !IsStartupTimeout(err) {
		t.Fatalf("expected initialization error wrapping a startup timeout, got %v", err)
	}
}

func TestBatchErrorIndexes(t *testing.T) {
	cause := errors.New("boom")
	be := &BatchError{Total: 4, Failed: map[int]error{3: cause, 1: cause}}
	idx := be.Indexes()
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 3 {
		t.Fatalf("indexes: %v", idx)
	}
	if !errors.Is(be, cause) {
		t.Fatalf("errors.Is should reach the per-index cause")
	}
	got, ok := AsBatchError(fmt.Errorf("wrap: %w", be))
	if !ok || got != be {
		t.Fatalf("AsBatchError failed")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransport(t *testing.T) {
	opErr := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	cases := []struct {
		err  error
		want TransportKind
	}{
		{opErr, TransportConnReset},
		{fmt.Errorf("post: %w", io.EOF), TransportEOF},
		{io.ErrUnexpectedEOF, TransportEOF},
		{&net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, TransportRefused},
		{timeoutErr{}, TransportTimeout},
		{errors.New("connection reset by peer"), TransportOther},
		{ErrTransport(TransportStatus, "GET /x", errors.New("500")), TransportStatus},
	}
	for _, tc := range cases {
		if got := ClassifyTransport(tc.err); got != tc.want {
			t.Fatalf("ClassifyTransport(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestWrapTransportKeepsExistingKind(t *testing.T) {
	inner := ErrTransport(TransportDecode, "decode", errors.New("bad json"))
	if got := WrapTransport("outer", inner); got != inner {
		t.Fatalf("expected existing transport error to pass through")
	}
	if WrapTransport("x", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	kind, ok := TransportKindOf(WrapTransport("post", io.EOF))
	if !ok || kind != TransportEOF {
		t.Fatalf("kind = %s ok=%v", kind, ok)
	}
}
