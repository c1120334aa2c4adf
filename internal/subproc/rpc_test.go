package subproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
)

// requestRecorder captures request lines written by conn.
type requestRecorder struct {
	mu   sync.Mutex
	reqs []request
	fail error
}

func (r *requestRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	var req request
	if err := json.Unmarshal(bytes.TrimSpace(p), &req); err != nil {
		return 0, err
	}
	r.reqs = append(r.reqs, req)
	return len(p), nil
}

type callResult struct {
	resp response
	err  error
}

func startCall(c *conn, ctx context.Context, command string, timeout time.Duration) <-chan callResult {
	out := make(chan callResult, 1)
	go func() {
		r, err := c.callTimeout(ctx, request{Command: command}, timeout)
		out <- callResult{r, err}
	}()
	return out
}

func waitPending(t *testing.T, c *conn, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.pendingLen() != n {
		if time.Now().After(deadline) {
			t.Fatalf("pending = %d, want %d", c.pendingLen(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func recv(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("call did not complete")
		return callResult{}
	}
}

func newTestConn(w *requestRecorder) *conn {
	return newConn(backend.SubprocessEmbed, w, time.Minute, zerolog.Nop())
}

func TestConnFIFOWithoutIDs(t *testing.T) {
	rec := &requestRecorder{}
	c := newTestConn(rec)
	ctx := context.Background()

	var calls []<-chan callResult
	for i := 0; i < 3; i++ {
		calls = append(calls, startCall(c, ctx, cmdPing, time.Minute))
		waitPending(t, c, i+1)
	}
	for i := 0; i < 3; i++ {
		c.deliver([]byte(fmt.Sprintf(`{"success":true,"model":"r%d"}`, i)))
	}
	for i, ch := range calls {
		got := recv(t, ch)
		if got.err != nil || got.resp.Model != fmt.Sprintf("r%d", i) {
			t.Fatalf("call %d got %+v", i, got)
		}
	}
	if len(rec.reqs) != 3 || rec.reqs[0].ID != 1 || rec.reqs[2].ID != 3 {
		t.Fatalf("ids not monotonically assigned: %+v", rec.reqs)
	}
}

func TestConnMatchesEchoedIDsOutOfOrder(t *testing.T) {
	c := newTestConn(&requestRecorder{})
	ctx := context.Background()
	first := startCall(c, ctx, cmdPing, time.Minute)
	waitPending(t, c, 1)
	second := startCall(c, ctx, cmdPing, time.Minute)
	waitPending(t, c, 2)

	c.deliver([]byte(`{"id":2,"success":true,"model":"two"}`))
	c.deliver([]byte(`{"id":1,"success":true,"model":"one"}`))

	if r := recv(t, first); r.resp.Model != "one" {
		t.Fatalf("first got %+v", r)
	}
	if r := recv(t, second); r.resp.Model != "two" {
		t.Fatalf("second got %+v", r)
	}
}

func TestConnTimeoutIsolationWithEchoedIDs(t *testing.T) {
	c := newTestConn(&requestRecorder{})
	ctx := context.Background()

	slow := recv(t, startCall(c, ctx, cmdEmbed, 30*time.Millisecond))
	if !backend.IsRequestTimeout(slow.err) {
		t.Fatalf("expected request timeout, got %+v", slow)
	}
	if c.pendingLen() != 0 {
		t.Fatalf("timed out request still pending")
	}

	next := startCall(c, ctx, cmdEmbed, time.Minute)
	waitPending(t, c, 1)
	c.deliver([]byte(`{"id":1,"success":true,"model":"late"}`))
	if c.pendingLen() != 1 {
		t.Fatalf("late reply resolved an unrelated request")
	}
	c.deliver([]byte(`{"id":2,"success":true,"model":"mine"}`))
	if r := recv(t, next); r.err != nil || r.resp.Model != "mine" {
		t.Fatalf("next got %+v", r)
	}
}

// Without echoed ids the correlation is purely positional, so a reply that
// arrives after its caller timed out is taken by the next caller.
func TestConnLateReplyWithoutIDsGoesToNextCaller(t *testing.T) {
	c := newTestConn(&requestRecorder{})
	ctx := context.Background()

	if r := recv(t, startCall(c, ctx, cmdEmbed, 20*time.Millisecond)); !backend.IsRequestTimeout(r.err) {
		t.Fatalf("expected timeout, got %+v", r)
	}
	next := startCall(c, ctx, cmdEmbed, time.Minute)
	waitPending(t, c, 1)
	c.deliver([]byte(`{"success":true,"model":"late"}`))
	if r := recv(t, next); r.resp.Model != "late" {
		t.Fatalf("got %+v", r)
	}
}

func TestConnCloseReleasesWaiters(t *testing.T) {
	c := newTestConn(&requestRecorder{})
	pending := startCall(c, context.Background(), cmdEmbed, time.Minute)
	waitPending(t, c, 1)

	c.close(backend.ErrTransport(backend.TransportProcessExited, "worker", errors.New("exit status 1")))
	r := recv(t, pending)
	if kind, ok := backend.TransportKindOf(r.err); !ok || kind != backend.TransportProcessExited {
		t.Fatalf("expected process-exited transport error, got %v", r.err)
	}
	if c.pendingLen() != 0 {
		t.Fatalf("pending map not cleared")
	}
	if _, err := c.call(context.Background(), request{Command: cmdPing}); !backend.IsTransport(err) {
		t.Fatalf("call after close: %v", err)
	}
}

func TestConnContextCancel(t *testing.T) {
	c := newTestConn(&requestRecorder{})
	ctx, cancel := context.WithCancel(context.Background())
	ch := startCall(c, ctx, cmdEmbed, time.Minute)
	waitPending(t, c, 1)
	cancel()
	if r := recv(t, ch); !errors.Is(r.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", r.err)
	}
	if c.pendingLen() != 0 {
		t.Fatalf("canceled request still pending")
	}
}

func TestConnIgnoresGarbageAndUnsolicitedLines(t *testing.T) {
	c := newTestConn(&requestRecorder{})
	c.deliver([]byte(`not json`))
	c.deliver([]byte(`{"success":true}`))
	c.deliver([]byte(`{"id":99,"success":true}`))

	ch := startCall(c, context.Background(), cmdPing, time.Minute)
	waitPending(t, c, 1)
	c.deliver([]byte(`{"success":true,"model":"ok"}`))
	if r := recv(t, ch); r.resp.Model != "ok" {
		t.Fatalf("got %+v", r)
	}
}

func TestConnWriteFailureIsClassified(t *testing.T) {
	rec := &requestRecorder{fail: errors.New("broken pipe")}
	c := newTestConn(rec)
	_, err := c.call(context.Background(), request{Command: cmdPing})
	if !backend.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if c.pendingLen() != 0 {
		t.Fatalf("failed write left a pending entry")
	}
}
