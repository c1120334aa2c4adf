package subproc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"aidispatch/internal/backend"
)

type pendingRequest struct {
	id      uint64
	command string
	reply   chan response
}

// conn correlates request lines written to w with reply lines passed to
// deliver. Replies that echo an id are matched by id; replies without one go
// to the oldest pending request.
type conn struct {
	owner   backend.Identity
	log     zerolog.Logger
	timeout time.Duration

	// wmu orders id assignment together with the write so that FIFO order on
	// the wire equals insertion order in pending.
	wmu sync.Mutex
	w   io.Writer

	mu      sync.Mutex
	nextID  uint64
	pending *orderedmap.OrderedMap[uint64, *pendingRequest]
	closed  chan struct{}
	err     error
}

func newConn(owner backend.Identity, w io.Writer, timeout time.Duration, log zerolog.Logger) *conn {
	return &conn{
		owner:   owner,
		log:     log,
		timeout: timeout,
		w:       w,
		pending: orderedmap.New[uint64, *pendingRequest](),
		closed:  make(chan struct{}),
	}
}

func (c *conn) call(ctx context.Context, req request) (response, error) {
	return c.callTimeout(ctx, req, c.timeout)
}

// callTimeout sends req and waits for its reply. Exactly one outcome reaches
// the caller: the reply, a RequestTimeoutError, ctx.Err(), or the close error.
func (c *conn) callTimeout(ctx context.Context, req request, timeout time.Duration) (response, error) {
	p, err := c.send(req)
	if err != nil {
		return response{}, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-p.reply:
		return r, nil
	case <-timer.C:
		if c.forget(p.id) {
			c.log.Warn().Str("event", "request_timeout").Str("command", req.Command).Uint64("id", p.id).Dur("after", timeout).Msg("no reply from worker")
			return response{}, backend.ErrRequestTimeout(c.owner, req.Command, timeout)
		}
	case <-ctx.Done():
		if c.forget(p.id) {
			return response{}, ctx.Err()
		}
	case <-c.closed:
	}
	// The entry is gone: a reply was delivered just now or the conn closed.
	select {
	case r := <-p.reply:
		return r, nil
	default:
		return response{}, c.closeErr()
	}
}

func (c *conn) send(req request) (*pendingRequest, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	req.ID = c.nextID
	p := &pendingRequest{id: req.ID, command: req.Command, reply: make(chan response, 1)}
	c.pending.Set(p.id, p)
	c.mu.Unlock()

	line, err := json.Marshal(req)
	if err != nil {
		c.forget(p.id)
		return nil, fmt.Errorf("encode %s request: %w", req.Command, err)
	}
	if _, err := c.w.Write(append(line, '\n')); err != nil {
		c.forget(p.id)
		if cerr := c.closeErr(); cerr != nil {
			return nil, cerr
		}
		return nil, backend.WrapTransport("write "+req.Command, err)
	}
	return p, nil
}

// forget removes id and reports whether it was still pending.
func (c *conn) forget(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending.Delete(id)
	return ok
}

// deliver resolves at most one pending request with line.
func (c *conn) deliver(line []byte) {
	var r response
	if err := json.Unmarshal(line, &r); err != nil {
		c.log.Warn().Str("event", "bad_reply").Err(err).Msg("unparseable worker output line")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var p *pendingRequest
	if r.ID != nil {
		var ok bool
		p, ok = c.pending.Delete(*r.ID)
		if !ok {
			c.log.Debug().Str("event", "late_reply").Uint64("id", *r.ID).Msg("dropping reply with no pending request")
			return
		}
	} else {
		oldest := c.pending.Oldest()
		if oldest == nil {
			c.log.Debug().Str("event", "unsolicited_reply").Msg("dropping reply with nothing pending")
			return
		}
		p = oldest.Value
		c.pending.Delete(oldest.Key)
	}
	p.reply <- r
}

// close fails every pending and future request with err. Only the first call
// has an effect.
func (c *conn) close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if err == nil {
		err = errors.New("worker connection closed")
	}
	c.err = err
	if n := c.pending.Len(); n > 0 {
		c.log.Debug().Str("event", "pending_released").Int("count", n).Msg("releasing pending requests")
	}
	c.pending = orderedmap.New[uint64, *pendingRequest]()
	close(c.closed)
}

func (c *conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}
