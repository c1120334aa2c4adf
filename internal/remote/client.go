package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"time"

	"aidispatch/internal/backend"
)

func newTransport(connectTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// newClients returns the pooled client used for most calls and a client with
// keep-alives disabled used for embeddings. Timeout is 0 on both: every call
// carries its deadline in the context.
func newClients(connectTimeout time.Duration) (pooled, embed *http.Client) {
	pooled = &http.Client{Transport: newTransport(connectTimeout), Timeout: 0}
	tr := newTransport(connectTimeout)
	tr.DisableKeepAlives = true
	embed = &http.Client{Transport: tr, Timeout: 0}
	return pooled, embed
}

type callOpts struct {
	client    *http.Client
	closeConn bool
}

// do sends a request and returns the response once the status is 2xx. Every
// failure is a classified TransportError unless ctx itself ended.
func (b *Backend) do(ctx context.Context, o callOpts, method, path string, body any) (*http.Response, error) {
	op := method + " " + path
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", op, err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL()+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.closeConn {
		req.Close = true
	}
	cli := o.client
	if cli == nil {
		cli = b.client
	}
	resp, err := cli.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, backend.WrapTransport(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &backend.TransportError{
			Kind:       backend.TransportStatus,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(msg)),
		}
	}
	return resp, nil
}

// doJSON is do plus decoding the body into out. A nil out discards the body.
func (b *Backend) doJSON(ctx context.Context, o callOpts, method, path string, body, out any) error {
	resp, err := b.do(ctx, o, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return decodeError(method+" "+path, err)
	}
	return nil
}

// decodeError keeps truncated bodies in the eof class so they recover like a
// dropped connection.
func decodeError(op string, err error) error {
	kind := backend.ClassifyTransport(err)
	if kind == backend.TransportOther {
		kind = backend.TransportDecode
	}
	return &backend.TransportError{Kind: kind, Op: op, Err: err}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(ee.Stderr))
		}
		return nil, err
	}
	return out, nil
}
