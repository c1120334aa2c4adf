package subproc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
	"aidispatch/internal/common/fsutil"
)

// process is one spawned worker. It is never reused after exit.
type process struct {
	cmd    *exec.Cmd
	pid    int
	stdin  io.WriteCloser
	conn   *conn
	stderr *tailBuffer
	log    zerolog.Logger

	exited  chan struct{}
	waitErr error // valid once exited is closed
}

// spawn starts the worker and its supervisor goroutine. onExit runs once the
// process has been reaped.
func (b *Backend) spawn(onExit func(*process)) (*process, error) {
	args := append([]string(nil), b.cfg.Args...)
	if b.cfg.Script != "" {
		script, err := fsutil.ExpandHome(b.cfg.Script)
		if err != nil {
			return nil, err
		}
		args = append([]string{script}, args...)
	}
	cmd := exec.Command(b.cfg.Command, args...)
	cmd.Dir = b.cfg.Dir
	if len(b.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), b.cfg.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	tail := newTailBuffer(stderrTailBytes)
	errLog := b.log.With().Str("stream", "stderr").Logger()
	cmd.Stderr = &lineSplitter{fn: func(line []byte) {
		tail.add(line)
		errLog.Debug().Msg(string(line))
	}}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", b.cfg.Command, err)
	}
	p := &process{cmd: cmd, pid: cmd.Process.Pid, stdin: stdin, stderr: tail, exited: make(chan struct{})}
	p.log = b.log.With().Int("pid", p.pid).Logger()
	p.conn = newConn(b.Identity(), stdin, b.cfg.RequestTimeout, p.log)

	go p.supervise(stdout, onExit)
	return p, nil
}

// supervise pumps stdout into the correlator until EOF, then reaps the
// process and releases every waiter.
func (p *process) supervise(stdout io.Reader, onExit func(*process)) {
	_, _ = io.Copy(&lineSplitter{fn: p.conn.deliver}, stdout)
	err := p.cmd.Wait()
	if err == nil {
		err = errors.New("exited with status 0")
	}
	p.waitErr = err
	p.conn.close(backend.ErrTransport(backend.TransportProcessExited, "worker", err))
	close(p.exited)
	onExit(p)
}

// stop closes stdin, asks the worker to terminate and kills it after grace.
// It returns once the process has been reaped.
func (p *process) stop(grace time.Duration) {
	p.conn.close(backend.ErrTransport(backend.TransportProcessExited, "worker", errors.New("shut down")))
	_ = p.stdin.Close()
	select {
	case <-p.exited:
		return
	default:
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-p.exited:
	case <-t.C:
		p.log.Warn().Str("event", "kill").Dur("grace", grace).Msg("worker ignored SIGTERM")
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
}

// exitDetail describes why the worker ended, including its stderr tail.
func (p *process) exitDetail() error {
	tail := p.stderr.String()
	if tail == "" {
		return fmt.Errorf("worker exited: %w", p.waitErr)
	}
	return fmt.Errorf("worker exited: %w; stderr: %s", p.waitErr, tail)
}
