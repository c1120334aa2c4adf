package backend

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// TransportKind classifies a transport failure so recovery decisions never
// depend on error message text.
type TransportKind string

const (
	TransportOther         TransportKind = "other"
	TransportConnReset     TransportKind = "conn-reset"
	TransportEOF           TransportKind = "eof"
	TransportTimeout       TransportKind = "timeout"
	TransportRefused       TransportKind = "refused"
	TransportStatus        TransportKind = "http-status"
	TransportDecode        TransportKind = "decode"
	TransportProcessExited TransportKind = "process-exited"
	TransportShell         TransportKind = "shell"
)

// TransportError is a classified I/O failure talking to a backend.
type TransportError struct {
	Kind TransportKind
	Op   string
	// StatusCode is set for TransportStatus.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Op + ": " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrTransport wraps err as a TransportError of the given kind.
func ErrTransport(kind TransportKind, op string, err error) error {
	return &TransportError{Kind: kind, Op: op, Err: err}
}

// WrapTransport classifies err and wraps it. A nil err stays nil.
func WrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Kind: ClassifyTransport(err), Op: op, Err: err}
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// TransportKindOf returns the kind of the TransportError inside err.
func TransportKindOf(err error) (TransportKind, bool) {
	var te *TransportError
	if !errors.As(err, &te) {
		return "", false
	}
	return te.Kind, true
}

// ClassifyTransport maps a raw network or I/O error to a TransportKind.
func ClassifyTransport(err error) TransportKind {
	if err == nil {
		return ""
	}
	if kind, ok := TransportKindOf(err); ok {
		return kind
	}
	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNABORTED):
		return TransportConnReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return TransportEOF
	case errors.Is(err, syscall.ECONNREFUSED):
		return TransportRefused
	case errors.Is(err, context.DeadlineExceeded):
		return TransportTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TransportTimeout
	}
	return TransportOther
}
