package command

import (
	"context"
	"fmt"
	"time"
)

// Kind is a handler response type.
type Kind int

const (
	KindOK Kind = iota
	KindError
	KindNoHandler
	KindRequeue
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindError:
		return "error"
	case KindNoHandler:
		return "no_handler"
	case KindRequeue:
		return "requeue"
	case KindExpired:
		return "expired"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Response is what a handler returns after running a command. A requeue
// carries either a Delay relative to now or an absolute At time.
type Response struct {
	Kind  Kind
	Delay time.Duration
	At    time.Time
	Err   error
}

// Handler runs a command. Returning nil means "not mine" and lets the next
// resolution step try.
type Handler func(ctx context.Context, cmd *Command) *Response

// OK is a successful run.
func OK() *Response { return &Response{Kind: KindOK} }

// Error is a failed run.
func Error(err error) *Response { return &Response{Kind: KindError, Err: err} }

// NoHandler reports that nothing handled the command.
func NoHandler() *Response { return &Response{Kind: KindNoHandler} }

// Expired reports that the command timed out before running.
func Expired() *Response { return &Response{Kind: KindExpired} }

// Requeue asks for the command to run again after d.
func Requeue(d time.Duration) *Response { return &Response{Kind: KindRequeue, Delay: d} }

// RequeueAt asks for the command to run again at t.
func RequeueAt(t time.Time) *Response { return &Response{Kind: KindRequeue, At: t} }

// IsDelta reports whether a requeue is relative to now.
func (r *Response) IsDelta() bool { return r.At.IsZero() }
