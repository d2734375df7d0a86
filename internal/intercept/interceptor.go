package intercept

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/stackwise-dev/stackwise/internal/messages"
	"github.com/stackwise-dev/stackwise/internal/record"
)

// DefaultInvokeTimeout bounds each fast-backend call. Expiry counts as a
// failure for breaker accounting.
const DefaultInvokeTimeout = 10 * time.Second

// RoutePath names which path served a request.
type RoutePath string

// Route outcomes.
const (
	RouteFast     RoutePath = "fast"
	RouteNative   RoutePath = "native"
	RouteFallback RoutePath = "fallback"
)

// Request is one intercepted tool call.
type Request struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Response is the served result plus which path produced it.
type Response struct {
	Payload *Payload  `json:"payload"`
	Route   RoutePath `json:"route"`
}

// SessionStats counts routed operations for one interceptor session.
type SessionStats struct {
	Total     int       `json:"total_operations"`
	Fast      int       `json:"fast_operations"`
	Native    int       `json:"native_operations"`
	Fallback  int       `json:"fallback_operations"`
	StartTime time.Time `json:"start_time"`
}

// StateStore persists breaker state between invocations. *record.Store
// satisfies it.
type StateStore interface {
	GetState(name string) ([]byte, error)
	PutState(name string, data []byte) error
}

// Options configures an Interceptor.
type Options struct {
	Fast          Backend
	Native        Backend
	Breaker       BreakerConfig
	InvokeTimeout time.Duration
	States        StateStore
	WarnWriter    io.Writer
}

// Interceptor routes tool requests, preferring the fast backend while its
// circuit allows and always falling back to the native path.
type Interceptor struct {
	fast    Backend
	native  Backend
	breaker *Breaker
	timeout time.Duration
	states  StateStore
	warn    io.Writer

	mu    sync.Mutex
	stats SessionStats
}

// New creates an interceptor. Persisted breaker state for the fast backend is
// restored when a state store is provided.
func New(opts Options) (*Interceptor, error) {
	if opts.Fast == nil {
		return nil, errors.New(messages.InterceptFastBackendRequired)
	}
	if opts.Native == nil {
		return nil, errors.New(messages.InterceptNativeBackendRequired)
	}
	timeout := opts.InvokeTimeout
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	warn := opts.WarnWriter
	if warn == nil {
		warn = os.Stderr
	}
	it := &Interceptor{
		fast:    opts.Fast,
		native:  opts.Native,
		breaker: NewBreaker(opts.Breaker),
		timeout: timeout,
		states:  opts.States,
		warn:    warn,
		stats:   SessionStats{StartTime: time.Now().UTC()},
	}
	it.restoreState()
	return it, nil
}

func (it *Interceptor) stateKey() string {
	return "interceptor/" + it.fast.Name()
}

func (it *Interceptor) restoreState() {
	if it.states == nil {
		return
	}
	data, err := it.states.GetState(it.stateKey())
	if errors.Is(err, record.ErrNotFound) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintf(it.warn, "%v\n", fmt.Errorf(messages.InterceptStateLoadFmt, it.fast.Name(), err))
		return
	}
	var state BreakerState
	if err := json.Unmarshal(data, &state); err != nil {
		_, _ = fmt.Fprintf(it.warn, "%v\n", fmt.Errorf(messages.InterceptStateLoadFmt, it.fast.Name(), err))
		return
	}
	it.breaker.Restore(state)
}

// saveState persists the breaker snapshot. Persistence failures degrade to a
// warning; the request outcome is never affected.
func (it *Interceptor) saveState() {
	if it.states == nil {
		return
	}
	data, err := json.Marshal(it.breaker.State())
	if err == nil {
		err = it.states.PutState(it.stateKey(), data)
	}
	if err != nil {
		_, _ = fmt.Fprintf(it.warn, "%v\n", fmt.Errorf(messages.InterceptStateSaveFmt, it.fast.Name(), err))
	}
}

// Stats returns a snapshot of this session's counters.
func (it *Interceptor) Stats() SessionStats {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.stats
}

// Circuit exposes the current breaker state.
func (it *Interceptor) Circuit() Circuit {
	return it.breaker.Status()
}

func (it *Interceptor) count(update func(*SessionStats)) {
	it.mu.Lock()
	it.stats.Total++
	update(&it.stats)
	it.mu.Unlock()
}

// Route serves one request. In closed and half-open states the fast backend
// is attempted first with a bounded timeout; any fast-path failure falls back
// to the native path for this request and is counted against the breaker. A
// native-path failure is never suppressed: if both paths fail, the native
// error is returned.
func (it *Interceptor) Route(ctx context.Context, req Request) (*Response, error) {
	if req.Tool == "" {
		return nil, errors.New(messages.InterceptToolRequired)
	}
	if !knownTool(req.Tool) {
		return nil, fmt.Errorf(messages.InterceptUnknownToolFmt, req.Tool)
	}

	if it.breaker.Allow() {
		payload, err := it.invokeFast(ctx, req)
		if err == nil {
			it.breaker.RecordSuccess()
			it.saveState()
			it.count(func(s *SessionStats) { s.Fast++ })
			return &Response{Payload: payload, Route: RouteFast}, nil
		}
		it.breaker.RecordFailure()
		it.saveState()

		payload, nativeErr := it.native.Invoke(ctx, req.Tool, req.Arguments)
		if nativeErr != nil {
			it.count(func(s *SessionStats) { s.Native++ })
			return nil, fmt.Errorf(messages.InterceptNativeFailedFmt, req.Tool, nativeErr)
		}
		it.count(func(s *SessionStats) { s.Fallback++ })
		return &Response{Payload: payload, Route: RouteFallback}, nil
	}

	payload, err := it.native.Invoke(ctx, req.Tool, req.Arguments)
	it.count(func(s *SessionStats) { s.Native++ })
	if err != nil {
		return nil, fmt.Errorf(messages.InterceptNativeFailedFmt, req.Tool, err)
	}
	return &Response{Payload: payload, Route: RouteNative}, nil
}

func (it *Interceptor) invokeFast(ctx context.Context, req Request) (*Payload, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, it.timeout)
	defer cancel()
	return it.fast.Invoke(invokeCtx, req.Tool, req.Arguments)
}
