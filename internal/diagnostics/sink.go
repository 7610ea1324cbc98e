package diagnostics

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/internal/observability"
)

// Warning is an advisory diagnostic. It never aborts an operation.
type Warning struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail"`
	Link   string `json:"link,omitempty"`
}

// Listener receives warnings published on a Sink.
type Listener func(Warning)

// Sink is the diagnostic channel of exactly one session. Subscribers are
// detached individually through the returned func, or all at once through
// Detach, so nothing leaks between logical test cases.
type Sink struct {
	logger *zap.Logger

	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
	closed    bool

	// onPublish is an optional hook, used for metrics.
	onPublish func(Warning)
}

// NewSink creates an empty sink.
func NewSink(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		logger:    logger.Named("diagnostics"),
		listeners: make(map[uint64]Listener),
	}
}

// OnPublish installs a hook invoked for every published warning, whether or
// not anyone is subscribed.
func (s *Sink) OnPublish(fn func(Warning)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPublish = fn
}

// Subscribe attaches fn and returns a func that detaches it. Subscribing to
// a closed sink is a no-op.
func (s *Sink) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Publish delivers w to every subscriber, synchronously and in no
// particular order.
func (s *Sink) Publish(w Warning) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	hook := s.onPublish
	s.mu.RUnlock()

	s.logger.Warn("Diagnostic", observability.DiagnosticFields(string(w.Code), w.Detail, w.Link)...)
	if hook != nil {
		hook(w)
	}
	for _, l := range listeners {
		l(w)
	}
}

// Subscribers returns the number of attached listeners.
func (s *Sink) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Detach removes all listeners while keeping the sink usable.
func (s *Sink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = make(map[uint64]Listener)
}

// Close detaches everything and drops all later publications.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = make(map[uint64]Listener)
}

// Recorder collects warnings in publication order. It is handy for callers
// that prefer a list to a callback.
type Recorder struct {
	mu       sync.Mutex
	warnings []Warning
}

// Listen is a Listener that appends to the recorder.
func (r *Recorder) Listen(w Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

// Warnings returns a copy of everything recorded so far.
func (r *Recorder) Warnings() []Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Codes returns the recorded warning codes in order.
func (r *Recorder) Codes() []Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]Code, 0, len(r.warnings))
	for _, w := range r.warnings {
		codes = append(codes, w.Code)
	}
	return codes
}
