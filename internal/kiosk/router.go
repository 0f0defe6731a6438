package kiosk

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yadhu-dev/library-automation-api/internal/service"
)

// State names a step of the scan pipeline.
type State string

const (
	StateIdle                   State = "idle"
	StateAwaitingClassification State = "awaiting_classification"
	StatePopulateStudent        State = "populate_student"
	StatePopulateBook           State = "populate_book"
	StateAutoSubmit             State = "auto_submit"
)

// Event is the outcome of one scanned line, fanned out to kiosk screens.
type Event struct {
	Kind    service.IdentifierKind `json:"kind"`
	Value   string                 `json:"value"`
	State   State                  `json:"state"`
	Student *service.StudentLookup `json:"student,omitempty"`
	Book    *service.BookLookup    `json:"book,omitempty"`
	Error   string                 `json:"error,omitempty"`
	At      time.Time              `json:"at"`
}

type scanCoordinator interface {
	ClassifyIdentifier(value string) service.IdentifierKind
	LocateStudent(ctx context.Context, rollNo string) (*service.StudentLookup, error)
	LocateBook(ctx context.Context, bookID string) (*service.BookLookup, error)
}

type scanMetrics interface {
	RecordKioskScan(kind string)
}

// Router drives scanned identifiers through an explicit state machine:
// Idle, AwaitingClassification, then PopulateStudent or PopulateBook, then
// AutoSubmit. The lookup handlers are invoked directly; the screen only
// renders the resulting events.
type Router struct {
	circulation scanCoordinator
	metrics     scanMetrics
	logger      *zap.Logger

	mu          sync.Mutex
	state       State
	subscribers map[chan Event]struct{}
}

// NewRouter constructs a Router in the Idle state.
func NewRouter(circulation scanCoordinator, metrics scanMetrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		circulation: circulation,
		metrics:     metrics,
		logger:      logger,
		state:       StateIdle,
		subscribers: make(map[chan Event]struct{}),
	}
}

// State reports the machine's current state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers a listener for scan events. The returned cancel
// function must be called when the listener goes away.
func (r *Router) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()
	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// HandleLine processes one line from the device stream. Blank lines are
// dropped without touching the state machine.
func (r *Router) HandleLine(ctx context.Context, line string) {
	value := strings.TrimSpace(line)
	if value == "" {
		return
	}

	r.setState(StateAwaitingClassification)
	kind := r.circulation.ClassifyIdentifier(value)
	if r.metrics != nil {
		r.metrics.RecordKioskScan(string(kind))
	}

	event := Event{Kind: kind, Value: value, At: time.Now().UTC()}
	switch kind {
	case service.IdentifierBook:
		r.setState(StatePopulateBook)
		r.setState(StateAutoSubmit)
		book, err := r.circulation.LocateBook(ctx, value)
		if err != nil {
			event.Error = err.Error()
			r.logger.Warn("kiosk book lookup failed", zap.String("book_id", value), zap.Error(err))
		} else {
			event.Book = book
		}
	default:
		r.setState(StatePopulateStudent)
		r.setState(StateAutoSubmit)
		student, err := r.circulation.LocateStudent(ctx, value)
		if err != nil {
			event.Error = err.Error()
			r.logger.Warn("kiosk student lookup failed", zap.String("roll_no", value), zap.Error(err))
		} else {
			event.Student = student
		}
	}

	r.setState(StateIdle)
	event.State = StateIdle
	r.publish(event)
}

func (r *Router) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Router) publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Slow consumers drop events rather than stall the stream.
		}
	}
}
