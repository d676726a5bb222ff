package stream

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/andrey-viktorov/sse-test-server/pkg/sse"
	"github.com/google/uuid"
)

// DefaultTickInterval is the spacing between periodic update frames.
const DefaultTickInterval = time.Second

// State is a position in the session lifecycle.
type State int32

const (
	StateOpening State = iota
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// FrameWriter is the buffered stream a session writes to. Flush must report
// an error once the client has gone away; *bufio.Writer satisfies it.
type FrameWriter interface {
	io.Writer
	Flush() error
}

// Options customizes a Session. Zero values select the defaults.
type Options struct {
	TickInterval time.Duration
	RemoteAddr   string
	// Stop ends the session silently when closed, e.g. on process shutdown.
	Stop   <-chan struct{}
	Logger *slog.Logger
	// OnTransition is called from the session goroutine on every state change.
	OnTransition func(from, to State)
}

// Session is the state of one accepted event stream. Its counter and timers
// are owned by the goroutine running Run and are never shared between sessions.
type Session struct {
	ID         string
	CloseAfter int
	RemoteAddr string
	Created    time.Time

	tickInterval time.Duration
	stop         <-chan struct{}
	logger       *slog.Logger
	onTransition func(from, to State)

	state   atomic.Int32
	counter atomic.Int64

	ticker   *time.Ticker
	deadline *time.Timer
}

type connectedPayload struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	CloseAfter int    `json:"closeAfter"`
}

type updatePayload struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type closingPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewSession creates a session and arms its close timer for closeAfter milliseconds.
func NewSession(closeAfter int, opts Options) *Session {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		ID:           uuid.NewString(),
		CloseAfter:   closeAfter,
		RemoteAddr:   opts.RemoteAddr,
		Created:      time.Now(),
		tickInterval: opts.TickInterval,
		stop:         opts.Stop,
		onTransition: opts.OnTransition,
	}
	s.logger = opts.Logger.With("session", s.ID)
	s.deadline = time.NewTimer(closeDelay(closeAfter))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// EventsSent returns how many periodic update frames were written.
func (s *Session) EventsSent() int64 {
	return s.counter.Load()
}

// Run drives the session until the close timer fires, the client disconnects
// or the stop channel closes. Both timers are stopped before it returns.
func (s *Session) Run(w FrameWriter) {
	defer s.stopTimers()

	if err := s.writeJSON(w, "", "", connectedPayload{
		Type:       "connected",
		Message:    "Connection established",
		CloseAfter: s.CloseAfter,
	}); err != nil {
		s.disconnected(err)
		return
	}

	if s.CloseAfter <= 0 {
		s.closeStream(w)
		return
	}

	s.transition(StateStreaming)
	s.ticker = time.NewTicker(s.tickInterval)

	for {
		select {
		case <-s.deadline.C:
			s.closeStream(w)
			return

		case <-s.ticker.C:
			// A due close timer wins over a tick that fired at the same time.
			select {
			case <-s.deadline.C:
				s.closeStream(w)
				return
			default:
			}

			if err := s.emitUpdate(w); err != nil {
				s.disconnected(err)
				return
			}

		case <-s.stop:
			s.logger.Debug("session stopped by server shutdown")
			s.transition(StateClosed)
			return
		}
	}
}

func (s *Session) emitUpdate(w FrameWriter) error {
	id := s.counter.Load()
	err := s.writeJSON(w, strconv.FormatInt(id, 10), "", updatePayload{
		ID:        id,
		Type:      "update",
		Message:   fmt.Sprintf("Event update %d", id),
		Timestamp: sse.Timestamp(time.Now()),
	})
	if err != nil {
		return err
	}
	s.counter.Add(1)
	return nil
}

func (s *Session) closeStream(w FrameWriter) {
	s.stopTimers()
	s.transition(StateClosing)
	s.logger.Info("server is intentionally closing the SSE connection", "events_sent", s.EventsSent())

	err := s.writeJSON(w, "", "closing", closingPayload{
		Type:      "closing",
		Message:   "Server is closing the connection",
		Timestamp: sse.Timestamp(time.Now()),
	})
	if err != nil {
		s.logger.Debug("closing frame not delivered", "error", err)
	}
	s.transition(StateClosed)
}

func (s *Session) disconnected(err error) {
	s.stopTimers()
	s.transition(StateClosed)
	s.logger.Info("client disconnected", "events_sent", s.EventsSent(), "reason", err)
}

func (s *Session) writeJSON(w FrameWriter, id, event string, payload interface{}) error {
	frame, err := sse.NewJSONFrame(id, event, payload)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := frame.WriteTo(w); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

func (s *Session) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

func (s *Session) stopTimers() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.deadline.Stop()
}
