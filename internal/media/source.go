package media

import (
	"fmt"
	"sync"
	"time"

	"github.com/argus-video/argus/internal/logger"
)

// State describes the lifecycle of a FrameSource.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateReconnecting
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options tunes the reader loop.
type Options struct {
	// ReconnectDelay is the wait between connection attempts.
	ReconnectDelay time.Duration
	// MaxReconnects bounds consecutive failed connection attempts before
	// the source transitions to Failed. Zero means use the default.
	MaxReconnects int
	// ReadInterval paces the decode loop.
	ReadInterval time.Duration
	// OpenDecoder creates the capture backend. Defaults to the OpenCV
	// decoder when nil.
	OpenDecoder DecoderFactory
}

func (o *Options) withDefaults() {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 5
	}
	if o.ReadInterval <= 0 {
		o.ReadInterval = 30 * time.Millisecond
	}
	if o.OpenDecoder == nil {
		o.OpenDecoder = NewCaptureDecoder
	}
}

// FrameSource continuously decodes a video stream in a background
// goroutine and keeps only the most recent frame. Readers never block
// the decode loop and the decode loop never blocks readers.
type FrameSource struct {
	url  string
	name string
	opts Options
	log  *logger.Logger

	mu          sync.Mutex
	latest      *Frame
	state       State
	lastFrameAt time.Time
	started     bool

	stopCh chan struct{}
	done   chan struct{}
}

// NewFrameSource builds an unstarted source for the given stream URL.
// Name is the human-readable label attached to produced frames.
func NewFrameSource(url, name string, opts Options, log *logger.Logger) *FrameSource {
	opts.withDefaults()
	return &FrameSource{
		url:    url,
		name:   name,
		opts:   opts,
		log:    log,
		state:  StateConnecting,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the background reader. Calling Start twice is an error.
func (s *FrameSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("frame source %s already started", s.name)
	}
	s.started = true
	go s.run()
	return nil
}

// Read returns a copy of the most recent frame. The boolean is false
// when the source is not currently streaming or no frame has arrived
// yet. The caller owns the returned frame and must Close it.
func (s *FrameSource) Read() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming || s.latest == nil {
		return nil, false
	}
	return s.latest.Clone(), true
}

// State reports the current lifecycle state.
func (s *FrameSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastFrameAt reports when the most recent frame was decoded.
func (s *FrameSource) LastFrameAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrameAt
}

// Stop terminates the reader goroutine and releases the latest frame.
// It blocks until the goroutine has exited. Safe to call more than once.
func (s *FrameSource) Stop() {
	s.mu.Lock()
	if !s.started {
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	if s.latest != nil {
		s.latest.Close()
		s.latest = nil
	}
	s.state = StateStopped
	s.mu.Unlock()
}

func (s *FrameSource) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *FrameSource) run() {
	defer close(s.done)

	attempts := 0
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		dec := s.opts.OpenDecoder(s.url)
		if err := dec.Open(); err != nil {
			attempts++
			s.log.Warn("video source connection failed",
				"source", s.name, "attempt", attempts, "error", err)
			if attempts >= s.opts.MaxReconnects {
				s.log.Error("video source giving up after repeated failures",
					"source", s.name, "attempts", attempts)
				s.setState(StateFailed)
				return
			}
			s.setState(StateReconnecting)
			if !s.sleep(s.opts.ReconnectDelay) {
				return
			}
			continue
		}

		attempts = 0
		s.setState(StateStreaming)
		s.log.Info("video source streaming", "source", s.name, "url", s.url)

		if stopped := s.readLoop(dec); stopped {
			dec.Close()
			return
		}
		dec.Close()

		// Stream dropped mid-read; go back through the connect loop.
		s.setState(StateReconnecting)
		s.log.Warn("video source lost, reconnecting", "source", s.name)
		if !s.sleep(s.opts.ReconnectDelay) {
			return
		}
	}
}

// readLoop decodes until the stream fails or the source is stopped.
// Returns true when Stop was requested.
func (s *FrameSource) readLoop(dec Decoder) bool {
	ticker := time.NewTicker(s.opts.ReadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return true
		case <-ticker.C:
		}

		mat, ok := dec.Read()
		if !ok {
			return false
		}
		frame := &Frame{Mat: mat, Timestamp: time.Now(), Source: s.name}

		s.mu.Lock()
		if s.latest != nil {
			s.latest.Close()
		}
		s.latest = frame
		s.lastFrameAt = frame.Timestamp
		s.mu.Unlock()
	}
}

// sleep waits for d unless Stop is requested first.
func (s *FrameSource) sleep(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}
