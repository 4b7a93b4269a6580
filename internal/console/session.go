package console

import (
	"context"
	"sync"
	"time"

	"srvpanel/internal/utils"
)

// ReconnectNoticeTTL is how long "reconnected" shows before reverting to
// "connected".
const ReconnectNoticeTTL = 1000 * time.Millisecond

// Notice is the console connection readout.
type Notice int

const (
	NoticeConnecting Notice = iota
	NoticeConnected
	NoticeReconnected
	NoticeDisconnected
)

func (n Notice) String() string {
	switch n {
	case NoticeConnected:
		return "Connected to console"
	case NoticeReconnected:
		return "Reconnected to console"
	case NoticeDisconnected:
		return "Disconnected from console"
	default:
		return "Connecting to console..."
	}
}

// Session reacts to console stream opens: the first one requests a player
// listing from the host, later ones flash a reconnected notice.
type Session struct {
	ctx       context.Context
	list      func(ctx context.Context) (string, error)
	notify    func(Notice)
	afterFunc func(d time.Duration, f func()) func() bool
	logger    *utils.Logger

	mu         sync.Mutex
	stopRevert func() bool
}

// NewSession wires list and notify. Either may be nil.
func NewSession(ctx context.Context, list func(ctx context.Context) (string, error), notify func(Notice), logger *utils.Logger) *Session {
	return &Session{
		ctx:    ctx,
		list:   list,
		notify: notify,
		logger: logger,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// HandleOpen is a stream.Hooks Open function.
func (s *Session) HandleOpen(first bool) {
	if first {
		s.emit(NoticeConnected)
		if s.list != nil {
			go func() {
				if _, err := s.list(s.ctx); err != nil {
					s.logf("console listing request failed: %v", err)
				}
			}()
		}
		return
	}

	s.emit(NoticeReconnected)
	s.mu.Lock()
	if s.stopRevert != nil {
		s.stopRevert()
	}
	s.stopRevert = s.afterFunc(ReconnectNoticeTTL, func() { s.emit(NoticeConnected) })
	s.mu.Unlock()
}

// HandleClosed is a stream.Hooks Closed function.
func (s *Session) HandleClosed(error) {
	s.mu.Lock()
	if s.stopRevert != nil {
		s.stopRevert()
		s.stopRevert = nil
	}
	s.mu.Unlock()
	s.emit(NoticeDisconnected)
}

func (s *Session) emit(n Notice) {
	if s.notify != nil {
		s.notify(n)
	}
}

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Writef(format, args...)
	}
}
