package net

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/l1jgo/simcore/internal/net/packet"
	"go.uber.org/zap"
)

// SessionOptions sizes queues and sets the per-connection limits.
type SessionOptions struct {
	InQueueSize  int
	OutQueueSize int
	MaxPerSecond int // inbound messages per second; 0 = unlimited
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the tick loop.
type Session struct {
	ID    uint64
	Owner uuid.UUID
	conn  *websocket.Conn
	opts  SessionOptions

	state  atomic.Int32  // packet.SessionState stored as int32
	entity atomic.Uint64 // bound character id, 0 before join
	rtt    atomic.Int64  // smoothed round trip, ns

	InQueue  chan []byte // tick loop reads messages from here
	OutQueue chan []byte // writer goroutine reads from here

	IP   string
	Name string

	outBuf [][]byte // buffered messages, flushed by OutputSystem (tick loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second message limiter (readLoop goroutine only, no lock needed)
	msgCount   int
	msgResetAt int64

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		Owner:    uuid.New(),
		conn:     conn,
		opts:     opts,
		InQueue:  make(chan []byte, opts.InQueueSize),
		OutQueue: make(chan []byte, opts.OutQueueSize),
		IP:       conn.RemoteAddr().String(),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Entity returns the bound character id, or 0.
func (s *Session) Entity() uint64 { return s.entity.Load() }

func (s *Session) BindEntity(id uint64) { s.entity.Store(id) }

// RoundTrip is the smoothed ping/pong round trip. Zero until the first pong.
func (s *Session) RoundTrip() time.Duration {
	return time.Duration(s.rtt.Load())
}

// observeRoundTrip folds one sample into the estimate (EWMA, alpha 1/8).
func (s *Session) observeRoundTrip(sample time.Duration) {
	if sample < 0 {
		return
	}
	prev := s.rtt.Load()
	if prev == 0 {
		s.rtt.Store(int64(sample))
		return
	}
	s.rtt.Store(prev + (int64(sample)-prev)/8)
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetPongHandler(func(appData string) error {
		if len(appData) == 8 {
			sent := int64(binary.BigEndian.Uint64([]byte(appData)))
			s.observeRoundTrip(time.Duration(time.Now().UnixNano() - sent))
		}
		s.extendReadDeadline()
		return nil
	})
	s.extendReadDeadline()

	go s.readLoop()
	go s.writeLoop()
}

func (s *Session) extendReadDeadline() {
	if s.opts.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}
}

// Send buffers a message for sending. The message is not written until
// FlushOutput is called by OutputSystem.
// Called only from the tick loop goroutine; no lock needed on outBuf.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// SendMessage encodes body as a typ envelope and buffers it.
func (s *Session) SendMessage(typ string, body any) {
	data, err := packet.Encode(typ, body)
	if err != nil {
		s.log.Error("encode outbound message", zap.String("type", typ), zap.Error(err))
		return
	}
	s.Send(data)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads binary frames from the
// websocket and pushes them onto InQueue for the tick loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		payload, err := readMessage(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if payload == nil {
			continue
		}
		s.extendReadDeadline()

		if s.opts.MaxPerSecond > 0 {
			now := time.Now().Unix()
			if now != s.msgResetAt {
				s.msgCount = 0
				s.msgResetAt = now
			}
			s.msgCount++
			if s.msgCount > s.opts.MaxPerSecond {
				s.log.Warn("message rate exceeded, disconnecting", zap.Int("per_second", s.msgCount))
				return
			}
		}

		// Block until InQueue has space or the session closes; dropping
		// move intents would desync the client.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It writes queued messages and
// sends timestamped pings used for the round-trip estimate.
func (s *Session) writeLoop() {
	defer s.Close()

	var pings <-chan time.Time
	if s.opts.PingInterval > 0 {
		t := time.NewTicker(s.opts.PingInterval)
		defer t.Stop()
		pings = t.C
	}

	for {
		select {
		case data := <-s.OutQueue:
			if err := writeMessage(s.conn, data, s.opts.WriteTimeout); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-pings:
			var stamp [8]byte
			binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))
			if err := s.conn.WriteControl(websocket.PingMessage, stamp[:], deadline(s.opts.WriteTimeout)); err != nil {
				if !s.closed.Load() {
					s.log.Debug("ping error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				deadline(time.Second))
			return
		}
	}
}
