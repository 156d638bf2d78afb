// Package framing implements FramedStream: a length-prefixed frame channel
// over a reliable byte stream, with inbound rate limiting and a hard frame
// size cap (spec §4.1, §6). The background write loop follows a
// mutex-guarded buffer with a broadcast condition that wakes the writer
// when there's something new to send, and a SetOnce that the writer and
// the reader both watch to learn the stream died (see DESIGN.md).
package framing

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/log"

	"github.com/shardmesh/netcore/ratelimit"
)

// MaxFrameBytes is the hard cap on a single frame's declared length
// (spec §6 NETWORK_MESSAGE_MAX_SIZE_BYTES). Larger declared sizes MUST be
// rejected before any allocation for the body is made.
const MaxFrameBytes = 512 * 1024 * 1024

const lengthPrefixBytes = 4

// Config carries the one back-pressure knob FramedStream needs beyond the
// fixed MaxFrameBytes cap.
type Config struct {
	// SendQueueHighWaterBytes is the outbound queue threshold past which
	// Send fails with QueueOverflowError instead of buffering further
	// (spec §4.1, §5).
	SendQueueHighWaterBytes int
}

// Stream wraps a reliable, full-duplex byte stream (conceptually a
// net.Conn, but only io.Reader/io.Writer/io.Closer are required) as a
// channel of frames.
type Stream struct {
	conn   io.ReadWriteCloser
	cfg    Config
	logger log.Logger

	closed    chansync.SetOnce
	closeOnce sync.Once
	closeErr  error

	mu         sync.Mutex
	writeCond  chansync.BroadcastCond
	queue      [][]byte
	queueBytes int
}

// New constructs a Stream over conn and starts its background write loop.
func New(conn io.ReadWriteCloser, cfg Config, logger log.Logger) *Stream {
	s := &Stream{conn: conn, cfg: cfg, logger: logger}
	go s.writeLoop()
	return s
}

// Closed returns a channel closed once the stream has halted, for callers
// (the owning PeerStateMachine) that need to react exactly once
// (spec §5 "ConnectionGuard ... exactly once").
func (s *Stream) Closed() <-chan struct{} { return s.closed.Done() }

// Close halts the stream; safe to call more than once and from any
// goroutine. Only the first call's reason is recorded.
func (s *Stream) Close(reason error) error {
	s.closeOnce.Do(func() {
		if reason == nil {
			reason = ErrClosed
		}
		s.closeErr = reason
		s.closed.Set()
		s.conn.Close()
	})
	return nil
}

// Send enqueues frame for the write loop. It fails with QueueOverflowError
// if the outbound queue is already backed up past
// Config.SendQueueHighWaterBytes, or ErrClosed if the stream has halted.
// Oversize outbound frames are rejected the same way Recv rejects oversize
// inbound ones (spec §4.5 "Reject outbound frames exceeding MAX_FRAME_BYTES").
func (s *Stream) Send(frame []byte) error {
	if len(frame) > MaxFrameBytes {
		return MessageTooLargeError{Declared: uint32(len(frame))}
	}
	if s.closed.IsSet() {
		return ErrClosed
	}

	s.mu.Lock()
	if s.cfg.SendQueueHighWaterBytes > 0 && s.queueBytes+len(frame) > s.cfg.SendQueueHighWaterBytes {
		pending := s.queueBytes
		s.mu.Unlock()
		err := QueueOverflowError{PendingBytes: pending}
		s.Close(err)
		return err
	}
	s.queue = append(s.queue, frame)
	s.queueBytes += len(frame)
	s.mu.Unlock()
	s.writeCond.Broadcast()
	return nil
}

func (s *Stream) writeLoop() {
	defer s.Close(nil)
	var header [lengthPrefixBytes]byte
	for {
		if s.closed.IsSet() {
			return
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			writeCond := s.writeCond.Signaled()
			s.mu.Unlock()
			select {
			case <-s.closed.Done():
				return
			case <-writeCond:
			}
			continue
		}
		frame := s.queue[0]
		s.queue = s.queue[1:]
		s.queueBytes -= len(frame)
		s.mu.Unlock()

		binary.BigEndian.PutUint32(header[:], uint32(len(frame)))
		if _, err := s.conn.Write(header[:]); err != nil {
			s.logWriteErr(err)
			return
		}
		if _, err := s.conn.Write(frame); err != nil {
			s.logWriteErr(err)
			return
		}
	}
}

func (s *Stream) logWriteErr(err error) {
	if IsExpectedClose(err) {
		s.logger.WithDefaultLevel(log.Debug).Printf("framing: write: %v", err)
	} else {
		s.logger.WithDefaultLevel(log.Error).Printf("framing: write: %v", err)
	}
}

// Recv reads the next frame: a 4-byte big-endian length prefix, then that
// many bytes of body. Before the body is read, `declared` bytes of budget
// are requested from limiter and the call suspends until it's available
// (spec §4.1, §4.3). Oversize declared lengths are rejected before any body
// allocation.
func (s *Stream) Recv(ctx context.Context, limiter *ratelimit.Limiter) ([]byte, error) {
	var header [lengthPrefixBytes]byte
	if _, err := io.ReadFull(s.conn, header[:]); err != nil {
		return nil, s.classifyReadErr(err)
	}
	declared := binary.BigEndian.Uint32(header[:])
	if declared > MaxFrameBytes {
		return nil, MessageTooLargeError{Declared: declared}
	}

	if limiter != nil {
		if err := limiter.Acquire(ctx, int(declared)); err != nil {
			return nil, err
		}
	}

	body := make([]byte, declared)
	if _, err := io.ReadFull(s.conn, body); err != nil {
		return nil, s.classifyReadErr(err)
	}
	return body, nil
}

func (s *Stream) classifyReadErr(err error) error {
	if s.closed.IsSet() {
		return ErrClosed
	}
	if IsExpectedClose(err) {
		return err
	}
	s.logger.WithDefaultLevel(log.Error).Printf("framing: read: %v", err)
	return IOError{Err: err}
}

// idle is only used by tests that need a moment for the write loop to
// drain before asserting on the underlying conn.
func idle() { time.Sleep(5 * time.Millisecond) }
