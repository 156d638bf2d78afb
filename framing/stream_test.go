package framing

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/anacrolix/log"
	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/ratelimit"
)

func newPipe() (*Stream, *Stream) {
	a, b := net.Pipe()
	sa := New(a, Config{SendQueueHighWaterBytes: 1 << 20}, log.Default)
	sb := New(b, Config{SendQueueHighWaterBytes: 1 << 20}, log.Default)
	return sa, sb
}

func unlimited() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{QPS: 1e9, Burst: 1 << 30})
}

func TestSendRecvRoundTrip(t *testing.T) {
	sa, sb := newPipe()
	defer sa.Close(nil)
	defer sb.Close(nil)

	require.NoError(t, sa.Send([]byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frame, err := sb.Recv(ctx, unlimited())
	require.NoError(t, err)
	require.Equal(t, "hello", string(frame))
}

func TestRecvRejectsOversizeDeclaredLength(t *testing.T) {
	sa, sb := newPipe()
	defer sa.Close(nil)
	defer sb.Close(nil)

	// Write a bare length header larger than MaxFrameBytes without a body;
	// Recv must reject before trying to read (declared) bytes.
	go func() {
		var header [4]byte
		header[0] = 0xFF // declared length way past MaxFrameBytes
		sa.conn.Write(header[:])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := sb.Recv(ctx, unlimited())
	require.Error(t, err)
	var tooLarge MessageTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestSendRejectsOversizeFrame(t *testing.T) {
	sa, sb := newPipe()
	defer sa.Close(nil)
	defer sb.Close(nil)

	big := make([]byte, MaxFrameBytes+1)
	err := sa.Send(big)
	require.Error(t, err)
	var tooLarge MessageTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestSendQueueOverflowClosesStream(t *testing.T) {
	a, b := net.Pipe()
	// Never drain b's reads so the queue backs up.
	sa := New(a, Config{SendQueueHighWaterBytes: 16}, log.Default)
	defer sa.Close(nil)
	defer b.Close()

	var lastErr error
	for i := 0; i < 10; i++ {
		if err := sa.Send([]byte("01234567")); err != nil {
			lastErr = err
			break
		}
	}
	require.Error(t, lastErr)
	var overflow QueueOverflowError
	require.ErrorAs(t, lastErr, &overflow)

	select {
	case <-sa.Closed():
	case <-time.After(time.Second):
		t.Fatal("stream did not close after queue overflow")
	}
}

func TestRecvFailsAfterRemoteClose(t *testing.T) {
	sa, sb := newPipe()
	sa.Close(nil)
	idle()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := sb.Recv(ctx, unlimited())
	require.Error(t, err)
}
