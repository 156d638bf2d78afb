package peer

import (
	"context"
	"errors"
	"time"

	"github.com/anacrolix/log"

	"github.com/shardmesh/netcore/codec"
	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/framing"
	"github.com/shardmesh/netcore/internal/metrics"
	"github.com/shardmesh/netcore/wire"
)

// runSteadyState implements spec §4.5 "Steady-state reception (Ready)":
// one inbound frame at a time, in order, on this Machine's own goroutine.
func (m *Machine) runSteadyState(ctx context.Context) error {
	for {
		data, err := m.recvRaw(ctx)
		if err != nil {
			var tooLarge framing.MessageTooLargeError
			if errors.As(err, &tooLarge) {
				return m.ban(BanAbusive)
			}
			if framing.IsExpectedClose(err) {
				return nil
			}
			return err
		}

		conn := m.Connection()
		now := time.Now()
		conn.MarkReceived(now)
		conn.Stats.RxBytes.Add(int64(len(data)))
		conn.Stats.RxMessages.Add(1)
		metrics.FramesRxBytes.Add(float64(len(data)))

		msg, err := m.decodeFrame(data)
		if err != nil {
			m.deps.Logger.WithDefaultLevel(log.Debug).Printf("peer: steady-state decode: %v", err)
			return err
		}

		if !wire.IsAllowed(m.cfg.Tier, msg) {
			return m.ban(BanAbusive)
		}

		if routed, ok := msg.(wire.Routed); ok {
			if m.dropDuplicateRouted(routed.Message, now) {
				m.deps.Events.Emit(events.RoutedMessageDropped{Reason: "duplicate"})
				metrics.RoutedDroppedCounter.WithLabelValues("duplicate").Inc()
				continue
			}
			if _, ok := routed.Message.Body.(wire.ForwardTx); ok {
				if !m.deps.Dispatch.AdmitForwardTx() {
					m.deps.Events.Emit(events.RoutedMessageDropped{Reason: "forward-tx throttled"})
					metrics.RoutedDroppedCounter.WithLabelValues("forward-tx throttled").Inc()
					continue
				}
			}
		}

		if block, ok := msg.(wire.Block); ok {
			conn.MarkBlockReceived(block.Header.Hash)
			for height := int64(block.Header.Height); ; {
				cur := conn.ChainHeight.Load()
				if height <= cur || conn.ChainHeight.CompareAndSwap(cur, height) {
					break
				}
			}
		}

		m.deps.Events.Emit(events.MessageProcessed{Kind: msg.Kind().String()})

		if err := m.deps.Dispatch.Dispatch(conn, msg); err != nil {
			return err
		}
	}
}

// dropDuplicateRouted implements step 4 of "Steady-state reception": a
// Routed message whose (author, target, signature) was seen in the last
// RoutedDedupWindow is a duplicate and must not reach Dispatch.
func (m *Machine) dropDuplicateRouted(msg wire.RoutedMessage, now time.Time) bool {
	key := routedDedupKey(msg)
	if v, ok := m.dedup.Get(key); ok {
		if last, ok := v.(time.Time); ok && now.Sub(last) < RoutedDedupWindow {
			return true
		}
	}
	m.dedup.Add(key, now)
	return false
}

// Send implements the spec §4.5 "Sending policy": suppress Block
// retransmission to a peer that already gave it to us, record BlockRequest
// hashes we ask for, and reject anything over the frame cap before it ever
// reaches the wire.
func (m *Machine) Send(msg wire.Message) error {
	conn := m.Connection()
	if conn == nil {
		return ProtocolError{Reason: "send before handshake completed"}
	}

	switch typed := msg.(type) {
	case wire.Block:
		if conn.HasReceivedBlock(typed.Header.Hash) {
			return nil
		}
	case wire.BlockRequest:
		conn.RecordBlockRequest(typed.Hash)
	}

	data, err := codec.Encode(msg, m.encoding)
	if err != nil {
		return err
	}
	if len(data) > framing.MaxFrameBytes {
		return framing.MessageTooLargeError{Declared: uint32(len(data))}
	}
	if err := m.stream.Send(data); err != nil {
		return err
	}
	conn.Stats.TxBytes.Add(int64(len(data)))
	conn.Stats.TxMessages.Add(1)
	metrics.FramesTxBytes.Add(float64(len(data)))
	return nil
}
