package chunkcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/wire"
)

func hash(fill byte) wire.Hash {
	var h wire.Hash
	for i := range h {
		h[i] = fill
	}
	return h
}

func header(chunkHash wire.Hash, prev wire.Hash, height wire.BlockHeight, shard wire.ShardId) wire.ChunkHeader {
	return wire.ChunkHeader{ChunkHash: chunkHash, PrevBlockHash: prev, Height: height, ShardId: shard}
}

// S1 — ChunkCache aggregation.
func TestAggregationScenarioS1(t *testing.T) {
	c := New()
	prev := hash(0x00)
	h0 := header(hash(0xA0), prev, 1, 0)
	h1 := header(hash(0xA1), prev, 1, 1)

	c.MergePartialEncodedChunk(wire.PartialEncodedChunkMessage{Header: h0})
	c.MergePartialEncodedChunk(wire.PartialEncodedChunkMessage{Header: h1})

	incomplete := c.GetIncomplete(prev)
	require.Len(t, incomplete, 2)
	require.Contains(t, incomplete, h0.ChunkHash)
	require.Contains(t, incomplete, h1.ChunkHash)

	c.MarkComplete(h0.ChunkHash)
	incomplete = c.GetIncomplete(prev)
	require.Len(t, incomplete, 1)
	require.Contains(t, incomplete, h1.ChunkHash)

	c.MarkComplete(h1.ChunkHash)
	require.Empty(t, c.GetIncomplete(prev))
}

// S2 — Horizon eviction.
func TestHorizonEvictionScenarioS2(t *testing.T) {
	c := New()
	prev := hash(0x00)
	h := header(hash(0xB0), prev, 1, 0)

	c.MergePartialEncodedChunk(wire.PartialEncodedChunkMessage{Header: h})
	c.InsertReadyHeader(0, h, "producer.near", time.Now())
	require.NotEmpty(t, c.GetReadyHeadersFor(prev))

	c.UpdateLargestSeenHeight(2000, nil)

	require.Empty(t, c.byHeight)
	_, ok := c.Get(h.ChunkHash)
	require.False(t, ok)
	require.Empty(t, c.GetReadyHeadersFor(prev))
}

func TestMergeIsIdempotentAcrossCalls(t *testing.T) {
	c := New()
	h := header(hash(0xC0), hash(0x00), 1, 0)

	first := c.MergePartialEncodedChunk(wire.PartialEncodedChunkMessage{
		Header: h,
		Parts:  []wire.ChunkPart{{Ord: 0, Payload: []byte("p0")}, {Ord: 1, Payload: []byte("p1")}},
	})
	require.Len(t, first, 2)

	second := c.MergePartialEncodedChunk(wire.PartialEncodedChunkMessage{
		Header: h,
		Parts:  []wire.ChunkPart{{Ord: 1, Payload: []byte("stale")}, {Ord: 2, Payload: []byte("p2")}},
	})
	require.Len(t, second, 1)
	require.Contains(t, second, wire.PartOrd(2))

	entry, ok := c.Get(h.ChunkHash)
	require.True(t, ok)
	require.Equal(t, []byte("p1"), entry.Parts[1].Payload, "first writer wins")
	require.Len(t, entry.Parts, 3)
}

func TestIncompleteByPrevNeverHoldsCompleteEntry(t *testing.T) {
	c := New()
	prev := hash(0x00)
	h := header(hash(0xD0), prev, 1, 0)
	c.MergePartialEncodedChunk(wire.PartialEncodedChunkMessage{Header: h})
	c.MarkComplete(h.ChunkHash)

	for _, set := range c.incompleteByPrev {
		require.NotContains(t, set, h.ChunkHash)
	}
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	c := New()
	_, ok := c.Remove(hash(0xFF))
	require.False(t, ok)
}
