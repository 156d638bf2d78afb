// Package chunkcache implements ChunkCache: aggregation of erasure-coded
// chunk parts and receipts arriving out of order from many peers, GC'd by a
// height horizon around the largest block height ever seen (spec §3, §4.4).
// It is grounded directly on the nearcore EncodedChunksCache this spec
// distills (original_source/chain/chunks/src/chunk_cache.rs): same four
// relations, same merge/mark/horizon operations, reimplemented with Go maps
// and sets instead of Rust HashMap/HashSet.
package chunkcache

import (
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/elliotchance/orderedmap"

	"github.com/shardmesh/netcore/internal/metrics"
	"github.com/shardmesh/netcore/wire"
)

// Horizon constants, bit-exact with spec §6.
const (
	HeightHorizon            = 1024
	MaxHeightsAhead          = 5
	ChunkHeaderHeightHorizon = 10
)

// Entry mirrors EncodedChunksCacheEntry: the header plus whatever parts and
// receipts have been merged in so far.
type Entry struct {
	Header               wire.ChunkHeader
	Parts                map[wire.PartOrd]wire.ChunkPart
	Receipts             map[wire.ShardId]wire.ReceiptProof
	Complete             bool
	HeaderFullyValidated bool

	// partOrds/shardIDs mirror the keys of Parts/Receipts as roaring
	// bitmaps. A plain map membership test would do the same job; these
	// exist so a snapshot of "which ords/shards has this chunk received"
	// can be handed to a caller (e.g. a part-request deduplicator) as a
	// compact, independently iterable set instead of a map copy.
	partOrds *roaring.Bitmap
	shardIDs *roaring.Bitmap
}

func newEntry(header wire.ChunkHeader) *Entry {
	return &Entry{
		Header:   header,
		Parts:    make(map[wire.PartOrd]wire.ChunkPart),
		Receipts: make(map[wire.ShardId]wire.ReceiptProof),
		partOrds: roaring.New(),
		shardIDs: roaring.New(),
	}
}

// mergeIn adds previously-unseen parts/receipts (first writer wins),
// returning the set of part ords that were newly inserted.
func (e *Entry) mergeIn(parts []wire.ChunkPart, receipts []wire.ReceiptProof) map[wire.PartOrd]struct{} {
	newOrds := make(map[wire.PartOrd]struct{})
	for _, p := range parts {
		if _, exists := e.Parts[p.Ord]; exists {
			continue
		}
		e.Parts[p.Ord] = p
		e.partOrds.Add(uint32(p.Ord))
		newOrds[p.Ord] = struct{}{}
	}
	for _, r := range receipts {
		if _, exists := e.Receipts[r.ToShardId]; exists {
			continue
		}
		e.Receipts[r.ToShardId] = r
		e.shardIDs.Add(uint32(r.ToShardId))
	}
	return newOrds
}

// PartOrds returns the set of part ords received so far.
func (e *Entry) PartOrds() []wire.PartOrd {
	vals := e.partOrds.ToArray()
	out := make([]wire.PartOrd, len(vals))
	for i, v := range vals {
		out[i] = wire.PartOrd(v)
	}
	return out
}

func (e *Entry) clone() Entry {
	c := *e
	c.Parts = make(map[wire.PartOrd]wire.ChunkPart, len(e.Parts))
	for k, v := range e.Parts {
		c.Parts[k] = v
	}
	c.Receipts = make(map[wire.ShardId]wire.ReceiptProof, len(e.Receipts))
	for k, v := range e.Receipts {
		c.Receipts[k] = v
	}
	return c
}

// ReadyHeader is a chunk header a block producer can include in its next
// block, plus bookkeeping about who produced it and when it arrived.
type ReadyHeader struct {
	Header      wire.ChunkHeader
	ArrivalTime time.Time
	Producer    string
}

// Cache is ChunkCache: single-writer, mutations serialized by the owning
// subsystem (spec §4.4 "Concurrency"). It holds no internal lock; callers
// that need concurrent access must serialize their own calls.
type Cache struct {
	largestSeenHeight wire.BlockHeight

	entries *orderedmap.OrderedMap // wire.Hash -> *Entry

	byHeight           map[wire.BlockHeight]map[wire.Hash]struct{}
	incompleteByPrev   map[wire.Hash]map[wire.Hash]struct{}
	readyHeadersByPrev map[wire.Hash]map[wire.ShardId]ReadyHeader
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{
		entries:            orderedmap.NewOrderedMap(),
		byHeight:           make(map[wire.BlockHeight]map[wire.Hash]struct{}),
		incompleteByPrev:   make(map[wire.Hash]map[wire.Hash]struct{}),
		readyHeadersByPrev: make(map[wire.Hash]map[wire.ShardId]ReadyHeader),
	}
}

func (c *Cache) entry(hash wire.Hash) (*Entry, bool) {
	v, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

func (c *Cache) getOrInsert(header wire.ChunkHeader) *Entry {
	if e, ok := c.entry(header.ChunkHash); ok {
		return e
	}
	e := newEntry(header)
	c.entries.Set(header.ChunkHash, e)
	metrics.ChunkCacheEntries.Inc()

	if c.byHeight[header.Height] == nil {
		c.byHeight[header.Height] = make(map[wire.Hash]struct{})
	}
	c.byHeight[header.Height][header.ChunkHash] = struct{}{}

	if c.incompleteByPrev[header.PrevBlockHash] == nil {
		c.incompleteByPrev[header.PrevBlockHash] = make(map[wire.Hash]struct{})
	}
	c.incompleteByPrev[header.PrevBlockHash][header.ChunkHash] = struct{}{}

	return e
}

// MergePartialEncodedChunk implements merge_partial_encoded_chunk: creates
// the entry if absent (indexing it by height and by previous-block hash),
// merges parts and receipts (first writer wins), and returns the ords that
// were newly inserted (spec §4.4).
func (c *Cache) MergePartialEncodedChunk(msg wire.PartialEncodedChunkMessage) map[wire.PartOrd]struct{} {
	e := c.getOrInsert(msg.Header)
	return e.mergeIn(msg.Parts, msg.Receipts)
}

func (c *Cache) removeFromIncompleteByPrev(prev, chunkHash wire.Hash) {
	set, ok := c.incompleteByPrev[prev]
	if !ok {
		return
	}
	delete(set, chunkHash)
	if len(set) == 0 {
		delete(c.incompleteByPrev, prev)
	}
}

// MarkComplete implements mark_complete: sets Complete and removes the
// chunk from incomplete_by_prev, dropping the prev key if it's now empty.
func (c *Cache) MarkComplete(chunkHash wire.Hash) {
	e, ok := c.entry(chunkHash)
	if !ok {
		return
	}
	e.Complete = true
	c.removeFromIncompleteByPrev(e.Header.PrevBlockHash, chunkHash)
}

// MarkValidated implements mark_validated.
func (c *Cache) MarkValidated(chunkHash wire.Hash) {
	if e, ok := c.entry(chunkHash); ok {
		e.HeaderFullyValidated = true
	}
}

// GetIncomplete returns a snapshot of the incomplete chunk hashes whose
// previous block is prev.
func (c *Cache) GetIncomplete(prev wire.Hash) map[wire.Hash]struct{} {
	set, ok := c.incompleteByPrev[prev]
	if !ok {
		return nil
	}
	out := make(map[wire.Hash]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

// Get returns a cloned snapshot of the entry for chunkHash.
func (c *Cache) Get(chunkHash wire.Hash) (Entry, bool) {
	e, ok := c.entry(chunkHash)
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Remove deletes the entry for chunkHash from every relation, returning the
// removed entry if one existed.
func (c *Cache) Remove(chunkHash wire.Hash) (Entry, bool) {
	e, ok := c.entry(chunkHash)
	if !ok {
		return Entry{}, false
	}
	c.entries.Delete(chunkHash)
	metrics.ChunkCacheEntries.Dec()
	if set := c.byHeight[e.Header.Height]; set != nil {
		delete(set, chunkHash)
		if len(set) == 0 {
			delete(c.byHeight, e.Header.Height)
		}
	}
	c.removeFromIncompleteByPrev(e.Header.PrevBlockHash, chunkHash)
	return e.clone(), true
}

func satSub(a, b wire.BlockHeight) wire.BlockHeight {
	if b > a {
		return 0
	}
	return a - b
}

func (c *Cache) heightWithinFrontHorizon(h wire.BlockHeight) bool {
	return h >= c.largestSeenHeight && h <= c.largestSeenHeight+MaxHeightsAhead
}

func (c *Cache) heightWithinRearHorizon(h wire.BlockHeight) bool {
	return h+HeightHorizon >= c.largestSeenHeight && h <= c.largestSeenHeight
}

// HeightWithinHorizon reports whether height is within the union of the
// front horizon [H, H+5] and the rear horizon [H-1024, H] (spec §4.4).
func (c *Cache) HeightWithinHorizon(h wire.BlockHeight) bool {
	return c.heightWithinFrontHorizon(h) || c.heightWithinRearHorizon(h)
}

// RemoveIfOutsideHorizon removes chunkHash's entry if its height has fallen
// outside the horizon.
func (c *Cache) RemoveIfOutsideHorizon(chunkHash wire.Hash) {
	e, ok := c.entry(chunkHash)
	if !ok {
		return
	}
	if !c.HeightWithinHorizon(e.Header.Height) {
		c.Remove(chunkHash)
	}
}

func (c *Cache) removeReadyHeader(header wire.ChunkHeader) {
	shardHeaders, ok := c.readyHeadersByPrev[header.PrevBlockHash]
	if !ok {
		return
	}
	if existing, ok := shardHeaders[header.ShardId]; ok && existing.Header.ChunkHash == header.ChunkHash {
		delete(shardHeaders, header.ShardId)
		if len(shardHeaders) == 0 {
			delete(c.readyHeadersByPrev, header.PrevBlockHash)
		}
	}
}

// UpdateLargestSeenHeight implements update_largest_seen_height: advances H
// and, for every height that has fallen out of the rear horizon window
// between the old and new H, evicts every chunk at that height not pinned
// by requestedChunks (and its ready header, if any) (spec §4.4).
func (c *Cache) UpdateLargestSeenHeight(newHeight wire.BlockHeight, requestedChunks map[wire.Hash]struct{}) {
	oldHeight := c.largestSeenHeight
	c.largestSeenHeight = newHeight

	from := satSub(oldHeight, HeightHorizon)
	to := satSub(newHeight, HeightHorizon)
	for h := from; h < to; h++ {
		hashes, ok := c.byHeight[h]
		if !ok {
			continue
		}
		for chunkHash := range hashes {
			if _, pinned := requestedChunks[chunkHash]; pinned {
				continue
			}
			if e, ok := c.Remove(chunkHash); ok {
				c.removeReadyHeader(e.Header)
			}
		}
	}
}

// InsertReadyHeader implements insert_chunk_header: records a header the
// local node can include in the next block after header.PrevBlockHash,
// gated by the tighter CHUNK_HEADER_HEIGHT_HORIZON window (spec §4.4).
func (c *Cache) InsertReadyHeader(shardID wire.ShardId, header wire.ChunkHeader, producer string, arrivalTime time.Time) {
	lowerBound := satSub(c.largestSeenHeight, ChunkHeaderHeightHorizon)
	upperBound := c.largestSeenHeight + MaxHeightsAhead
	if header.Height < lowerBound || header.Height > upperBound {
		return
	}
	shardHeaders, ok := c.readyHeadersByPrev[header.PrevBlockHash]
	if !ok {
		shardHeaders = make(map[wire.ShardId]ReadyHeader)
		c.readyHeadersByPrev[header.PrevBlockHash] = shardHeaders
	}
	shardHeaders[shardID] = ReadyHeader{Header: header, ArrivalTime: arrivalTime, Producer: producer}
}

// GetReadyHeadersFor implements get_ready_headers_for: non-destructive, so
// the same result may back several consecutive blocks if no new block
// intervenes (spec §4.4).
func (c *Cache) GetReadyHeadersFor(prev wire.Hash) map[wire.ShardId]ReadyHeader {
	shardHeaders, ok := c.readyHeadersByPrev[prev]
	if !ok {
		return nil
	}
	out := make(map[wire.ShardId]ReadyHeader, len(shardHeaders))
	for k, v := range shardHeaders {
		out[k] = v
	}
	return out
}
