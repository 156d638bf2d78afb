package peer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Count is a concurrency-safe monotonic counter backing the per-Connection
// throughput counters named in spec §3 ("Connection ... throughput
// counters"), safe for concurrent increment from the read loop while stats
// snapshots are taken elsewhere.
type Count struct {
	n int64
}

var _ fmt.Stringer = (*Count)(nil)

func (c *Count) Add(n int64) {
	atomic.AddInt64(&c.n, n)
}

func (c *Count) Int64() int64 {
	return atomic.LoadInt64(&c.n)
}

func (c *Count) String() string {
	return strconv.FormatInt(c.Int64(), 10)
}

func (c *Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.n)
}

// Stats holds the throughput counters spec §3 attaches to a Connection.
// Safe for concurrent increment; the Machine adds to them for each frame it
// receives in steady state (runSteadyState) and each frame it sends (Send).
type Stats struct {
	RxBytes    Count
	TxBytes    Count
	RxMessages Count
	TxMessages Count
}
