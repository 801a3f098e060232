package reconcile

import (
	"sync/atomic"
	"time"
)

// clock hands out strictly increasing nanosecond stamps, used to order
// mutations of the same entity.
type clock struct {
	last atomic.Int64
}

func (c *clock) next() int64 {
	for {
		now := time.Now().UnixNano()
		last := c.last.Load()
		if now <= last {
			now = last + 1
		}
		if c.last.CompareAndSwap(last, now) {
			return now
		}
	}
}
