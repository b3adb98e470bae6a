package utils

import (
	"sort"
	"sync"
	"time"
)

// ChunkStats records the gaps between streamed chunks of one upstream call
type ChunkStats struct {
	mu sync.Mutex

	started   time.Time
	firstAt   time.Time
	lastTime  time.Time
	intervals []time.Duration
	closed    bool
}

// ChunkStatInfo summarizes one stream
type ChunkStatInfo struct {
	Count        int
	TimeToFirst  time.Duration
	MeanInterval time.Duration
	P50          time.Duration
	P95          time.Duration
	MaxInterval  time.Duration
}

func NewChunkStats() *ChunkStats {
	return &ChunkStats{started: time.Now(), intervals: make([]time.Duration, 0, 64)}
}

// OnChunk records the arrival of one chunk
func (cs *ChunkStats) OnChunk() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return
	}

	now := time.Now()
	if cs.lastTime.IsZero() {
		cs.firstAt = now
	} else {
		cs.intervals = append(cs.intervals, now.Sub(cs.lastTime))
	}
	cs.lastTime = now
}

// End closes the stats and returns the summary. Later calls return nil.
func (cs *ChunkStats) End() *ChunkStatInfo {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed || cs.firstAt.IsZero() {
		cs.closed = true
		return nil
	}
	cs.closed = true

	info := &ChunkStatInfo{
		Count:       len(cs.intervals) + 1,
		TimeToFirst: cs.firstAt.Sub(cs.started),
	}
	n := len(cs.intervals)
	if n > 0 {
		sorted := append([]time.Duration(nil), cs.intervals...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum time.Duration
		for _, v := range sorted {
			sum += v
		}
		info.MeanInterval = sum / time.Duration(n)
		info.P50 = sorted[n*50/100]
		info.P95 = sorted[n*95/100]
		info.MaxInterval = sorted[n-1]
	}
	cs.intervals = nil
	return info
}
