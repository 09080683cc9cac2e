package service

import (
	"fmt"
	"sync"
	"time"
)

// BatchIDGenerator issues semesterId_studentCode_millis identifiers. The
// millisecond part never repeats within one process, so two submissions by
// the same student in the same millisecond still get distinct ids.
type BatchIDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewBatchIDGenerator() *BatchIDGenerator {
	return &BatchIDGenerator{now: time.Now}
}

func (g *BatchIDGenerator) Next(semesterID int64, studentCode string) string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return fmt.Sprintf("%d_%s_%d", semesterID, studentCode, ms)
}
