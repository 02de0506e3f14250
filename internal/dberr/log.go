package dberr

import (
	"sync"
	"time"
)

// DefaultLogSize bounds the in-memory classification log.
const DefaultLogSize = 256

// LoggedError is one recorded classification.
type LoggedError struct {
	Details *Details
	At      time.Time
}

// Stats summarises the classification log.
type Stats struct {
	Total  int
	ByType map[Type]int
	ByCode map[string]int
}

// Classifier classifies errors and keeps a fixed-capacity circular
// buffer of recent classifications, oldest evicted first. All counters
// survive eviction; only the per-entry records roll over.
type Classifier struct {
	mu     sync.RWMutex
	buf    []LoggedError
	head   int
	filled bool
	total  int
	byType map[Type]int
	byCode map[string]int
	now    func() time.Time
}

// NewClassifier creates a classifier with the given log capacity.
// Non-positive sizes fall back to DefaultLogSize.
func NewClassifier(logSize int) *Classifier {
	if logSize <= 0 {
		logSize = DefaultLogSize
	}
	return &Classifier{
		buf:    make([]LoggedError, logSize),
		byType: make(map[Type]int),
		byCode: make(map[string]int),
		now:    time.Now,
	}
}

// Classify maps the error and records the classification.
func (c *Classifier) Classify(err error, operation string) *Details {
	details := Classify(err, operation)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf[c.head] = LoggedError{Details: details, At: c.now()}
	c.head = (c.head + 1) % len(c.buf)
	if c.head == 0 {
		c.filled = true
	}
	c.total++
	c.byType[details.Type]++
	c.byCode[details.Code]++

	return details
}

// Stats returns cumulative classification counters.
func (c *Classifier) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byType := make(map[Type]int, len(c.byType))
	for k, v := range c.byType {
		byType[k] = v
	}
	byCode := make(map[string]int, len(c.byCode))
	for k, v := range c.byCode {
		byCode[k] = v
	}
	return Stats{Total: c.total, ByType: byType, ByCode: byCode}
}

// Recent returns up to n of the most recent classifications, newest
// first.
func (c *Classifier) Recent(n int) []LoggedError {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size := c.size()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]LoggedError, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.head - i + len(c.buf)) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out
}

// RecentWithin counts classifications recorded inside the window.
func (c *Classifier) RecentWithin(window time.Duration) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := c.now().Add(-window)
	count := 0
	for i := 1; i <= c.size(); i++ {
		idx := (c.head - i + len(c.buf)) % len(c.buf)
		if c.buf[idx].At.Before(cutoff) {
			break // entries are time-ordered, older ones follow
		}
		count++
	}
	return count
}

// Reset clears the log and counters. Intended for tests.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = make([]LoggedError, len(c.buf))
	c.head = 0
	c.filled = false
	c.total = 0
	c.byType = make(map[Type]int)
	c.byCode = make(map[string]int)
}

// size is the number of live entries. Callers must hold the lock.
func (c *Classifier) size() int {
	if c.filled {
		return len(c.buf)
	}
	return c.head
}
