package logger

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// Entry is a captured log line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Component string    `json:"component,omitempty"`
	Message   string    `json:"message"`
	Caller    string    `json:"caller,omitempty"`
}

// Ring stores the most recent log entries in a fixed-size circular buffer.
type Ring struct {
	mu       sync.RWMutex
	entries  []Entry
	size     int
	writePos int
	count    int
}

var (
	globalRing *Ring
	ringOnce   sync.Once
)

// GetRing returns the shared ring used by the global logger.
func GetRing() *Ring {
	ringOnce.Do(func() {
		globalRing = NewRing(10000)
	})
	return globalRing
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	return &Ring{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Add appends an entry, evicting the oldest when full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.writePos] = e
	r.writePos = (r.writePos + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Recent returns up to limit entries, newest first, filtered by minimum
// level and a lookback window in minutes.
func (r *Ring) Recent(limit int, level string, sinceMinutes int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}

	cutoff := time.Now().Add(-time.Duration(sinceMinutes) * time.Minute)
	var result []Entry
	for i := 0; i < r.count && len(result) < limit; i++ {
		idx := (r.writePos - 1 - i + r.size) % r.size
		e := r.entries[idx]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if level != "" && !atLeastLevel(e.Level, level) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Count returns the number of stored entries.
func (r *Ring) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
	"FATAL": 4,
}

func atLeastLevel(entryLevel, filterLevel string) bool {
	e, ok1 := levelRank[strings.ToUpper(entryLevel)]
	f, ok2 := levelRank[strings.ToUpper(filterLevel)]
	if !ok1 || !ok2 {
		return strings.EqualFold(entryLevel, filterLevel)
	}
	return e >= f
}

// RingWriter is an io.Writer that forwards to the original output and
// mirrors each zerolog line into the shared ring.
type RingWriter struct {
	ring     *Ring
	original io.Writer
}

// NewRingWriter wraps original with ring capture.
func NewRingWriter(original io.Writer) *RingWriter {
	return &RingWriter{
		ring:     GetRing(),
		original: original,
	}
}

func (w *RingWriter) Write(p []byte) (n int, err error) {
	if w.original != nil {
		n, err = w.original.Write(p)
	} else {
		n = len(p)
	}

	if e, ok := parseLine(p); ok {
		w.ring.Add(e)
	}
	return n, err
}

// parseLine decodes one zerolog JSON line into an Entry.
func parseLine(p []byte) (Entry, bool) {
	var raw struct {
		Level     string `json:"level"`
		Component string `json:"component"`
		Message   string `json:"message"`
		Caller    string `json:"caller"`
		Time      string `json:"time"`
	}
	if err := json.Unmarshal(p, &raw); err != nil {
		return Entry{}, false
	}
	if raw.Message == "" && raw.Level == "" {
		return Entry{}, false
	}

	e := Entry{
		Timestamp: time.Now(),
		Level:     strings.ToUpper(raw.Level),
		Component: raw.Component,
		Message:   raw.Message,
		Caller:    raw.Caller,
	}
	if t, err := time.Parse(time.RFC3339, raw.Time); err == nil {
		e.Timestamp = t
	}
	return e, true
}
