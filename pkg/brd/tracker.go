package brd

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConversionEvent records a node leaving the Untouched state
type ConversionEvent struct {
	Round     int       `json:"round"`
	Node      int       `json:"node"`
	State     NodeState `json:"state"`
	Timestamp int64     `json:"timestamp"`
}

// ConversionTracker writes one JSON line per conversion. A nil tracker is
// valid and discards everything.
type ConversionTracker struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *json.Encoder
}

// NewConversionTracker creates the output file; it returns nil when the file
// cannot be created so tracking degrades to a no-op.
func NewConversionTracker(filename string) *ConversionTracker {
	file, err := os.Create(filename)
	if err != nil {
		return nil
	}
	return &ConversionTracker{closer: file, encoder: json.NewEncoder(file)}
}

// NewConversionTrackerWriter tracks into an arbitrary writer
func NewConversionTrackerWriter(w io.Writer) *ConversionTracker {
	return &ConversionTracker{encoder: json.NewEncoder(w)}
}

func (ct *ConversionTracker) LogConversion(round, node int, state NodeState) {
	if ct == nil {
		return
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()
	err := ct.encoder.Encode(ConversionEvent{
		Round:     round,
		Node:      node,
		State:     state,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		log.Warn().Err(err).Int("round", round).Int("node", node).Msg("Failed to write conversion event")
	}
}

func (ct *ConversionTracker) Close() {
	if ct == nil || ct.closer == nil {
		return
	}
	if err := ct.closer.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close conversion tracker")
	}
}
