// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rovshanmuradov/launchpad/internal/events"
)

// Stats aggregates the journal since it was created.
type Stats struct {
	Entries     uint64          `json:"entries"`
	ByKind      map[Kind]uint64 `json:"by_kind"`
	BuyVolume   uint64          `json:"buy_volume"`
	SellVolume  uint64          `json:"sell_volume"`
	FeesCharged uint64          `json:"fees_charged"`
	Migrations  uint64          `json:"migrations"`
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Since time.Time
	Until time.Time
	Mint  string
	Kind  Kind
	Limit int
}

func (f Filter) match(en *Entry) bool {
	if !f.Since.IsZero() && en.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && en.Time.After(f.Until) {
		return false
	}
	if f.Mint != "" && en.Mint != f.Mint {
		return false
	}
	if f.Kind != "" && en.Kind != f.Kind {
		return false
	}
	return true
}

// Journal keeps an ordered history of committed protocol events. It
// subscribes to the event bus and optionally appends each entry as a JSON
// line to a rotating file.
type Journal struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	seq        uint64
	stats      Stats
	sink       io.WriteCloser
	enc        *json.Encoder
	logger     *zap.Logger
}

// Options configures a journal.
type Options struct {
	// MaxEntries bounds the in-memory history. Zero keeps everything.
	MaxEntries int
	// File enables the JSON lines sink.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New creates a journal.
func New(opts Options, logger *zap.Logger) *Journal {
	j := &Journal{
		maxEntries: opts.MaxEntries,
		stats:      Stats{ByKind: make(map[Kind]uint64)},
		logger:     logger.Named("journal"),
	}
	if opts.File != "" {
		j.sink = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		j.enc = json.NewEncoder(j.sink)
	}
	j.logger.Info("Journal initialized",
		zap.Int("max_entries", opts.MaxEntries),
		zap.String("file", opts.File))
	return j
}

// Subscribe attaches the journal to every event on bus.
func (j *Journal) Subscribe(bus *events.Bus) events.Subscription {
	return bus.Subscribe(events.All, j)
}

// Handle implements events.Handler.
func (j *Journal) Handle(_ context.Context, e events.Event) error {
	en, ok := FromEvent(e)
	if !ok {
		return nil
	}
	return j.Append(en)
}

// Append records en, assigning its sequence number and id.
func (j *Journal) Append(en Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	en.Seq = j.seq
	if en.ID == "" {
		en.ID = uuid.NewString()
	}
	if en.Time.IsZero() {
		en.Time = time.Now().UTC()
	}

	j.entries = append(j.entries, en)
	if j.maxEntries > 0 && len(j.entries) > j.maxEntries {
		j.entries = j.entries[len(j.entries)-j.maxEntries:]
	}
	j.account(&en)

	if j.enc != nil {
		if err := j.enc.Encode(&en); err != nil {
			j.logger.Error("Failed to write journal entry", zap.Uint64("seq", en.Seq), zap.Error(err))
			return fmt.Errorf("write journal entry: %w", err)
		}
	}
	return nil
}

func (j *Journal) account(en *Entry) {
	j.stats.Entries++
	j.stats.ByKind[en.Kind]++
	switch en.Kind {
	case KindBuy:
		j.stats.BuyVolume += en.Funds
		j.stats.FeesCharged += en.Fee
	case KindSell:
		j.stats.SellVolume += en.Funds
		j.stats.FeesCharged += en.Fee
	case KindLaunch:
		j.stats.FeesCharged += en.Fee
	case KindMigrate:
		j.stats.Migrations++
		j.stats.FeesCharged += en.Fee
	}
}

// Entries returns matching entries in sequence order. With a Limit only
// the most recent matches are kept.
func (j *Journal) Entries(f Filter) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Entry, 0, len(j.entries))
	for i := range j.entries {
		if f.match(&j.entries[i]) {
			out = append(out, j.entries[i])
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Stats returns a snapshot of the aggregates.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := j.stats
	s.ByKind = make(map[Kind]uint64, len(j.stats.ByKind))
	for k, v := range j.stats.ByKind {
		s.ByKind[k] = v
	}
	return s
}

// Close flushes and closes the file sink.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.sink == nil {
		return nil
	}
	err := j.sink.Close()
	j.sink, j.enc = nil, nil
	return err
}
