// Package persistence captures bus events into the SQLite journal so
// operators can reconstruct what the bot did after the fact.
package persistence

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"trading-bot/internal/events"
	"trading-bot/pkg/db"
)

// marketTypes are high-frequency feed events; journaling them would
// swamp the table with ticks.
var marketTypes = map[events.EventType]bool{
	events.TypeMarketData: true,
	events.TypeKline:      true,
	events.TypeOrderbook:  true,
	events.TypeTrade:      true,
	events.TypeTicker:     true,
}

// Recorder subscribes to every bus event and batches the interesting
// ones into the event journal. Writes happen on the recorder's own
// goroutine so the bus fan-out never waits on SQLite.
type Recorder struct {
	db *db.Database

	mu     sync.Mutex
	buffer []db.JournalEntry

	flushInterval time.Duration
	maxBuffer     int
	done          chan struct{}
	wg            sync.WaitGroup
}

// NewRecorder creates a recorder flushing every interval or whenever
// maxBuffer entries pile up, whichever comes first.
func NewRecorder(database *db.Database, flushInterval time.Duration, maxBuffer int) *Recorder {
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	if maxBuffer <= 0 {
		maxBuffer = 50
	}
	return &Recorder{
		db:            database,
		flushInterval: flushInterval,
		maxBuffer:     maxBuffer,
		done:          make(chan struct{}),
	}
}

// Register attaches the recorder to the bus and starts the flush loop.
func (r *Recorder) Register(bus *events.Bus) {
	bus.SubscribeAll(r.Handle)
	r.wg.Add(1)
	go r.flushLoop()
}

// Handle buffers one event for journaling. It is the bus handler; it
// never blocks on the database.
func (r *Recorder) Handle(e events.Event) error {
	if marketTypes[e.Type] {
		return nil
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		payload = []byte(`{}`)
	}

	r.mu.Lock()
	r.buffer = append(r.buffer, db.JournalEntry{
		EventType: string(e.Type),
		Source:    e.Source,
		Payload:   string(payload),
		EventTs:   e.Timestamp,
	})
	full := len(r.buffer) >= r.maxBuffer
	r.mu.Unlock()

	if full {
		r.Flush()
	}
	return nil
}

// Flush writes all buffered entries now.
func (r *Recorder) Flush() {
	r.mu.Lock()
	batch := r.buffer
	r.buffer = nil
	r.mu.Unlock()
	if len(batch) == 0 || r.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, e := range batch {
		if err := r.db.InsertJournalEntry(ctx, e.EventType, e.Source, e.Payload, e.EventTs); err != nil {
			log.Printf("[persistence] journal write failed: %v", err)
			return
		}
	}
}

// Close flushes what is left and stops the loop. The bus should be
// stopped first so no more events arrive.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
	r.Flush()
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Flush()
		}
	}
}
