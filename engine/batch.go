package engine

import (
	"sync"
	"time"
)

// BatchWriter buffers Put calls and applies them to an Engine in batches,
// writing each buffered entry's WAL record together and syncing once per
// flush rather than once per call — useful when a caller (such as a bulk
// AddDocument import) knows it will issue many writes in a row.
type BatchWriter struct {
	engine  *Engine
	mu      sync.Mutex
	entries []*Entry
	maxSize int
}

// NewBatchWriter returns a writer over engine that auto-flushes once
// maxSize entries are buffered.
func (e *Engine) NewBatchWriter(maxSize int) *BatchWriter {
	return &BatchWriter{
		engine:  e,
		entries: make([]*Entry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Put buffers a write, flushing immediately if the batch is now full.
func (bw *BatchWriter) Put(key, value []byte) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	bw.entries = append(bw.entries, &Entry{
		Key:       append([]byte(nil), key...),
		Value:     append([]byte(nil), value...),
		Timestamp: uint64(time.Now().UnixNano()),
	})
	if len(bw.entries) >= bw.maxSize {
		return bw.flushLocked()
	}
	return nil
}

// Delete buffers a tombstone, flushing immediately if the batch is now full.
func (bw *BatchWriter) Delete(key []byte) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	bw.entries = append(bw.entries, &Entry{
		Key:       append([]byte(nil), key...),
		Timestamp: uint64(time.Now().UnixNano()),
		Deleted:   true,
	})
	if len(bw.entries) >= bw.maxSize {
		return bw.flushLocked()
	}
	return nil
}

// Flush applies any buffered writes now.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

func (bw *BatchWriter) flushLocked() error {
	if len(bw.entries) == 0 {
		return nil
	}

	bw.engine.mu.Lock()
	defer bw.engine.mu.Unlock()
	if bw.engine.closed {
		return ErrClosed
	}

	for _, entry := range bw.entries {
		if err := bw.engine.wal.Write(entry); err != nil {
			return err
		}
	}
	if err := bw.engine.wal.Sync(); err != nil {
		return err
	}
	for _, entry := range bw.entries {
		if entry.Deleted {
			bw.engine.mem.Delete(entry.Key, entry.Timestamp)
		} else {
			bw.engine.mem.Put(entry.Key, entry.Value, entry.Timestamp)
		}
		bw.engine.cache.Remove(string(entry.Key))
	}

	bw.entries = bw.entries[:0]
	return bw.engine.maybeFlushLocked()
}
