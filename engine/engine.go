package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Options configures a new or reopened Engine.
type Options struct {
	// Dir is the directory holding the WAL and segment files.
	Dir string
	// EncryptionKey is the 32-byte chacha20poly1305 key used to seal every
	// value at rest. Required.
	EncryptionKey []byte
	// MemTableFlushThreshold is the memtable size, in bytes, at which it is
	// flushed to a new immutable segment.
	MemTableFlushThreshold int64
	// BlockCacheBytes bounds the decoded-value cache sitting in front of
	// segment reads.
	BlockCacheBytes int64
	// OnFlush, if set, is called after each memtable flush completes.
	OnFlush func(segmentPath string, entries int)
}

func (o *Options) setDefaults() {
	if o.MemTableFlushThreshold <= 0 {
		o.MemTableFlushThreshold = 4 << 20
	}
	if o.BlockCacheBytes <= 0 {
		o.BlockCacheBytes = 16 << 20
	}
}

// Engine is an embedded, ordered key/value store: a memtable absorbs
// writes, each write is appended to a buffered, periodically synced
// write-ahead log before it reaches the memtable, and once the memtable grows past its threshold it is flushed to an
// immutable, mmap-backed, encrypted-at-rest SSTable segment. Reads check
// the memtable, then segments newest-first.
//
// Engine is the concrete "ordered key/value table" collaborator that the
// valuestore package treats as an external assumption: it implements
// valuestore.Table by way of the Table adapter in table.go.
type Engine struct {
	mu sync.RWMutex

	dir     string
	crypto  *CryptoProvider
	wal     *WAL
	mem     *MemTable
	cache   *LRUCache
	options Options

	segments   []*SSTable // newest last
	nextSegNum int
	closed     bool
}

// Open opens (or creates) an engine rooted at opts.Dir, replaying its WAL
// and loading any existing segments.
func Open(opts Options) (*Engine, error) {
	opts.setDefaults()
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}
	crypto, err := NewCryptoProvider(opts.EncryptionKey)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		dir:     opts.Dir,
		crypto:  crypto,
		mem:     NewMemTable(),
		cache:   NewLRUCache(opts.BlockCacheBytes),
		options: opts,
	}

	segNums, err := e.discoverSegments()
	if err != nil {
		return nil, err
	}
	for _, num := range segNums {
		sst, err := LoadSSTable(e.segmentPath(num), crypto)
		if err != nil {
			return nil, fmt.Errorf("engine: loading segment %d: %w", num, err)
		}
		e.segments = append(e.segments, sst)
		if num >= e.nextSegNum {
			e.nextSegNum = num + 1
		}
	}

	wal, err := NewWAL(filepath.Join(opts.Dir, "wal.log"), crypto)
	if err != nil {
		return nil, err
	}
	e.wal = wal
	if err := wal.Replay(func(entry *Entry) error {
		e.mem.applyReplayed(entry)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("engine: replaying wal: %w", err)
	}

	return e, nil
}

func (e *Engine) segmentPath(num int) string {
	return filepath.Join(e.dir, fmt.Sprintf("segment-%08d.sst", num))
}

func (e *Engine) discoverSegments() ([]int, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, err
	}
	var nums []int
	for _, ent := range entries {
		var num int
		if _, err := fmt.Sscanf(ent.Name(), "segment-%08d.sst", &num); err == nil {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

// Put writes key=value. The write is in the WAL's buffer when this
// returns; the WAL syncs it to disk on its next periodic flush.
func (e *Engine) Put(key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	entry := &Entry{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...), Timestamp: nowUnixNano()}
	if err := e.wal.Write(entry); err != nil {
		return err
	}
	e.mem.Put(entry.Key, entry.Value, entry.Timestamp)
	e.cache.Remove(string(key))
	return e.maybeFlushLocked()
}

// Delete removes key by writing a tombstone. Like Put, the tombstone is in
// the WAL's buffer when this returns and is synced on the next flush.
func (e *Engine) Delete(key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	entry := &Entry{Key: append([]byte(nil), key...), Timestamp: nowUnixNano(), Deleted: true}
	if err := e.wal.Write(entry); err != nil {
		return err
	}
	e.mem.Delete(entry.Key, entry.Timestamp)
	e.cache.Remove(string(key))
	return e.maybeFlushLocked()
}

// Get returns the live value for key, or (nil, false) if there is none
// (either never written, or the newest write is a tombstone).
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, false, ErrClosed
	}

	if entry := e.mem.Get(key); entry != nil {
		if entry.Deleted {
			return nil, false, nil
		}
		return entry.Value, true, nil
	}

	if cached, ok := e.cache.Get(string(key)); ok {
		if cached == nil {
			return nil, false, nil
		}
		return cached, true, nil
	}

	for i := len(e.segments) - 1; i >= 0; i-- {
		entry, err := e.segments[i].Get(key)
		if err != nil {
			return nil, false, err
		}
		if entry == nil {
			continue
		}
		if entry.Deleted {
			e.cache.Put(string(key), nil)
			return nil, false, nil
		}
		e.cache.Put(string(key), entry.Value)
		return entry.Value, true, nil
	}
	return nil, false, nil
}

// Ascend calls fn with every live key in ascending order, merging the
// memtable and all segments and preferring the newest write for a key
// present in more than one, until fn returns false.
func (e *Engine) Ascend(fn func(key, value []byte) bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}

	merged := make(map[string]*Entry)
	for i := 0; i < len(e.segments); i++ {
		for _, key := range e.segments[i].Keys() {
			entry, err := e.segments[i].Get(key)
			if err != nil {
				return err
			}
			if entry != nil {
				merged[string(key)] = entry
			}
		}
	}
	e.mem.Ascend(func(entry *Entry) bool {
		merged[string(entry.Key)] = entry
		return true
	})

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := merged[k]
		if entry.Deleted {
			continue
		}
		if !fn(entry.Key, entry.Value) {
			break
		}
	}
	return nil
}

// Flush forces the current memtable to disk as a new segment, even if it
// has not yet reached the configured threshold.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.flushLocked()
}

func (e *Engine) maybeFlushLocked() error {
	if e.mem.Size() < e.options.MemTableFlushThreshold {
		return nil
	}
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if e.mem.Size() == 0 {
		return nil
	}
	var entries []*Entry
	e.mem.Ascend(func(entry *Entry) bool {
		entries = append(entries, entry)
		return true
	})
	if len(entries) == 0 {
		return nil
	}

	num := e.nextSegNum
	e.nextSegNum++
	path := e.segmentPath(num)
	sst, err := NewSSTable(path, entries, e.crypto)
	if err != nil {
		return fmt.Errorf("engine: flushing segment %d: %w", num, err)
	}
	e.segments = append(e.segments, sst)

	if err := e.wal.Truncate(); err != nil {
		return fmt.Errorf("engine: truncating wal after flush: %w", err)
	}
	e.mem = NewMemTable()
	e.cache = NewLRUCache(e.options.BlockCacheBytes)

	if e.options.OnFlush != nil {
		e.options.OnFlush(path, len(entries))
	}
	return nil
}

// Close flushes any buffered writes, closes the WAL, and unmaps every
// segment. The engine must not be used afterward.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if err := e.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, sst := range e.segments {
		if err := sst.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsOpen reports whether the engine has not been closed.
func (e *Engine) IsOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// nowUnixNano is a thin indirection over time.Now so entry timestamps have
// one call site.
func nowUnixNano() uint64 {
	return uint64(time.Now().UnixNano())
}

// applyReplayed installs an entry recovered from the WAL directly into the
// skip list without re-appending to the log, used only during Open.
func (m *MemTable) applyReplayed(e *Entry) {
	m.skiplist.put(e)
	m.size.Add(int64(len(e.Key) + len(e.Value) + 32))
}
