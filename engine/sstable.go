package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

type indexEntry struct {
	Key    []byte
	Offset int64
	Size   int32
}

// SSTable is an immutable, mmap-backed sorted segment on disk: once a
// memtable is flushed, its entries live here, fronted by a Bloom filter so
// a Get for a key this segment cannot contain never touches the mapped
// data at all. Every entry's plaintext (timestamp, deleted flag, value) is
// sealed with an AEAD cipher before it ever reaches disk.
type SSTable struct {
	path     string
	file     *os.File
	mmapData []byte
	index    []indexEntry
	bloom    *BloomFilter
	crypto   *CryptoProvider
	minKey   []byte
	maxKey   []byte
}

// NewSSTable sorts entries by key, seals each one, and writes them to a
// new segment file at path via a temp-file-then-rename so a crash mid
// write never leaves a half-written segment visible under its final name.
func NewSSTable(path string, entries []*Entry, crypto *CryptoProvider) (*SSTable, error) {
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, err
	}
	abort := func(err error) (*SSTable, error) {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	bloom := NewBloomFilter(len(entries), 10)
	index := make([]indexEntry, 0, len(entries))
	var buf bytes.Buffer

	for _, e := range entries {
		bloom.Add(e.Key)

		plain := encodeEntryPlain(e)
		blob, err := crypto.Encrypt(plain, buildEntryAAD(e.Key))
		if err != nil {
			return abort(err)
		}

		offset := int64(buf.Len())
		writeRecord(&buf, e.Key, blob)
		index = append(index, indexEntry{
			Key:    append([]byte(nil), e.Key...),
			Offset: offset,
			Size:   int32(buf.Len()) - int32(offset),
		})
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return abort(err)
	}

	footer := encodeFooter(index, bloom)
	if _, err := f.Write(footer); err != nil {
		return abort(err)
	}
	var footerLen [8]byte
	binary.BigEndian.PutUint64(footerLen[:], uint64(len(footer)))
	if _, err := f.Write(footerLen[:]); err != nil {
		return abort(err)
	}
	if err := f.Sync(); err != nil {
		return abort(err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, err
	}
	return LoadSSTable(path, crypto)
}

// LoadSSTable reopens a segment previously written by NewSSTable, mmaps
// its data, and reconstructs the index and Bloom filter from the footer.
func LoadSSTable(path string, crypto *CryptoProvider) (*SSTable, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size < 8 {
		f.Close()
		return nil, fmt.Errorf("engine: sstable %s too small", path)
	}

	var data []byte
	if size > 0 {
		data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	footerLen := binary.BigEndian.Uint64(data[size-8:])
	footerStart := size - 8 - int64(footerLen)
	if footerStart < 0 || footerStart > size-8 {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("engine: sstable %s footer corrupt", path)
	}

	index, bloom, err := decodeFooter(data[footerStart : size-8])
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}

	sst := &SSTable{path: path, file: f, mmapData: data, index: index, bloom: bloom, crypto: crypto}
	if len(index) > 0 {
		sst.minKey = index[0].Key
		sst.maxKey = index[len(index)-1].Key
	}
	return sst, nil
}

// Get looks up key, returning nil (with no error) if it is not present in
// this segment.
func (s *SSTable) Get(key []byte) (*Entry, error) {
	if s.bloom != nil && !s.bloom.Contains(key) {
		return nil, nil
	}
	i := sort.Search(len(s.index), func(i int) bool { return bytes.Compare(s.index[i].Key, key) >= 0 })
	if i >= len(s.index) || !bytes.Equal(s.index[i].Key, key) {
		return nil, nil
	}
	ie := s.index[i]
	return s.decodeRecord(s.mmapData[ie.Offset : ie.Offset+int64(ie.Size)])
}

// Keys returns every key present in the segment, in ascending order.
func (s *SSTable) Keys() [][]byte {
	out := make([][]byte, len(s.index))
	for i, ie := range s.index {
		out[i] = ie.Key
	}
	return out
}

func (s *SSTable) decodeRecord(record []byte) (*Entry, error) {
	klen, n := binary.Uvarint(record)
	if n <= 0 {
		return nil, fmt.Errorf("engine: sstable record key length: %w", errCorruptSegment)
	}
	record = record[n:]
	if uint64(len(record)) < klen {
		return nil, fmt.Errorf("engine: sstable record key truncated: %w", errCorruptSegment)
	}
	key := record[:klen]
	record = record[klen:]

	blen, n := binary.Uvarint(record)
	if n <= 0 {
		return nil, fmt.Errorf("engine: sstable record blob length: %w", errCorruptSegment)
	}
	record = record[n:]
	if uint64(len(record)) < blen+4 {
		return nil, fmt.Errorf("engine: sstable record blob truncated: %w", errCorruptSegment)
	}
	blob := record[:blen]
	record = record[blen:]

	wantSum := binary.BigEndian.Uint32(record[:4])
	gotSum := crc32.ChecksumIEEE(append(append([]byte(nil), key...), blob...))
	if wantSum != gotSum {
		return nil, fmt.Errorf("engine: sstable record checksum mismatch for key %x: %w", key, errCorruptSegment)
	}

	plain, err := s.crypto.Decrypt(blob, buildEntryAAD(key))
	if err != nil {
		return nil, fmt.Errorf("engine: sstable record decrypt failed for key %x: %w", key, err)
	}
	return decodeEntryPlain(key, plain)
}

// Close unmaps and closes the underlying file. The segment must not be
// used afterward.
func (s *SSTable) Close() error {
	if s.mmapData != nil {
		if err := unix.Munmap(s.mmapData); err != nil {
			return err
		}
		s.mmapData = nil
	}
	return s.file.Close()
}

func writeRecord(buf *bytes.Buffer, key, blob []byte) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(key)))
	buf.Write(tmp[:n])
	buf.Write(key)
	n = binary.PutUvarint(tmp[:], uint64(len(blob)))
	buf.Write(tmp[:n])
	buf.Write(blob)
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], crc32.ChecksumIEEE(append(append([]byte(nil), key...), blob...)))
	buf.Write(c[:])
}

func encodeEntryPlain(e *Entry) []byte {
	buf := make([]byte, 9, 9+len(e.Value))
	binary.BigEndian.PutUint64(buf[:8], e.Timestamp)
	if e.Deleted {
		buf[8] = 1
	}
	return append(buf, e.Value...)
}

func decodeEntryPlain(key, plain []byte) (*Entry, error) {
	if len(plain) < 9 {
		return nil, fmt.Errorf("engine: sstable entry plaintext truncated: %w", errCorruptSegment)
	}
	return &Entry{
		Key:       append([]byte(nil), key...),
		Timestamp: binary.BigEndian.Uint64(plain[:8]),
		Deleted:   plain[8] != 0,
		Value:     append([]byte(nil), plain[9:]...),
	}, nil
}

func encodeFooter(index []indexEntry, bloom *BloomFilter) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(len(index)))
	buf.Write(tmp[:n])
	for _, ie := range index {
		n = binary.PutUvarint(tmp[:], uint64(len(ie.Key)))
		buf.Write(tmp[:n])
		buf.Write(ie.Key)
		var off [8]byte
		binary.BigEndian.PutUint64(off[:], uint64(ie.Offset))
		buf.Write(off[:])
		var sz [4]byte
		binary.BigEndian.PutUint32(sz[:], uint32(ie.Size))
		buf.Write(sz[:])
	}

	bloomBytes := bloom.Bytes()
	n = binary.PutUvarint(tmp[:], uint64(len(bloomBytes)))
	buf.Write(tmp[:n])
	buf.Write(bloomBytes)
	var sizeBuf, kBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], bloom.size)
	binary.BigEndian.PutUint64(kBuf[:], bloom.k)
	buf.Write(sizeBuf[:])
	buf.Write(kBuf[:])

	return buf.Bytes()
}

func decodeFooter(footer []byte) ([]indexEntry, *BloomFilter, error) {
	count, n := binary.Uvarint(footer)
	if n <= 0 {
		return nil, nil, fmt.Errorf("engine: sstable footer index count: %w", errCorruptSegment)
	}
	footer = footer[n:]

	index := make([]indexEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		klen, n := binary.Uvarint(footer)
		if n <= 0 {
			return nil, nil, fmt.Errorf("engine: sstable footer key length: %w", errCorruptSegment)
		}
		footer = footer[n:]
		if uint64(len(footer)) < klen+12 {
			return nil, nil, fmt.Errorf("engine: sstable footer truncated: %w", errCorruptSegment)
		}
		key := append([]byte(nil), footer[:klen]...)
		footer = footer[klen:]
		offset := int64(binary.BigEndian.Uint64(footer[:8]))
		footer = footer[8:]
		sz := int32(binary.BigEndian.Uint32(footer[:4]))
		footer = footer[4:]
		index = append(index, indexEntry{Key: key, Offset: offset, Size: sz})
	}

	blen, n := binary.Uvarint(footer)
	if n <= 0 {
		return nil, nil, fmt.Errorf("engine: sstable footer bloom length: %w", errCorruptSegment)
	}
	footer = footer[n:]
	if uint64(len(footer)) < blen+16 {
		return nil, nil, fmt.Errorf("engine: sstable footer bloom truncated: %w", errCorruptSegment)
	}
	bloomBytes := footer[:blen]
	footer = footer[blen:]
	bloomSize := binary.BigEndian.Uint64(footer[:8])
	bloomK := binary.BigEndian.Uint64(footer[8:16])

	return index, LoadBloomFilter(bloomBytes, bloomSize, bloomK), nil
}
