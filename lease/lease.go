// Package lease provides a table-backed mutual-exclusion lease, used to
// keep two processes pointed at the same data directory from running
// MergeChanges concurrently against the same postlist table.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/valuestore"
)

var (
	ErrLeaseHeld     = errors.New("lease: already held by another owner")
	ErrLeaseNotHeld  = errors.New("lease: not held")
	ErrLeaseExpired  = errors.New("lease: expired")
	ErrNotLeaseOwner = errors.New("lease: held by a different owner")
)

// Locker acquires, renews, and releases a single named lease.
type Locker interface {
	Acquire(ctx context.Context, key string, owner uuid.UUID, ttl time.Duration) error
	Release(ctx context.Context, key string, owner uuid.UUID) error
	Renew(ctx context.Context, key string, owner uuid.UUID, ttl time.Duration) error
	IsHeld(ctx context.Context, key string) (bool, error)
}

// TableLocker implements Locker over a valuestore.Table, storing each
// lease as a single key whose value is the owner's UUID followed by its
// RFC3339 expiration.
type TableLocker struct {
	table valuestore.Table
}

// NewTableLocker returns a Locker backed by table.
func NewTableLocker(table valuestore.Table) *TableLocker {
	return &TableLocker{table: table}
}

func leaseKey(name string) []byte {
	return []byte("lease:" + name)
}

type leaseRecord struct {
	owner  uuid.UUID
	expiry time.Time
}

func encodeLeaseRecord(r leaseRecord) []byte {
	return []byte(r.owner.String() + "|" + r.expiry.Format(time.RFC3339Nano))
}

func decodeLeaseRecord(raw []byte) (leaseRecord, error) {
	s := string(raw)
	sep := len(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			sep = i
			break
		}
	}
	if sep == len(s) {
		return leaseRecord{}, fmt.Errorf("lease: malformed record %q", s)
	}
	owner, err := uuid.Parse(s[:sep])
	if err != nil {
		return leaseRecord{}, fmt.Errorf("lease: malformed owner: %w", err)
	}
	expiry, err := time.Parse(time.RFC3339Nano, s[sep+1:])
	if err != nil {
		return leaseRecord{}, fmt.Errorf("lease: malformed expiry: %w", err)
	}
	return leaseRecord{owner: owner, expiry: expiry}, nil
}

// Acquire takes the named lease for owner, failing with ErrLeaseHeld if a
// different owner already holds an unexpired lease.
func (l *TableLocker) Acquire(ctx context.Context, key string, owner uuid.UUID, ttl time.Duration) error {
	k := leaseKey(key)
	raw, found, err := l.table.GetExactEntry(k)
	if err != nil {
		return fmt.Errorf("lease: checking %s: %w", key, err)
	}
	if found {
		rec, err := decodeLeaseRecord(raw)
		if err != nil {
			return err
		}
		if rec.owner != owner && time.Now().Before(rec.expiry) {
			return ErrLeaseHeld
		}
	}
	rec := leaseRecord{owner: owner, expiry: time.Now().Add(ttl)}
	if err := l.table.Add(k, encodeLeaseRecord(rec)); err != nil {
		return fmt.Errorf("lease: acquiring %s: %w", key, err)
	}
	return nil
}

// Release drops the named lease, if owner currently holds it.
func (l *TableLocker) Release(ctx context.Context, key string, owner uuid.UUID) error {
	k := leaseKey(key)
	raw, found, err := l.table.GetExactEntry(k)
	if err != nil {
		return fmt.Errorf("lease: checking %s: %w", key, err)
	}
	if !found {
		return ErrLeaseNotHeld
	}
	rec, err := decodeLeaseRecord(raw)
	if err != nil {
		return err
	}
	if rec.owner != owner {
		return ErrNotLeaseOwner
	}
	if err := l.table.Del(k); err != nil {
		return fmt.Errorf("lease: releasing %s: %w", key, err)
	}
	return nil
}

// Renew extends the named lease's expiration, if owner currently holds it.
func (l *TableLocker) Renew(ctx context.Context, key string, owner uuid.UUID, ttl time.Duration) error {
	k := leaseKey(key)
	raw, found, err := l.table.GetExactEntry(k)
	if err != nil {
		return fmt.Errorf("lease: checking %s: %w", key, err)
	}
	if !found {
		return ErrLeaseNotHeld
	}
	rec, err := decodeLeaseRecord(raw)
	if err != nil {
		return err
	}
	if rec.owner != owner {
		return ErrNotLeaseOwner
	}
	if time.Now().After(rec.expiry) {
		return ErrLeaseExpired
	}
	rec.expiry = time.Now().Add(ttl)
	if err := l.table.Add(k, encodeLeaseRecord(rec)); err != nil {
		return fmt.Errorf("lease: renewing %s: %w", key, err)
	}
	return nil
}

// IsHeld reports whether the named lease is currently held by an
// unexpired owner.
func (l *TableLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	raw, found, err := l.table.GetExactEntry(leaseKey(key))
	if err != nil {
		return false, fmt.Errorf("lease: checking %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	rec, err := decodeLeaseRecord(raw)
	if err != nil {
		return false, err
	}
	return time.Now().Before(rec.expiry), nil
}

// mergeLeaseKey names the single, data-directory-wide lease guarding
// MergeChanges.
const mergeLeaseKey = "merge"

// Manager wraps a Locker with the one lease this package's callers need.
type Manager struct {
	locker Locker
}

// NewManager returns a Manager backed by locker.
func NewManager(locker Locker) *Manager {
	return &Manager{locker: locker}
}

// AcquireMerge takes the merge lease for owner.
func (m *Manager) AcquireMerge(ctx context.Context, owner uuid.UUID, ttl time.Duration) error {
	return m.locker.Acquire(ctx, mergeLeaseKey, owner, ttl)
}

// ReleaseMerge releases the merge lease, if owner holds it.
func (m *Manager) ReleaseMerge(ctx context.Context, owner uuid.UUID) error {
	return m.locker.Release(ctx, mergeLeaseKey, owner)
}

// IsMergeHeld reports whether any owner, the caller included, currently
// holds an unexpired merge lease.
func (m *Manager) IsMergeHeld(ctx context.Context) (bool, error) {
	return m.locker.IsHeld(ctx, mergeLeaseKey)
}
