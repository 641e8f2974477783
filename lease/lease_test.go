package lease

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/valuestore"
)

// memTable is a minimal in-memory valuestore.Table sufficient for
// exercising TableLocker without an on-disk engine.
type memTable struct {
	entries map[string][]byte
}

func newMemTable() *memTable {
	return &memTable{entries: make(map[string][]byte)}
}

func (t *memTable) Add(key, tag []byte) error {
	t.entries[string(key)] = append([]byte(nil), tag...)
	return nil
}

func (t *memTable) Del(key []byte) error {
	delete(t.entries, string(key))
	return nil
}

func (t *memTable) GetExactEntry(key []byte) ([]byte, bool, error) {
	v, ok := t.entries[string(key)]
	return v, ok, nil
}

func (t *memTable) IsOpen() bool { return true }

func (t *memTable) Cursor() (valuestore.Cursor, error) {
	return nil, valuestore.ErrFeatureUnavailable
}

var _ valuestore.Table = (*memTable)(nil)

func TestTableLockerAcquireAndRelease(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	owner := uuid.New()

	if err := locker.Acquire(ctx, "merge", owner, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	held, err := locker.IsHeld(ctx, "merge")
	if err != nil || !held {
		t.Fatalf("IsHeld: got %v, %v", held, err)
	}
	if err := locker.Release(ctx, "merge", owner); err != nil {
		t.Fatalf("Release: %v", err)
	}
	held, err = locker.IsHeld(ctx, "merge")
	if err != nil || held {
		t.Fatalf("IsHeld after release: got %v, %v", held, err)
	}
}

func TestTableLockerAcquireFailsWhenHeldByAnotherOwner(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if err := locker.Acquire(ctx, "merge", first, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(ctx, "merge", second, time.Minute); err != ErrLeaseHeld {
		t.Fatalf("Acquire by a second owner: got %v, want ErrLeaseHeld", err)
	}
}

func TestTableLockerAcquireSucceedsAfterExpiry(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if err := locker.Acquire(ctx, "merge", first, -time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Acquire(ctx, "merge", second, time.Minute); err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
}

func TestTableLockerReleaseByWrongOwnerFails(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if err := locker.Acquire(ctx, "merge", first, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Release(ctx, "merge", second); err != ErrNotLeaseOwner {
		t.Fatalf("Release by wrong owner: got %v, want ErrNotLeaseOwner", err)
	}
}

func TestTableLockerReleaseNotHeldFails(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	if err := locker.Release(context.Background(), "merge", uuid.New()); err != ErrLeaseNotHeld {
		t.Fatalf("Release: got %v, want ErrLeaseNotHeld", err)
	}
}

func TestTableLockerRenewExtendsExpiry(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	owner := uuid.New()

	if err := locker.Acquire(ctx, "merge", owner, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Renew(ctx, "merge", owner, time.Hour); err != nil {
		t.Fatalf("Renew: %v", err)
	}
}

func TestTableLockerRenewByWrongOwnerFails(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	if err := locker.Acquire(ctx, "merge", first, time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Renew(ctx, "merge", second, time.Minute); err != ErrNotLeaseOwner {
		t.Fatalf("Renew by wrong owner: got %v, want ErrNotLeaseOwner", err)
	}
}

func TestTableLockerRenewAfterExpiryFails(t *testing.T) {
	locker := NewTableLocker(newMemTable())
	ctx := context.Background()
	owner := uuid.New()

	if err := locker.Acquire(ctx, "merge", owner, -time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := locker.Renew(ctx, "merge", owner, time.Minute); err != ErrLeaseExpired {
		t.Fatalf("Renew after expiry: got %v, want ErrLeaseExpired", err)
	}
}

func TestManagerMergeLeaseLifecycle(t *testing.T) {
	mgr := NewManager(NewTableLocker(newMemTable()))
	ctx := context.Background()
	owner := uuid.New()

	if err := mgr.AcquireMerge(ctx, owner, time.Minute); err != nil {
		t.Fatalf("AcquireMerge: %v", err)
	}
	held, err := mgr.IsMergeHeld(ctx)
	if err != nil || !held {
		t.Fatalf("IsMergeHeld: got %v, %v", held, err)
	}
	if err := mgr.ReleaseMerge(ctx, owner); err != nil {
		t.Fatalf("ReleaseMerge: %v", err)
	}
	held, err = mgr.IsMergeHeld(ctx)
	if err != nil || held {
		t.Fatalf("IsMergeHeld after release: got %v, %v", held, err)
	}
}
