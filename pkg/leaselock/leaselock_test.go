package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB hands out a single lock key.
type fakeDB struct {
	mu     sync.Mutex
	holder string
	execs  []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	if strings.Contains(sql, "DELETE FROM app_locks") && f.holder == args[1] {
		f.holder = ""
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := args[1].(string)
	switch {
	case strings.Contains(sql, "INSERT INTO app_locks"):
		if f.holder == "" || f.holder == token {
			f.holder = token
			return row{key: args[0].(string)}
		}
	case strings.Contains(sql, "UPDATE app_locks"):
		if f.holder == token {
			return row{key: args[0].(string)}
		}
	}
	return row{err: pgx.ErrNoRows}
}

type row struct {
	key string
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.key
	return nil
}

func TestAcquire_BusyWithoutWait(t *testing.T) {
	db := &fakeDB{}
	c := New(db)
	ctx := context.Background()

	first, err := c.Acquire(ctx, "schema:public", Options{TokenPrefix: "a-"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(first.Token, "a-") {
		t.Fatalf("token prefix missing: %q", first.Token)
	}

	if _, err := c.Acquire(ctx, "schema:public", Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatalf("lease context should be cancelled after release")
	}
	second, err := c.Acquire(ctx, "schema:public", Options{})
	if err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}
	second.Release(ctx)
}

func TestWithLease_WaitsForHolder(t *testing.T) {
	db := &fakeDB{}
	c := New(db)
	ctx := context.Background()

	held, err := c.Acquire(ctx, "k", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		held.Release(context.Background())
	}()

	ran := false
	err = c.WithLease(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond}, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected fn to run after waiting, got ran=%v err=%v", ran, err)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New(&fakeDB{}).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{TTL: 10 * time.Second, RenewEvery: time.Minute, WaitJitter: -1}.withDefaults()
	if o.RenewEvery != 5*time.Second || o.WaitInterval != 250*time.Millisecond || o.WaitJitter != 0 {
		t.Fatalf("unexpected defaults %+v", o)
	}
}
