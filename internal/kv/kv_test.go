package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"minibet/internal/db"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "balance_1"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "balance_1", "100"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "balance_1", "116"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "balance_1")
	if err != nil || !ok || v != "116" {
		t.Fatalf("get got=%q ok=%v err=%v", v, ok, err)
	}
	if err := s.Set(ctx, "stats_1", `{"bets_count":1}`); err != nil {
		t.Fatalf("set stats: %v", err)
	}
	if v, _, _ := s.Get(ctx, "stats_1"); v != `{"bets_count":1}` {
		t.Fatalf("stats got=%q", v)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, s)

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok, _ := reopened.Get(context.Background(), "balance_1"); !ok || v != "116" {
		t.Fatalf("value not persisted, got=%q", v)
	}
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := s.Get(context.Background(), "balance_1"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := s.Set(context.Background(), "balance_1", "1"); err == nil {
		t.Fatalf("set must not clobber a corrupt file")
	}
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(context.Background(), "balance_1"); !ok || v != "116" {
		t.Fatalf("value not persisted, got=%q", v)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	if s, err := Open(ctx, Options{Driver: "memory"}); err != nil {
		t.Fatalf("memory: %v", err)
	} else if _, ok := s.(*Memory); !ok {
		t.Fatalf("memory driver returned %T", s)
	}
	s, err := Open(ctx, Options{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	exerciseStore(t, s)
	if err := Close(s); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := Open(ctx, Options{Driver: "etcd"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Options{Driver: "postgres"}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	if _, err := Open(ctx, Options{Driver: "redis"}); err == nil {
		t.Fatalf("expected missing address error")
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("MINIBET_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MINIBET_TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(context.Background(), dsn, db.PoolOptions{MaxConns: 2})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	_, _ = s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key IN ('balance_1', 'stats_1')`)
	exerciseStore(t, s)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("MINIBET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MINIBET_TEST_REDIS_ADDR not set")
	}
	s, err := OpenRedis(context.Background(), RedisOptions{Addr: addr, KeyPrefix: "minibet-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	_ = s.Client().Del(ctx, s.prefix+"balance_1", s.prefix+"stats_1").Err()
	exerciseStore(t, s)
}
