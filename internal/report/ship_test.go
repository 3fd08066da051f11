package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type flakyArchiver struct {
	fail  bool
	calls int
}

func (f *flakyArchiver) PutBatch(_ context.Context, b Batch) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("bucket unavailable")
	}
	return "key/" + filepath.Base(b.Path), nil
}

func TestShipRetriesFailedBatches(t *testing.T) {
	ctx := context.Background()
	j, err := NewJournal(filepath.Join(t.TempDir(), "reports.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := j.Send(ctx, betReport(float64(i))); err != nil {
			t.Fatal(err)
		}
	}

	arch := &flakyArchiver{fail: true}
	res, err := Ship(ctx, j, arch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Batches != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	if err := j.Send(ctx, betReport(4)); err != nil {
		t.Fatal(err)
	}
	arch.fail = false
	res, err = Ship(ctx, j, arch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Batches != 2 || res.Entries != 4 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = Ship(ctx, j, arch, nil)
	if err != nil || res.Batches != 0 {
		t.Fatalf("nothing should be left, got %+v %v", res, err)
	}
}

func TestShipSkipsCorruptBatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "reports.json")
	j, err := NewJournal(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	torn := path + ".20250101T000000.aaaa.sealed"
	if err := os.WriteFile(torn, []byte(`[{"id":"1","rep`), 0o600); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := j.Send(ctx, betReport(float64(i))); err != nil {
			t.Fatal(err)
		}
	}

	arch := &flakyArchiver{}
	for pass := 0; pass < 2; pass++ {
		res, err := Ship(ctx, j, arch, nil)
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		if pass == 0 && (res.Batches != 1 || res.Entries != 3) {
			t.Fatalf("valid batch should ship, got %+v", res)
		}
		if pass == 1 && res.Batches != 0 {
			t.Fatalf("nothing should be left, got %+v", res)
		}
	}
	if _, err := os.Stat(torn); !os.IsNotExist(err) {
		t.Fatalf("torn batch should have been moved aside: %v", err)
	}
	moved, _ := filepath.Glob(path + ".*.corrupt")
	if len(moved) != 1 {
		t.Fatalf("expected one quarantined file, got %v", moved)
	}
}

func TestPushRecoversFromCorruptLiveFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	j, err := NewJournal(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Send(ctx, betReport(7)); err != nil {
		t.Fatalf("send over a corrupt live file: %v", err)
	}
	entries, err := j.Load()
	if err != nil || len(entries) != 1 || entries[0].Report.BetAmount != 7 {
		t.Fatalf("entries %+v err=%v", entries, err)
	}
	if moved, _ := filepath.Glob(path + ".*.corrupt"); len(moved) != 1 {
		t.Fatalf("expected the damaged file kept aside, got %v", moved)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}
