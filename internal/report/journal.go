package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"minibet/internal/game"
)

type Entry struct {
	ID     string      `json:"id"`
	At     time.Time   `json:"at"`
	Report game.Report `json:"report"`
	// UserID duplicates the opaque identity, which Report does not encode.
	UserID string `json:"raw_user_id,omitempty"`
}

// Journal keeps every report in a local JSON file so a shipper can archive
// them later. It is also a Sink.
type Journal struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
	log  *slog.Logger
}

// errCorrupt marks a journal file that exists but does not parse.
var errCorrupt = errors.New("corrupt journal")

func NewJournal(path string, logger *slog.Logger) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal needs a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{path: path, now: time.Now, log: logger.With(slog.String("component", "journal"))}, nil
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) Path() string { return j.path }

func (j *Journal) Send(_ context.Context, r game.Report) error {
	return j.Push(Entry{ID: uuid.NewString(), At: j.now().UTC(), Report: r, UserID: r.RawUserID})
}

func (j *Journal) Push(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entries, err := readEntries(j.path)
	if errors.Is(err, errCorrupt) {
		// Keep the damaged file for inspection and start a fresh one.
		if qerr := j.quarantine(j.path, err); qerr != nil {
			return qerr
		}
		entries, err = []Entry{}, nil
	}
	if err != nil {
		return err
	}
	entries = append(entries, e)
	return writeEntries(j.path, entries)
}

func (j *Journal) Load() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return readEntries(j.path)
}

// Batch is a journal segment moved aside for shipping.
type Batch struct {
	Path    string
	Entries []Entry
}

// Seal moves the live journal aside so new reports start a fresh file, then
// returns every sealed batch that has not been acknowledged yet, oldest
// first. Sealed batches survive a failed upload and are offered again. A
// batch that does not parse is renamed to *.corrupt and skipped.
func (j *Journal) Seal() ([]Batch, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if info, err := os.Stat(j.path); err == nil && info.Size() > 0 {
		sealed := fmt.Sprintf("%s.%s.%s.sealed", j.path, j.now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
		if err := os.Rename(j.path, sealed); err != nil {
			return nil, fmt.Errorf("seal journal: %w", err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	paths, err := filepath.Glob(j.path + ".*.sealed")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	batches := make([]Batch, 0, len(paths))
	for _, p := range paths {
		entries, err := readEntries(p)
		if errors.Is(err, errCorrupt) {
			if qerr := j.quarantine(p, err); qerr != nil {
				return nil, qerr
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, Batch{Path: p, Entries: entries})
	}
	return batches, nil
}

// Ack removes a shipped batch.
func (j *Journal) Ack(b Batch) error {
	if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (j *Journal) quarantine(path string, cause error) error {
	dst := fmt.Sprintf("%s.%s.corrupt", strings.TrimSuffix(path, ".sealed"), uuid.NewString()[:8])
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("quarantine journal %s: %w", filepath.Base(path), err)
	}
	j.log.Error("journal file moved aside", "path", path, "moved_to", dst, "err", cause)
	return nil
}

func readEntries(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Entry{}, nil
	}
	var out []Entry
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w %s: %w", errCorrupt, filepath.Base(path), err)
	}
	return out, nil
}

func writeEntries(path string, entries []Entry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace journal: %w", err)
	}
	return nil
}
