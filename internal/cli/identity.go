package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minibet/internal/config"
)

// Identity is the user the terminal client plays as when none is given on
// the command line.
type Identity struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username,omitempty"`
	SavedAt  time.Time `json:"saved_at"`
}

var ErrNoIdentity = errors.New("no user id: pass --user, set MINIBET_USER or run `minibet whoami --set <id>`")

// IdentityStore reads and writes identity.json in the state directory.
type IdentityStore struct {
	dir string
}

func NewIdentityStore(dir string) (*IdentityStore, error) {
	if dir == "" {
		var err error
		if dir, err = config.Dir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &IdentityStore{dir: dir}, nil
}

func (s *IdentityStore) path() string {
	return filepath.Join(s.dir, "identity.json")
}

func (s *IdentityStore) Save(id Identity) error {
	id.UserID = strings.TrimSpace(id.UserID)
	if id.UserID == "" {
		return ErrNoIdentity
	}
	if id.SavedAt.IsZero() {
		id.SavedAt = time.Now().UTC()
	}
	body, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), body, 0o600)
}

func (s *IdentityStore) Load() (Identity, error) {
	body, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, ErrNoIdentity
		}
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return Identity{}, fmt.Errorf("parse identity: %w", err)
	}
	if strings.TrimSpace(id.UserID) == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

func (s *IdentityStore) Clear() error {
	if _, err := os.Stat(s.path()); err != nil {
		return nil
	}
	return os.Remove(s.path())
}

// Resolve picks the user id: an explicit flag value first, then the
// configured user, then the remembered identity.
func (s *IdentityStore) Resolve(flagValue, configured string) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	id, err := s.Load()
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}
