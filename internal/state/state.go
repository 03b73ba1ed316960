package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rentwave/rentwave/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.rentwave/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	// The file holds the refresh token cookie, so it must stay owner-only.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket     = []byte("app")
	userIDKey     = []byte("user_id")
	cookiesBucket = []byte("cookies")
)

// State wraps a bbolt database for all persistent client state. Access
// tokens are never written here; only the cookie jar and the id of the
// last signed-in user survive a restart.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.rentwave/state.db, creating it
// if it does not exist.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(cookiesBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// UserID returns the id of the last signed-in user, or empty string.
func (s *State) UserID() string {
	var id string

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(userIDKey)
		if v != nil {
			id = string(v)
		}

		return nil
	})

	return id
}

// SetUserID persists the id of the signed-in user. An empty id removes it.
func (s *State) SetUserID(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)
		if id == "" {
			return b.Delete(userIDKey)
		}

		return b.Put(userIDKey, []byte(id))
	})
}

// SaveCookie persists a single cookie, replacing any entry with the same name.
func (s *State) SaveCookie(c models.StoredCookie) error {
	if c.Name == "" {
		return fmt.Errorf("cookie name is required for persistence")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		return tx.Bucket(cookiesBucket).Put([]byte(c.Name), data)
	})
}

// DeleteCookie removes a cookie by name. Missing cookies are not an error.
func (s *State) DeleteCookie(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cookiesBucket).Delete([]byte(name))
	})
}

// AllCookies returns every stored cookie keyed by name, expired ones
// included. Callers decide what to do with stale entries.
func (s *State) AllCookies() (map[string]models.StoredCookie, error) {
	result := make(map[string]models.StoredCookie)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(cookiesBucket).ForEach(func(k, v []byte) error {
			var c models.StoredCookie
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}

			result[string(k)] = c

			return nil
		})
	})

	return result, err
}

// ClearCookies removes every stored cookie in one transaction.
func (s *State) ClearCookies() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(cookiesBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucket(cookiesBucket)

		return err
	})
}

// DefaultPath returns ~/.rentwave/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".rentwave", "state.db"), nil
}
