// Package session holds the authenticated identity & credential for the
// current process, backed by a single JSON document on disk so it survives
// restarts. It has no network or channel side effects; all mutation funnels
// through the auth flow.
package session

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/aegisalert/aegis/utils"
	"github.com/pkg/errors"
)

const (
	ADMIN_ROLE     = "admin"
	RESPONDER_ROLE = "responder"
	ENDUSER_ROLE   = "enduser"
)

const sessionFileName = "session.json"

type Session struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

func (s *Session) IsAdmin() bool {
	return s.Role == ADMIN_ROLE
}

func (s *Session) IsResponder() bool {
	return s.Role == RESPONDER_ROLE
}

// Valid enforces the session invariant: a credential always carries an
// identity & role.
func (s *Session) Valid() bool {
	return s.Token != "" && s.UserID != "" && s.Role != ""
}

type Store struct {
	dir     string
	mu      sync.RWMutex
	current *Session
}

// NewStore creates a session store rooted at the given directory,
// creating it if required.
func NewStore(dir string) (*Store, error) {
	if err := utils.CreateDirIfNotExist(dir); err != nil {
		return nil, errors.Wrap(err, "unable to create session dir")
	}

	return &Store{dir: dir}, nil
}

// DefaultDir returns the well-known location of the persisted session,
// under the user's home directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".aegis"), nil
}

// Load reads any persisted session into memory. A missing or malformed file
// is not an error - the store simply comes up unauthenticated, and a
// malformed file is removed so the next load starts clean.
func (store *Store) Load() (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	raw, err := ioutil.ReadFile(store.filePath())
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.Wrap(err, "unable to read session file")
	}

	sess := Session{}
	if err := json.Unmarshal(raw, &sess); err != nil || !sess.Valid() {
		// Corrupt or partial session - discard it rather than crash startup
		os.Remove(store.filePath())
		return nil, nil
	}

	store.current = &sess
	return &sess, nil
}

// Save persists the session, overwriting any prior value.
func (store *Store) Save(sess *Session) error {
	if sess == nil || !sess.Valid() {
		return errors.New("refusing to save incomplete session")
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if err := ioutil.WriteFile(store.filePath(), raw, 0600); err != nil {
		return errors.Wrap(err, "unable to persist session")
	}

	store.current = sess
	return nil
}

// Clear removes both the in-memory & persisted session.
func (store *Store) Clear() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.current = nil

	err := os.Remove(store.filePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// ClearMemory drops the in-memory session but leaves the persisted copy
// intact, for rollback paths where the stored credential is still good.
func (store *Store) ClearMemory() {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.current = nil
}

// Token returns the current credential, or "" when unauthenticated. It
// satisfies the REST client's TokenSource.
func (store *Store) Token() string {
	if sess := store.Current(); sess != nil {
		return sess.Token
	}

	return ""
}

// Current returns the in-memory session, or nil when unauthenticated.
func (store *Store) Current() *Session {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.current
}

func (store *Store) filePath() string {
	return filepath.Join(store.dir, sessionFileName)
}
