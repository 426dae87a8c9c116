// Package directory maintains the credential directory: the mapping from
// opaque API keys to permission records, persisted as a JSON users file that
// an administrator manages out-of-band.
package directory

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pagegate/pagegate/pkg/access"
	apperrors "github.com/pagegate/pagegate/pkg/errors"
)

// User is one directory entry. The API key is the caller's credential and is
// generated here; it is never logged by the serving path.
type User struct {
	Name        string                  `json:"name"`
	APIKey      string                  `json:"apiKey"`
	Permissions access.PermissionRecord `json:"permissions"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// Store is a mutex-guarded view over the users file. Lookup is hot-path
// (every connection open and every follow-up message); management operations
// rewrite the file.
type Store struct {
	path  string
	mu    sync.RWMutex
	users map[string]User
}

// Open loads the users file at path. A missing file yields an empty
// directory rather than an error so a fresh install can serve (and reject
// every credential) before any user is added.
func Open(path string) (*Store, error) {
	s := &Store{path: path, users: make(map[string]User)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the users file, replacing the in-memory snapshot. Sessions
// already open keep the record they were created with.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.users = make(map[string]User)
			s.mu.Unlock()
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "read users file")
	}

	var list []User
	if err := json.Unmarshal(data, &list); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "parse users file")
	}

	users := make(map[string]User, len(list))
	for _, u := range list {
		if strings.TrimSpace(u.APIKey) == "" {
			continue
		}
		users[u.APIKey] = u
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// Lookup resolves a credential to its directory entry. The boolean is the
// only failure signal: a malformed, unknown, or revoked credential all look
// identical to the caller.
func (s *Store) Lookup(credential string) (User, bool) {
	if strings.TrimSpace(credential) == "" {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[credential]
	if !ok {
		return User{}, false
	}
	u.Permissions = u.Permissions.Clone()
	return u, true
}

// Len returns the number of directory entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Users returns all entries sorted by creation time.
func (s *Store) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AddUser creates a user with a fresh credential and a fully unrestricted
// permission record, then persists the directory.
func (s *Store) AddUser(name string) (User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, apperrors.New(apperrors.ErrCodeInvalidInput, "user name cannot be empty")
	}
	key, err := GenerateKey()
	if err != nil {
		return User{}, err
	}

	u := User{
		Name:        name,
		APIKey:      key,
		Permissions: access.PermissionRecord{},
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.APIKey] = u
	if err := s.saveLocked(); err != nil {
		delete(s.users, u.APIKey)
		return User{}, err
	}
	return u, nil
}

// RemoveUser deletes the entry for the given credential.
func (s *Store) RemoveUser(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[credential]; !ok {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "user not found")
	}
	delete(s.users, credential)
	return s.saveLocked()
}

// SetAllowList replaces the allow-list for one resource kind on the user
// identified by credential. An empty list restores unrestricted access for
// that kind.
func (s *Store) SetAllowList(credential string, kind access.ResourceKind, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[credential]
	if !ok {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "user not found")
	}
	switch kind {
	case access.KindPage:
		u.Permissions.AllowedPages = append([]string{}, ids...)
	case access.KindDatabase:
		u.Permissions.AllowedDatabases = append([]string{}, ids...)
	default:
		return apperrors.Newf(apperrors.ErrCodeInvalidInput, "unknown resource kind %q", kind)
	}
	s.users[credential] = u
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	list := make([]User, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "encode users file")
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create users directory")
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "write users file")
	}
	return nil
}

// GenerateKey returns a fresh API key: "mcp_" plus 32 random bytes hex.
func GenerateKey() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "mcp_" + hex.EncodeToString(buf[:]), nil
}
