package directory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pagegate/pagegate/pkg/access"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s := testStore(t)
	if s.Len() != 0 {
		t.Errorf("expected empty directory, got %d users", s.Len())
	}
	if _, ok := s.Lookup("mcp_anything"); ok {
		t.Error("lookup on empty directory should fail")
	}
}

func TestAddUserListRoundTrip(t *testing.T) {
	s := testStore(t)

	u, err := s.AddUser("alice")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if !strings.HasPrefix(u.APIKey, "mcp_") || len(u.APIKey) != len("mcp_")+64 {
		t.Errorf("unexpected api key shape: %q", u.APIKey)
	}

	users := s.Users()
	if len(users) != 1 || users[0].Name != "alice" {
		t.Fatalf("unexpected user list: %+v", users)
	}

	// New users are fully unrestricted for every kind.
	rec := users[0].Permissions
	if !access.Allowed(rec, access.KindPage, "any-page") {
		t.Error("new user should have unrestricted page access")
	}
	if !access.Allowed(rec, access.KindDatabase, "any-db") {
		t.Error("new user should have unrestricted database access")
	}
}

func TestLookupReturnsSnapshot(t *testing.T) {
	s := testStore(t)
	u, err := s.AddUser("bob")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if err := s.SetAllowList(u.APIKey, access.KindPage, []string{"p1"}); err != nil {
		t.Fatalf("set allow list: %v", err)
	}

	got, ok := s.Lookup(u.APIKey)
	if !ok {
		t.Fatal("lookup failed")
	}
	got.Permissions.AllowedPages[0] = "mutated"

	again, _ := s.Lookup(u.APIKey)
	if again.Permissions.AllowedPages[0] != "p1" {
		t.Error("lookup must return an independent copy of the record")
	}
}

func TestLookupEmptyCredential(t *testing.T) {
	s := testStore(t)
	if _, ok := s.Lookup(""); ok {
		t.Error("empty credential must not resolve")
	}
	if _, ok := s.Lookup("   "); ok {
		t.Error("blank credential must not resolve")
	}
}

func TestRemoveUser(t *testing.T) {
	s := testStore(t)
	u, _ := s.AddUser("carol")

	if err := s.RemoveUser(u.APIKey); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := s.Lookup(u.APIKey); ok {
		t.Error("removed credential should not resolve")
	}
	if err := s.RemoveUser(u.APIKey); err == nil {
		t.Error("removing an unknown credential should error")
	}
}

func TestSetAllowListPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, _ := s.AddUser("dave")
	if err := s.SetAllowList(u.APIKey, access.KindDatabase, []string{"db1", "db2"}); err != nil {
		t.Fatalf("set allow list: %v", err)
	}

	// A second store over the same file sees the saved state.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Lookup(u.APIKey)
	if !ok {
		t.Fatal("lookup after reopen failed")
	}
	if !access.Allowed(got.Permissions, access.KindDatabase, "db1") {
		t.Error("db1 should be allowed")
	}
	if access.Allowed(got.Permissions, access.KindDatabase, "db3") {
		t.Error("db3 should be denied")
	}
	if !access.Allowed(got.Permissions, access.KindPage, "any") {
		t.Error("pages should remain unrestricted")
	}
}

func TestSetAllowListUnknownKind(t *testing.T) {
	s := testStore(t)
	u, _ := s.AddUser("erin")
	if err := s.SetAllowList(u.APIKey, access.ResourceKind("block"), []string{"x"}); err == nil {
		t.Error("unknown kind should error")
	}
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, _ := s.AddUser("frank")

	// Simulate the external admin removing every user.
	if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := s.Lookup(u.APIKey); ok {
		t.Error("credential should be gone after reload")
	}
}

func TestReloadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Reload(); err == nil {
		t.Error("malformed users file should fail reload")
	}
}

func TestGenerateKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		k, err := GenerateKey()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if seen[k] {
			t.Fatal("duplicate key generated")
		}
		seen[k] = true
	}
}
