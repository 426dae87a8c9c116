package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedEmptyListIsUnrestricted(t *testing.T) {
	rec := PermissionRecord{}

	for _, kind := range []ResourceKind{KindPage, KindDatabase} {
		assert.True(t, Allowed(rec, kind, "any-id"), "kind %s should be unrestricted", kind)
		assert.True(t, Allowed(rec, kind, ""), "kind %s should allow empty id", kind)
		assert.True(t, rec.Unrestricted(kind))
	}
}

func TestAllowedExactMembership(t *testing.T) {
	rec := PermissionRecord{
		AllowedPages:     []string{"page-a", "page-b"},
		AllowedDatabases: []string{"db-1"},
	}

	assert.True(t, Allowed(rec, KindPage, "page-a"))
	assert.True(t, Allowed(rec, KindPage, "page-b"))
	assert.False(t, Allowed(rec, KindPage, "page-c"))
	assert.True(t, Allowed(rec, KindDatabase, "db-1"))
	assert.False(t, Allowed(rec, KindDatabase, "db-2"))
	assert.False(t, rec.Unrestricted(KindPage))
}

func TestAllowedNoPrefixOrHierarchyMatching(t *testing.T) {
	rec := PermissionRecord{AllowedPages: []string{"parent"}}

	// Children of an allowed page are not implicitly allowed.
	assert.False(t, Allowed(rec, KindPage, "parent/child"))
	assert.False(t, Allowed(rec, KindPage, "paren"))
	assert.False(t, Allowed(rec, KindPage, "parent2"))
}

func TestAllowedKindsAreIndependent(t *testing.T) {
	rec := PermissionRecord{AllowedDatabases: []string{"db-1"}}

	// Restricting databases leaves pages unrestricted.
	assert.True(t, Allowed(rec, KindPage, "anything"))
	assert.False(t, Allowed(rec, KindDatabase, "db-2"))
}

func TestAllowedUnknownKindDenied(t *testing.T) {
	assert.False(t, Allowed(PermissionRecord{}, ResourceKind("block"), "id"))
}

func TestCloneIsIndependent(t *testing.T) {
	rec := PermissionRecord{AllowedPages: []string{"p1"}}
	clone := rec.Clone()

	clone.AllowedPages[0] = "p2"
	assert.Equal(t, "p1", rec.AllowedPages[0])

	empty := PermissionRecord{}.Clone()
	assert.Nil(t, empty.AllowedPages)
	assert.Nil(t, empty.AllowedDatabases)
}
