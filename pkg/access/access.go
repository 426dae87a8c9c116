// Package access implements the per-caller resource allow-list check.
package access

// ResourceKind classifies a workspace object governed by access control.
type ResourceKind string

const (
	KindPage     ResourceKind = "page"
	KindDatabase ResourceKind = "database"
)

// PermissionRecord holds a caller's allow-lists. An empty or absent list for
// a kind means unrestricted access to that kind, not deny-all. Records are
// snapshotted at session creation and must not be mutated afterwards.
type PermissionRecord struct {
	AllowedDatabases []string `json:"allowedDatabases,omitempty"`
	AllowedPages     []string `json:"allowedPages,omitempty"`
}

// Clone returns a deep copy suitable for binding to a session.
func (r PermissionRecord) Clone() PermissionRecord {
	out := PermissionRecord{}
	if len(r.AllowedDatabases) > 0 {
		out.AllowedDatabases = append([]string{}, r.AllowedDatabases...)
	}
	if len(r.AllowedPages) > 0 {
		out.AllowedPages = append([]string{}, r.AllowedPages...)
	}
	return out
}

// Unrestricted reports whether the record places no restriction on the kind.
func (r PermissionRecord) Unrestricted(kind ResourceKind) bool {
	switch kind {
	case KindPage:
		return len(r.AllowedPages) == 0
	case KindDatabase:
		return len(r.AllowedDatabases) == 0
	}
	return false
}

// Allowed decides whether the record permits access to the given resource.
// Membership is exact: a page nested under an allowed parent is not
// implicitly allowed. Unknown kinds are denied.
func Allowed(rec PermissionRecord, kind ResourceKind, resourceID string) bool {
	var list []string
	switch kind {
	case KindPage:
		list = rec.AllowedPages
	case KindDatabase:
		list = rec.AllowedDatabases
	default:
		return false
	}
	if len(list) == 0 {
		return true
	}
	for _, id := range list {
		if id == resourceID {
			return true
		}
	}
	return false
}
