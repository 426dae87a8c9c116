package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagegate/pagegate/pkg/access"
	apperrors "github.com/pagegate/pagegate/pkg/errors"
)

// stubAPI counts upstream calls so tests can assert denied calls never reach
// the workspace API.
type stubAPI struct {
	searchResults []json.RawMessage
	searchErr     error
	page          json.RawMessage
	pageErr       error
	blocks        []json.RawMessage
	queryResult   json.RawMessage
	queryErr      error

	searchCalls int
	pageCalls   int
	blockCalls  int
	queryCalls  int
	lastFilter  json.RawMessage
}

func (s *stubAPI) Search(_ context.Context, _ string) ([]json.RawMessage, error) {
	s.searchCalls++
	return s.searchResults, s.searchErr
}

func (s *stubAPI) RetrievePage(_ context.Context, _ string) (json.RawMessage, error) {
	s.pageCalls++
	return s.page, s.pageErr
}

func (s *stubAPI) ListBlockChildren(_ context.Context, _ string) ([]json.RawMessage, error) {
	s.blockCalls++
	return s.blocks, nil
}

func (s *stubAPI) QueryDatabase(_ context.Context, _ string, filter json.RawMessage) (json.RawMessage, error) {
	s.queryCalls++
	s.lastFilter = filter
	return s.queryResult, s.queryErr
}

func textOf(t *testing.T, r Result) string {
	t.Helper()
	require.Len(t, r.Content, 1)
	require.Equal(t, "text", r.Content[0].Type)
	return r.Content[0].Text
}

func TestSearchFiltersToPermittedSubset(t *testing.T) {
	api := &stubAPI{searchResults: []json.RawMessage{
		json.RawMessage(`{"id":"p1","object":"page"}`),
		json.RawMessage(`{"id":"p2","object":"page"}`),
		json.RawMessage(`{"id":"p3","object":"page"}`),
	}}
	g := New(api)
	perms := access.PermissionRecord{AllowedPages: []string{"p1", "p3"}}

	r := g.Call(context.Background(), "s1", "alice", perms, ToolSearch, map[string]any{"query": "q"})
	assert.False(t, r.IsError)

	var out struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, r)), &out))
	require.Len(t, out.Results, 2)
	assert.Equal(t, "p1", out.Results[0].ID)
	assert.Equal(t, "p3", out.Results[1].ID)
}

func TestSearchUnrestrictedReturnsAll(t *testing.T) {
	api := &stubAPI{searchResults: []json.RawMessage{
		json.RawMessage(`{"id":"p1"}`),
		json.RawMessage(`{"id":"p2"}`),
	}}
	g := New(api)

	r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{}, ToolSearch, map[string]any{"query": "q"})
	assert.False(t, r.IsError)
	assert.Contains(t, textOf(t, r), "p1")
	assert.Contains(t, textOf(t, r), "p2")
}

func TestGetPageDeniedShortCircuits(t *testing.T) {
	api := &stubAPI{page: json.RawMessage(`{"id":"p1"}`)}
	g := New(api)
	perms := access.PermissionRecord{AllowedPages: []string{"other"}}

	r := g.Call(context.Background(), "s1", "alice", perms, ToolGetPage, map[string]any{"page_id": "p1"})
	assert.True(t, r.IsError)
	assert.Contains(t, textOf(t, r), "Access denied")
	assert.Contains(t, textOf(t, r), "p1")
	assert.Zero(t, api.pageCalls, "denied call must not reach upstream")
	assert.Zero(t, api.blockCalls)
}

func TestGetPageAllowedCombinesPageAndBlocks(t *testing.T) {
	api := &stubAPI{
		page:   json.RawMessage(`{"id":"p1","object":"page"}`),
		blocks: []json.RawMessage{json.RawMessage(`{"id":"b1","object":"block"}`)},
	}
	g := New(api)

	r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{}, ToolGetPage, map[string]any{"page_id": "p1"})
	assert.False(t, r.IsError)
	assert.Equal(t, 1, api.pageCalls)
	assert.Equal(t, 1, api.blockCalls)

	var out struct {
		Page   json.RawMessage   `json:"page"`
		Blocks []json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, r)), &out))
	assert.Contains(t, string(out.Page), "p1")
	require.Len(t, out.Blocks, 1)
}

func TestGetPageEmptyAllowListIsUnrestricted(t *testing.T) {
	api := &stubAPI{page: json.RawMessage(`{"id":"any"}`)}
	g := New(api)

	r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{AllowedPages: []string{}}, ToolGetPage, map[string]any{"page_id": "any"})
	assert.False(t, r.IsError)
	assert.Equal(t, 1, api.pageCalls)
}

func TestQueryDatabaseScenario(t *testing.T) {
	api := &stubAPI{queryResult: json.RawMessage(`{"object":"list","results":[{"id":"row1"}]}`)}
	g := New(api)
	perms := access.PermissionRecord{AllowedDatabases: []string{"db1"}}

	allowed := g.Call(context.Background(), "s1", "alice", perms, ToolQueryDatabase, map[string]any{"database_id": "db1"})
	assert.False(t, allowed.IsError)
	assert.Contains(t, textOf(t, allowed), "row1")
	assert.Equal(t, 1, api.queryCalls)

	denied := g.Call(context.Background(), "s1", "alice", perms, ToolQueryDatabase, map[string]any{"database_id": "db2"})
	assert.True(t, denied.IsError)
	assert.Contains(t, textOf(t, denied), "db2")
	assert.Equal(t, 1, api.queryCalls, "denied query must not reach upstream")
}

func TestQueryDatabaseFilterPassthrough(t *testing.T) {
	api := &stubAPI{queryResult: json.RawMessage(`{"results":[]}`)}
	g := New(api)

	filter := map[string]any{"property": "Status", "select": map[string]any{"equals": "Done"}}
	r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{}, ToolQueryDatabase, map[string]any{
		"database_id": "db1",
		"filter":      filter,
	})
	assert.False(t, r.IsError)
	assert.Contains(t, string(api.lastFilter), "Status")
}

func TestUpstreamErrorBecomesErrorResult(t *testing.T) {
	api := &stubAPI{searchErr: apperrors.New(apperrors.ErrCodeUpstream, "rate limited")}
	g := New(api)

	r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{}, ToolSearch, map[string]any{"query": "q"})
	assert.True(t, r.IsError)
	assert.True(t, strings.HasPrefix(textOf(t, r), "Error:"))
	assert.Contains(t, textOf(t, r), "rate limited")
}

func TestUnknownToolIsCallScopedError(t *testing.T) {
	g := New(&stubAPI{})

	r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{}, "notion_delete_everything", nil)
	assert.True(t, r.IsError)
	assert.Contains(t, textOf(t, r), "Unknown tool")
}

func TestMissingArgumentIsCallScopedError(t *testing.T) {
	api := &stubAPI{}
	g := New(api)

	for name, args := range map[string]map[string]any{
		ToolSearch:        {},
		ToolGetPage:       {"page_id": 42},
		ToolQueryDatabase: {"database_id": ""},
	} {
		r := g.Call(context.Background(), "s1", "alice", access.PermissionRecord{}, name, args)
		assert.True(t, r.IsError, "tool %s should reject bad args", name)
	}
	assert.Zero(t, api.searchCalls+api.pageCalls+api.queryCalls)
}

func TestCatalogShape(t *testing.T) {
	tools := Catalog()
	require.Len(t, tools, 3)
	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema["type"])
	}
	assert.True(t, names[ToolSearch])
	assert.True(t, names[ToolGetPage])
	assert.True(t, names[ToolQueryDatabase])
}
