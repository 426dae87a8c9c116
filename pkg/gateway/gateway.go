// Package gateway dispatches tool calls: it validates arguments, enforces the
// caller's allow-lists, forwards permitted calls upstream, and shapes every
// outcome into a uniform result envelope. Nothing escapes this layer as a
// fault; per-call failures degrade to error-flagged results.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pagegate/pagegate/pkg/access"
	"github.com/pagegate/pagegate/pkg/audit"
	"github.com/pagegate/pagegate/pkg/logging"
	"github.com/pagegate/pagegate/pkg/notion"
)

// Content is one piece of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the uniform tool result envelope.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Gateway binds the upstream client to access control and auditing.
type Gateway struct {
	api    notion.API
	logger *logging.Logger
	audit  *audit.Store
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger attaches a structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithAudit attaches a durable audit store.
func WithAudit(a *audit.Store) Option {
	return func(g *Gateway) { g.audit = a }
}

// New creates a gateway over the given upstream API.
func New(api notion.API, opts ...Option) *Gateway {
	g := &Gateway{api: api}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call dispatches one tool call on behalf of a session. The permission record
// is the one snapshotted at session creation. Call never returns an error;
// every failure becomes an error-flagged Result.
func (g *Gateway) Call(ctx context.Context, sessionID, user string, perms access.PermissionRecord, name string, args map[string]any) Result {
	switch name {
	case ToolSearch:
		return g.search(ctx, sessionID, user, perms, args)
	case ToolGetPage:
		return g.getPage(ctx, sessionID, user, perms, args)
	case ToolQueryDatabase:
		return g.queryDatabase(ctx, sessionID, user, perms, args)
	default:
		toolCalls.WithLabelValues(name, outcomeError).Inc()
		g.record(sessionID, user, name, "", audit.DecisionError)
		return errorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
}

func (g *Gateway) search(ctx context.Context, sessionID, user string, perms access.PermissionRecord, args map[string]any) Result {
	query, ok := stringArg(args, "query")
	if !ok {
		toolCalls.WithLabelValues(ToolSearch, outcomeError).Inc()
		return errorResult("Error: query is required and must be a string")
	}

	results, err := g.api.Search(ctx, query)
	if err != nil {
		toolCalls.WithLabelValues(ToolSearch, outcomeError).Inc()
		g.record(sessionID, user, ToolSearch, "", audit.DecisionError)
		return upstreamError(err)
	}

	// Redaction by omission: matches the caller may not read simply never
	// appear, they are not reported as denials.
	permitted := make([]json.RawMessage, 0, len(results))
	for _, raw := range results {
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == "" {
			continue
		}
		if access.Allowed(perms, access.KindPage, obj.ID) {
			permitted = append(permitted, raw)
		}
	}

	toolCalls.WithLabelValues(ToolSearch, outcomeAllowed).Inc()
	g.record(sessionID, user, ToolSearch, "", audit.DecisionAllowed)
	g.logTool(sessionID, user, ToolSearch, "", map[string]any{
		"matched":   len(results),
		"permitted": len(permitted),
	})
	return jsonResult(map[string]any{"results": permitted})
}

func (g *Gateway) getPage(ctx context.Context, sessionID, user string, perms access.PermissionRecord, args map[string]any) Result {
	pageID, ok := stringArg(args, "page_id")
	if !ok {
		toolCalls.WithLabelValues(ToolGetPage, outcomeError).Inc()
		return errorResult("Error: page_id is required and must be a string")
	}

	if !access.Allowed(perms, access.KindPage, pageID) {
		toolCalls.WithLabelValues(ToolGetPage, outcomeDenied).Inc()
		g.record(sessionID, user, ToolGetPage, pageID, audit.DecisionDenied)
		g.logTool(sessionID, user, ToolGetPage, pageID, map[string]any{"denied": true})
		return errorResult(fmt.Sprintf("Access denied: you do not have permission to access page %s", pageID))
	}

	page, err := g.api.RetrievePage(ctx, pageID)
	if err != nil {
		toolCalls.WithLabelValues(ToolGetPage, outcomeError).Inc()
		g.record(sessionID, user, ToolGetPage, pageID, audit.DecisionError)
		return upstreamError(err)
	}
	blocks, err := g.api.ListBlockChildren(ctx, pageID)
	if err != nil {
		toolCalls.WithLabelValues(ToolGetPage, outcomeError).Inc()
		g.record(sessionID, user, ToolGetPage, pageID, audit.DecisionError)
		return upstreamError(err)
	}
	if blocks == nil {
		blocks = []json.RawMessage{}
	}

	toolCalls.WithLabelValues(ToolGetPage, outcomeAllowed).Inc()
	g.record(sessionID, user, ToolGetPage, pageID, audit.DecisionAllowed)
	g.logTool(sessionID, user, ToolGetPage, pageID, nil)
	return jsonResult(map[string]any{"page": page, "blocks": blocks})
}

func (g *Gateway) queryDatabase(ctx context.Context, sessionID, user string, perms access.PermissionRecord, args map[string]any) Result {
	databaseID, ok := stringArg(args, "database_id")
	if !ok {
		toolCalls.WithLabelValues(ToolQueryDatabase, outcomeError).Inc()
		return errorResult("Error: database_id is required and must be a string")
	}

	if !access.Allowed(perms, access.KindDatabase, databaseID) {
		toolCalls.WithLabelValues(ToolQueryDatabase, outcomeDenied).Inc()
		g.record(sessionID, user, ToolQueryDatabase, databaseID, audit.DecisionDenied)
		g.logTool(sessionID, user, ToolQueryDatabase, databaseID, map[string]any{"denied": true})
		return errorResult(fmt.Sprintf("Access denied: you do not have permission to access database %s", databaseID))
	}

	var filter json.RawMessage
	if rawFilter, present := args["filter"]; present && rawFilter != nil {
		encoded, err := json.Marshal(rawFilter)
		if err != nil {
			toolCalls.WithLabelValues(ToolQueryDatabase, outcomeError).Inc()
			return errorResult("Error: filter must be a JSON object")
		}
		filter = encoded
	}

	out, err := g.api.QueryDatabase(ctx, databaseID, filter)
	if err != nil {
		toolCalls.WithLabelValues(ToolQueryDatabase, outcomeError).Inc()
		g.record(sessionID, user, ToolQueryDatabase, databaseID, audit.DecisionError)
		return upstreamError(err)
	}

	toolCalls.WithLabelValues(ToolQueryDatabase, outcomeAllowed).Inc()
	g.record(sessionID, user, ToolQueryDatabase, databaseID, audit.DecisionAllowed)
	g.logTool(sessionID, user, ToolQueryDatabase, databaseID, nil)
	return rawResult(out)
}

func (g *Gateway) record(sessionID, user, tool, resource string, decision audit.Decision) {
	if err := g.audit.Record(audit.Entry{
		SessionID: sessionID,
		User:      user,
		Tool:      tool,
		Resource:  resource,
		Decision:  decision,
	}); err != nil {
		g.logger.Warn(logging.CategoryTool, "audit_write_failed", err.Error(), nil)
	}
}

func (g *Gateway) logTool(sessionID, user, tool, resource string, extra map[string]any) {
	details := map[string]any{"tool": tool, "user": user}
	if resource != "" {
		details["resource"] = resource
	}
	for k, v := range extra {
		details[k] = v
	}
	g.logger.Log(logging.Event{
		Level:     logging.LevelInfo,
		Category:  logging.CategoryTool,
		EventType: "dispatch",
		SessionID: sessionID,
		Details:   details,
	})
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func errorResult(message string) Result {
	return Result{
		Content: []Content{{Type: "text", Text: message}},
		IsError: true,
	}
}

func upstreamError(err error) Result {
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) {
		return errorResult(fmt.Sprintf("Error: %s", apiErr.Message))
	}
	return errorResult(fmt.Sprintf("Error: %s", err.Error()))
}

func jsonResult(v any) Result {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Error: failed to encode result: %s", err))
	}
	return Result{Content: []Content{{Type: "text", Text: string(data)}}}
}

func rawResult(raw json.RawMessage) Result {
	return Result{Content: []Content{{Type: "text", Text: string(raw)}}}
}
