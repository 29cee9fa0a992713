// Package handler implements one function per protocol action. Handlers
// never touch the transport; they read a normalized payload, call the
// adapter and return a JSON-compatible value.
package handler

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/HsiangNianian/aieda-bridge/internal/adapter"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

type Env struct {
	Command protocol.Command
	Adapter adapter.Adapter
}

type Func func(ctx context.Context, payload map[string]any, env Env) (any, error)

// Registry maps every protocol action to its handler.
func Registry() map[protocol.Action]Func {
	return map[protocol.Action]Func{
		protocol.ActionGetRuntimeStatus: GetRuntimeStatus,
		protocol.ActionCheckAuth:        CheckAuth,
		protocol.ActionSearchComponent:  SearchComponent,
		protocol.ActionReadSchema:       ReadSchema,
		protocol.ActionListComponents:   ListComponents,
		protocol.ActionUpdateSchema:     UpdateSchema,
	}
}

// ValidationError is a missing or malformed payload field.
type ValidationError struct {
	Field   string
	Message string
	Errors  []string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return adapter.ErrInvalidInput }

func (e *ValidationError) Details() map[string]any {
	d := map[string]any{"field": e.Field}
	if len(e.Errors) > 0 {
		d["errors"] = e.Errors
	}
	return d
}

func flag(payload map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		if v, ok := payload[key].(bool); ok {
			return v, true
		}
	}
	return false, false
}

func intValue(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		if i, isInt := v.(int); isInt {
			return i, true
		}
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Floor(f)), true
}

func stringList(v any) []string {
	var out []string
	switch list := v.(type) {
	case string:
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		out = append(out, list...)
	}
	return out
}

func records(rs []adapter.Record) []map[string]any {
	out := make([]map[string]any, len(rs))
	for i, r := range rs {
		out[i] = map[string]any(r)
	}
	return out
}

func GetRuntimeStatus(_ context.Context, _ map[string]any, env Env) (any, error) {
	return map[string]any{
		"adapter":          env.Adapter.Type(),
		"available":        env.Adapter.IsAvailable(),
		"capabilities":     env.Adapter.Capabilities(),
		"protocol_version": protocol.ProtocolVersion,
	}, nil
}

func CheckAuth(ctx context.Context, payload map[string]any, env Env) (any, error) {
	st, err := env.Adapter.GetAuthStatus(ctx)
	if err != nil {
		if isCapability(err) {
			return map[string]any{
				"authenticated": nil,
				"status":        "unsupported",
				"adapter":       env.Adapter.Type(),
				"reason":        err.Error(),
			}, nil
		}
		return nil, err
	}
	out := map[string]any{
		"authenticated": st.Authenticated,
		"status":        st.Status,
		"adapter":       env.Adapter.Type(),
	}
	if st.User != nil {
		out["user"] = st.User
	}
	if raw, _ := payload["include_raw"].(bool); raw {
		out["raw"] = st.Raw
	}
	return out, nil
}

func SearchComponent(ctx context.Context, payload map[string]any, env Env) (any, error) {
	keyword, _ := payload["keyword"].(string)
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, &ValidationError{Field: "keyword", Message: "search_component requires a non-empty keyword"}
	}
	q := adapter.SearchQuery{Keyword: keyword}
	q.Page, _ = intValue(payload["page"])
	q.Limit, _ = intValue(payload["limit"])
	items, err := env.Adapter.SearchComponent(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search component: %w", err)
	}
	return map[string]any{
		"keyword": keyword,
		"count":   len(items),
		"items":   records(items),
	}, nil
}

type section struct {
	name    string
	enabled bool
	read    func(ctx context.Context, a adapter.Adapter) (any, int, error)
}

func list(fn func(adapter.Adapter, context.Context) ([]adapter.Record, error)) func(context.Context, adapter.Adapter) (any, int, error) {
	return func(ctx context.Context, a adapter.Adapter) (any, int, error) {
		rs, err := fn(a, ctx)
		if err != nil {
			return nil, 0, err
		}
		return records(rs), len(rs), nil
	}
}

func ReadSchema(ctx context.Context, payload map[string]any, env Env) (any, error) {
	sections := []section{
		{name: "components", enabled: true, read: list(adapter.Adapter.GetAllComponents)},
		{name: "wires", enabled: true, read: list(adapter.Adapter.GetAllWires)},
		{name: "polygons", read: list(adapter.Adapter.GetAllPolygons)},
		{name: "texts", read: list(adapter.Adapter.GetAllTexts)},
		{name: "selected", read: list(adapter.Adapter.GetSelectedPrimitives)},
		{name: "document_source", read: func(ctx context.Context, a adapter.Adapter) (any, int, error) {
			src, err := a.GetDocumentSource(ctx)
			return src, -1, err
		}},
	}

	out := map[string]any{"adapter": env.Adapter.Type()}
	counts := map[string]int{}
	for _, s := range sections {
		enabled := s.enabled
		if v, ok := flag(payload, "include_"+s.name, s.name); ok {
			enabled = v
		}
		if !enabled {
			continue
		}
		data, n, err := s.read(ctx, env.Adapter)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.name, err)
		}
		out[s.name] = data
		if n >= 0 {
			counts[s.name] = n
		}
	}
	out["counts"] = counts
	return out, nil
}

const defaultListLimit = 200

func ListComponents(ctx context.Context, payload map[string]any, env Env) (any, error) {
	parts, err := env.Adapter.GetAllComponents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}

	if only, _ := flag(payload, "selected_only"); only {
		selected, err := env.Adapter.GetSelectedPrimitives(ctx)
		if err != nil {
			return nil, fmt.Errorf("list selection: %w", err)
		}
		ids := make(map[string]bool, len(selected))
		for _, r := range selected {
			ids[r.ID()] = true
		}
		filtered := parts[:0:0]
		for _, p := range parts {
			if ids[p.ID()] {
				filtered = append(filtered, p)
			}
		}
		parts = filtered
	}

	limit := defaultListLimit
	if n, ok := intValue(payload["limit"]); ok {
		limit = max(n, 1)
	}
	fields := stringList(payload["fields"])

	total := len(parts)
	if len(parts) > limit {
		parts = parts[:limit]
	}
	items := make([]map[string]any, len(parts))
	for i, p := range parts {
		items[i] = project(p, fields)
	}
	return map[string]any{
		"count":    total,
		"returned": len(items),
		"limited":  total > len(items),
		"items":    items,
	}, nil
}

// project keeps only the requested fields. The identifier always survives.
func project(r adapter.Record, fields []string) map[string]any {
	if len(fields) == 0 {
		return map[string]any(r)
	}
	out := map[string]any{"uuid": r.ID()}
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}
