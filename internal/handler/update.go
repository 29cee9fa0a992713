package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/HsiangNianian/aieda-bridge/internal/adapter"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

// operationSchema checks the shape of one batch item. Kind names and
// operation inputs are resolved afterwards.
const operationSchema = `{
  "type": "object",
  "properties": {
    "kind":   {"type": "string"},
    "type":   {"type": "string"},
    "action": {"type": "string"},
    "input":  {"type": ["object", "null"]}
  },
  "anyOf": [
    {"required": ["kind"]},
    {"required": ["type"]},
    {"required": ["action"]}
  ]
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(operationSchema))
	})
	return schema, schemaErr
}

type operation func(ctx context.Context, a adapter.Adapter, in adapter.Record) (any, error)

func record(fn func(adapter.Adapter, context.Context, adapter.Record) (adapter.Record, error)) operation {
	return func(ctx context.Context, a adapter.Adapter, in adapter.Record) (any, error) {
		rec, err := fn(a, ctx, in)
		if err != nil {
			return nil, err
		}
		return map[string]any(rec), nil
	}
}

var operations = map[protocol.OpKind]operation{
	protocol.OpCreateComponent: record(adapter.Adapter.CreateComponent),
	protocol.OpModifyComponent: record(adapter.Adapter.ModifyComponent),
	protocol.OpDeleteComponent: record(adapter.Adapter.DeleteComponent),
	protocol.OpCreateWire:      record(adapter.Adapter.CreateWire),
	protocol.OpModifyWire:      record(adapter.Adapter.ModifyWire),
	protocol.OpDeleteWire:      record(adapter.Adapter.DeleteWire),
	protocol.OpModifyText:      record(adapter.Adapter.ModifyText),
	protocol.OpCreateNetFlag:   record(adapter.Adapter.CreateNetFlag),
	protocol.OpCreateNetPort:   record(adapter.Adapter.CreateNetPort),
	protocol.OpSearchComponent: func(ctx context.Context, a adapter.Adapter, in adapter.Record) (any, error) {
		keyword, _ := in["keyword"].(string)
		q := adapter.SearchQuery{Keyword: keyword}
		q.Page, _ = intValue(in["page"])
		q.Limit, _ = intValue(in["limit"])
		items, err := a.SearchComponent(ctx, q)
		if err != nil {
			return nil, err
		}
		return records(items), nil
	},
}

// ItemResult is the outcome of one operation in a batch.
type ItemResult struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	OK     bool   `json:"ok"`
	DryRun bool   `json:"dry_run,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchItemError aborts a batch at Index. Results holds everything computed
// before the failure, including the failing item itself.
type BatchItemError struct {
	Index   int
	Kind    string
	Err     error
	Results []ItemResult
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("operation %d (%s) failed: %v", e.Index, e.Kind, e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }

func (e *BatchItemError) Details() map[string]any {
	return map[string]any{"index": e.Index, "kind": e.Kind, "results": e.Results}
}

func operationKind(op map[string]any) string {
	for _, key := range []string{"kind", "type", "action"} {
		if s, ok := op[key].(string); ok {
			return s
		}
	}
	return ""
}

func operationInput(op map[string]any) adapter.Record {
	if in, ok := op["input"].(map[string]any); ok {
		return adapter.Record(in)
	}
	in := adapter.Record{}
	for k, v := range op {
		switch k {
		case "kind", "type", "action", "input":
		default:
			in[k] = v
		}
	}
	return in
}

// UpdateSchema applies a batch of schema operations in order.
func UpdateSchema(ctx context.Context, payload map[string]any, env Env) (any, error) {
	ops, ok := payload["operations"].([]any)
	if !ok || len(ops) == 0 {
		return nil, &ValidationError{Field: "operations", Message: "update_schema requires a non-empty operations array"}
	}
	if _, err := compiledSchema(); err != nil {
		return nil, fmt.Errorf("compile operation schema: %w", err)
	}

	dryRun := env.Command.Meta.DryRun
	if v, _ := flag(payload, "dry_run"); v {
		dryRun = true
	}
	keepGoing := env.Command.Meta.ContinueOnError
	if v, _ := flag(payload, "continue_on_error"); v {
		keepGoing = true
	}

	results := make([]ItemResult, 0, len(ops))
	applied, failed := 0, 0
	for i, raw := range ops {
		op, _ := raw.(map[string]any)
		kind := operationKind(op)
		item := ItemResult{Index: i, Kind: kind}

		var (
			out any
			err error
		)
		if dryRun {
			out = preview(i, raw, op, kind)
		} else if err = validateOperation(i, raw); err == nil {
			out, err = execute(ctx, env.Adapter, kind, operationInput(op))
		}
		if err == nil {
			item.OK = true
			item.DryRun = dryRun
			item.Result = out
			applied++
			results = append(results, item)
			continue
		}

		item.Error = err.Error()
		failed++
		results = append(results, item)
		if !keepGoing {
			return nil, &BatchItemError{Index: i, Kind: kind, Err: err, Results: results}
		}
	}

	return map[string]any{
		"requested": len(ops),
		"applied":   applied,
		"failed":    failed,
		"dry_run":   dryRun,
		"results":   results,
	}, nil
}

func execute(ctx context.Context, a adapter.Adapter, kind string, in adapter.Record) (any, error) {
	fn, ok := operations[protocol.OpKind(kind)]
	if !ok {
		return nil, &ValidationError{Field: "kind", Message: fmt.Sprintf("unsupported operation kind %q", kind)}
	}
	return fn(ctx, a, in)
}

// preview is the synthetic outcome of a dry-run item. Nothing is executed,
// so problems with the item are reported alongside it rather than failing it.
func preview(index int, raw any, op map[string]any, kind string) map[string]any {
	out := map[string]any{"dry_run": true, "input": map[string]any(operationInput(op))}
	var problems []string
	var vErr *ValidationError
	if err := validateOperation(index, raw); errors.As(err, &vErr) {
		problems = append(problems, vErr.Errors...)
	}
	if _, ok := operations[protocol.OpKind(kind)]; !ok && kind != "" {
		problems = append(problems, fmt.Sprintf("unsupported operation kind %q", kind))
	}
	if len(problems) > 0 {
		out["warnings"] = problems
	}
	return out
}

func validateOperation(index int, raw any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile operation schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("validate operation %d: %w", index, err)
	}
	if res.Valid() {
		return nil
	}
	var msgs []string
	for _, desc := range res.Errors() {
		msgs = append(msgs, desc.String())
	}
	return &ValidationError{
		Field:   fmt.Sprintf("operations[%d]", index),
		Message: fmt.Sprintf("operation %d is malformed: %s", index, strings.Join(msgs, "; ")),
		Errors:  msgs,
	}
}

func isCapability(err error) bool {
	return errors.Is(err, adapter.ErrRuntimeUnavailable) || errors.Is(err, adapter.ErrOperationUnsupported)
}
