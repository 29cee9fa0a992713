package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	CodeInvalidShape      = "InvalidShape"
	CodeMissingAction     = "MissingAction"
	CodeUnsupportedAction = "UnsupportedAction"
	CodeInvalidPayload    = "InvalidPayload"
	CodeUnsupportedType   = "UnsupportedType"
)

// NormalizeError rejects an incoming message before it reaches dispatch.
// ID is the message's own id when one could be read, a fresh one otherwise.
type NormalizeError struct {
	Code    string
	Message string
	ID      string
}

func (e *NormalizeError) Error() string { return e.Message }

func (e *NormalizeError) Details() map[string]any {
	return map[string]any{"code": e.Code}
}

var metaKeys = []string{"confirm", "dry_run", "continue_on_error"}

// NormalizeIncoming turns a decoded JSON value into a Command.
func NormalizeIncoming(raw any) (Command, *NormalizeError) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Command{}, &NormalizeError{
			Code:    CodeInvalidShape,
			Message: "command must be a JSON object",
			ID:      NewErrorID(),
		}
	}

	id := ReadID(obj["id"])
	if id == "" {
		id = NewCommandID()
	}

	if t, present := obj["type"]; present && t != nil {
		if s, _ := t.(string); s != TypeCommand {
			return Command{}, &NormalizeError{
				Code:    CodeUnsupportedType,
				Message: fmt.Sprintf("unsupported message type %v, expected %q", t, TypeCommand),
				ID:      id,
			}
		}
	}

	action, _ := obj["action"].(string)
	action = strings.TrimSpace(action)
	if action == "" {
		return Command{}, &NormalizeError{
			Code:    CodeMissingAction,
			Message: "command action is required",
			ID:      id,
		}
	}
	if !IsSupportedAction(action) {
		allowed := make([]string, 0, len(SupportedActions))
		for _, a := range SupportedActions {
			allowed = append(allowed, string(a))
		}
		sort.Strings(allowed)
		return Command{}, &NormalizeError{
			Code:    CodeUnsupportedAction,
			Message: fmt.Sprintf("unsupported action %q, allowed: %s", action, strings.Join(allowed, ", ")),
			ID:      id,
		}
	}

	payload := map[string]any{}
	if p, present := obj["payload"]; present && p != nil {
		m, ok := p.(map[string]any)
		if !ok {
			return Command{}, &NormalizeError{
				Code:    CodeInvalidPayload,
				Message: "command payload must be a JSON object",
				ID:      id,
			}
		}
		payload = m
	}

	version, _ := obj["protocol_version"].(string)
	if version == "" {
		version = ProtocolVersion
	}

	return Command{
		ID:              id,
		Type:            TypeCommand,
		Action:          Action(action),
		Payload:         payload,
		Meta:            mergeMeta(obj),
		ProtocolVersion: version,
	}, nil
}

// mergeMeta reads the legacy top-level flags first and lets an explicit meta
// object override them key by key.
func mergeMeta(obj map[string]any) Meta {
	flags := map[string]bool{}
	for _, key := range metaKeys {
		if v, ok := obj[key].(bool); ok {
			flags[key] = v
		}
	}
	if meta, ok := obj["meta"].(map[string]any); ok {
		for _, key := range metaKeys {
			if v, ok := meta[key].(bool); ok {
				flags[key] = v
			}
		}
	}
	return Meta{
		Confirm:         flags["confirm"],
		DryRun:          flags["dry_run"],
		ContinueOnError: flags["continue_on_error"],
	}
}

// ReadID coerces a wire id to its string form. Numeric ids keep their
// decimal text; anything else yields "".
func ReadID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
