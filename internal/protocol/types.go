package protocol

import (
	"encoding/json"
	"time"
)

const ProtocolVersion = "1.0.0"

const (
	TypeCommand = "command"
	TypeResult  = "result"
	TypeEvent   = "event"
	TypePing    = "ping"
	TypePong    = "pong"
)

type Action string

const (
	ActionGetRuntimeStatus Action = "get_runtime_status"
	ActionCheckAuth        Action = "check_auth"
	ActionSearchComponent  Action = "search_component"
	ActionReadSchema       Action = "read_schema"
	ActionListComponents   Action = "list_components"
	ActionUpdateSchema     Action = "update_schema"
)

// SupportedActions is the closed set of actions the wire protocol accepts.
var SupportedActions = []Action{
	ActionGetRuntimeStatus,
	ActionCheckAuth,
	ActionSearchComponent,
	ActionReadSchema,
	ActionListComponents,
	ActionUpdateSchema,
}

func IsSupportedAction(action string) bool {
	for _, a := range SupportedActions {
		if string(a) == action {
			return true
		}
	}
	return false
}

// IsWriteAction reports whether an action mutates the host document.
func IsWriteAction(action Action) bool {
	return action == ActionUpdateSchema
}

type OpKind string

const (
	OpCreateComponent OpKind = "create_component"
	OpModifyComponent OpKind = "modify_component"
	OpDeleteComponent OpKind = "delete_component"
	OpCreateWire      OpKind = "create_wire"
	OpModifyWire      OpKind = "modify_wire"
	OpDeleteWire      OpKind = "delete_wire"
	OpModifyText      OpKind = "modify_text"
	OpCreateNetFlag   OpKind = "create_netflag"
	OpCreateNetPort   OpKind = "create_netport"
	OpSearchComponent OpKind = "search_component"
)

var OpKinds = []OpKind{
	OpCreateComponent,
	OpModifyComponent,
	OpDeleteComponent,
	OpCreateWire,
	OpModifyWire,
	OpDeleteWire,
	OpModifyText,
	OpCreateNetFlag,
	OpCreateNetPort,
	OpSearchComponent,
}

type Meta struct {
	Confirm         bool `json:"confirm"`
	DryRun          bool `json:"dry_run"`
	ContinueOnError bool `json:"continue_on_error"`
}

type Command struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Action          Action         `json:"action"`
	Payload         map[string]any `json:"payload"`
	Meta            Meta           `json:"meta"`
	ProtocolVersion string         `json:"protocol_version"`
}

// Result is the reply to exactly one Command. Result is emitted when OK,
// Error otherwise; never both.
type Result struct {
	ID              string
	OK              bool
	DurationMS      int64
	Result          any
	Error           string
	Details         any
	ProtocolVersion string
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":               r.ID,
		"type":             TypeResult,
		"protocol_version": r.ProtocolVersion,
		"ok":               r.OK,
		"duration_ms":      r.DurationMS,
	}
	if r.OK {
		out["result"] = r.Result
	} else {
		out["error"] = r.Error
	}
	if r.Details != nil {
		out["details"] = r.Details
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID              string          `json:"id"`
		ProtocolVersion string          `json:"protocol_version"`
		OK              bool            `json:"ok"`
		DurationMS      int64           `json:"duration_ms"`
		Result          any             `json:"result"`
		Error           string          `json:"error"`
		Details         json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Result{
		ID:              wire.ID,
		ProtocolVersion: wire.ProtocolVersion,
		OK:              wire.OK,
		DurationMS:      wire.DurationMS,
		Result:          wire.Result,
		Error:           wire.Error,
	}
	if len(wire.Details) > 0 && string(wire.Details) != "null" {
		var details any
		if err := json.Unmarshal(wire.Details, &details); err != nil {
			return err
		}
		r.Details = details
	}
	return nil
}

type Event struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Event           string `json:"event"`
	Payload         any    `json:"payload"`
}

// Control is a liveness frame exchanged outside the command flow.
type Control struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Body is what a handler produced: a value on success or an error description.
type Body struct {
	OK         bool
	DurationMS int64
	Result     any
	Error      string
	Details    any
}

func MakeResult(id string, body Body) Result {
	return Result{
		ID:              id,
		OK:              body.OK,
		DurationMS:      body.DurationMS,
		Result:          body.Result,
		Error:           body.Error,
		Details:         body.Details,
		ProtocolVersion: ProtocolVersion,
	}
}

// Failure builds a failed result without a measured duration.
func Failure(id, message string, details any) Result {
	return MakeResult(id, Body{Error: message, Details: details})
}

func MakeEvent(name string, payload any) Event {
	return Event{
		ID:              NewEventID(),
		Type:            TypeEvent,
		ProtocolVersion: ProtocolVersion,
		Event:           name,
		Payload:         payload,
	}
}

func MakePong(id string) Control {
	return Control{Type: TypePong, ID: id, Timestamp: time.Now().UnixMilli()}
}
