package dispatch

import (
	"fmt"

	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

const (
	CodeWritesDisabled       = "WritesDisabled"
	CodeConfirmationRequired = "ConfirmationRequired"
)

type Policy struct {
	AllowWriteActions        bool
	RequireWriteConfirmation bool
}

func DefaultPolicy() Policy {
	return Policy{AllowWriteActions: true, RequireWriteConfirmation: true}
}

type PolicyError struct {
	Code   string
	Action protocol.Action
	Hint   string
}

func (e *PolicyError) Error() string {
	switch e.Code {
	case CodeWritesDisabled:
		return fmt.Sprintf("write action %s rejected: writes are disabled", e.Action)
	default:
		return fmt.Sprintf("write action %s requires confirmation", e.Action)
	}
}

func (e *PolicyError) Details() map[string]any {
	d := map[string]any{"code": e.Code, "action": string(e.Action)}
	if e.Hint != "" {
		d["hint"] = e.Hint
	}
	return d
}

// Authorize applies the write policy to cmd. Read actions always pass.
func (p Policy) Authorize(cmd protocol.Command) error {
	if !protocol.IsWriteAction(cmd.Action) {
		return nil
	}
	if !p.AllowWriteActions {
		return &PolicyError{Code: CodeWritesDisabled, Action: cmd.Action}
	}
	if !p.RequireWriteConfirmation {
		return nil
	}
	if cmd.Meta.Confirm {
		return nil
	}
	if confirm, _ := cmd.Payload["confirm"].(bool); confirm {
		return nil
	}
	return &PolicyError{
		Code:   CodeConfirmationRequired,
		Action: cmd.Action,
		Hint:   "set meta.confirm=true or payload.confirm=true",
	}
}
