// Package adapter translates abstract schematic operations into host calls.
// EasyEDA talks to a live host capability set; Mock keeps everything in
// memory. Both honor the same failure contract so callers never branch on
// which one is active.
package adapter

import (
	"context"

	"github.com/HsiangNianian/aieda-bridge/internal/capability"
)

const (
	TypeEasyEDA = "easyeda"
	TypeMock    = "mock"
)

// Record is one primitive as JSON-compatible fields. The canonical
// identifier is always stored under "uuid".
type Record map[string]any

func (r Record) ID() string {
	id, _ := r["uuid"].(string)
	return id
}

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type AuthStatus struct {
	Authenticated *bool          `json:"authenticated"`
	Status        string         `json:"status"`
	User          map[string]any `json:"user,omitempty"`
	Raw           any            `json:"raw,omitempty"`
}

type SearchQuery struct {
	Keyword string
	Page    int
	Limit   int
}

type Adapter interface {
	Type() string
	IsAvailable() bool
	// Capabilities returns a copy of the report probed at construction.
	Capabilities() capability.Report

	GetAllComponents(ctx context.Context) ([]Record, error)
	GetAllWires(ctx context.Context) ([]Record, error)
	GetAllPolygons(ctx context.Context) ([]Record, error)
	GetAllTexts(ctx context.Context) ([]Record, error)
	GetSelectedPrimitives(ctx context.Context) ([]Record, error)
	GetDocumentSource(ctx context.Context) (any, error)
	GetAuthStatus(ctx context.Context) (AuthStatus, error)
	SearchComponent(ctx context.Context, q SearchQuery) ([]Record, error)

	CreateComponent(ctx context.Context, in Record) (Record, error)
	ModifyComponent(ctx context.Context, in Record) (Record, error)
	DeleteComponent(ctx context.Context, in Record) (Record, error)
	CreateWire(ctx context.Context, in Record) (Record, error)
	ModifyWire(ctx context.Context, in Record) (Record, error)
	DeleteWire(ctx context.Context, in Record) (Record, error)
	CreateNetFlag(ctx context.Context, in Record) (Record, error)
	CreateNetPort(ctx context.Context, in Record) (Record, error)
	ModifyText(ctx context.Context, in Record) (Record, error)
}

// Select picks the EasyEDA adapter when the probed host can serve reads and
// falls back to an empty Mock otherwise.
func Select(h capability.Host) Adapter {
	easy := NewEasyEDA(h)
	if easy.IsAvailable() {
		return easy
	}
	return NewMock()
}
