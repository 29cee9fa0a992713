package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HsiangNianian/aieda-bridge/internal/capability"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

// Mock is an in-memory schematic. Records keep insertion order.
type Mock struct {
	mu       sync.Mutex
	seq      int
	latency  time.Duration
	caps     capability.Report
	parts    []Record
	wires    []Record
	polygons []Record
	texts    []Record
	selected map[string]bool
	catalog  []Record
}

type MockOption func(*Mock)

// WithLatency delays every operation, emulating a round trip to the host.
func WithLatency(d time.Duration) MockOption {
	return func(m *Mock) { m.latency = d }
}

// WithSeed preloads the store. Records without a uuid get a generated one.
func WithSeed(components, wires, texts []Record) MockOption {
	return func(m *Mock) {
		for _, r := range components {
			m.parts = append(m.parts, m.withID(r, "component"))
		}
		for _, r := range wires {
			m.wires = append(m.wires, m.withID(r, "wire"))
		}
		for _, r := range texts {
			m.texts = append(m.texts, m.withID(r, "text"))
		}
	}
}

func WithCatalog(devices []Record) MockOption {
	return func(m *Mock) { m.catalog = devices }
}

var defaultCatalog = []Record{
	{"uuid": "mock-device-r", "name": "R 10k 0603", "description": "resistor"},
	{"uuid": "mock-device-c", "name": "C 100nF 0402", "description": "capacitor"},
	{"uuid": "mock-device-led", "name": "LED red 0805", "description": "light emitting diode"},
	{"uuid": "mock-device-mcu", "name": "STM32F103C8T6", "description": "microcontroller"},
}

func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		caps:     capability.Full(),
		selected: map[string]bool{},
		catalog:  defaultCatalog,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) Type() string { return TypeMock }

func (m *Mock) IsAvailable() bool { return true }

func (m *Mock) Capabilities() capability.Report { return m.caps.Clone() }

// Select marks primitives as selected, replacing the previous selection.
func (m *Mock) Select(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = map[string]bool{}
	for _, id := range ids {
		m.selected[id] = true
	}
}

func (m *Mock) withID(r Record, kind string) Record {
	rec := r.clone()
	if rec.ID() == "" {
		m.seq++
		rec["uuid"] = fmt.Sprintf("mock-%s-%d", kind, m.seq)
	}
	return rec
}

func (m *Mock) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snapshot(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.clone()
	}
	return out
}

func (m *Mock) read(ctx context.Context, pick func() []Record) ([]Record, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(pick()), nil
}

func (m *Mock) GetAllComponents(ctx context.Context) ([]Record, error) {
	return m.read(ctx, func() []Record { return m.parts })
}

func (m *Mock) GetAllWires(ctx context.Context) ([]Record, error) {
	return m.read(ctx, func() []Record { return m.wires })
}

func (m *Mock) GetAllPolygons(ctx context.Context) ([]Record, error) {
	return m.read(ctx, func() []Record { return m.polygons })
}

func (m *Mock) GetAllTexts(ctx context.Context) ([]Record, error) {
	return m.read(ctx, func() []Record { return m.texts })
}

func (m *Mock) GetSelectedPrimitives(ctx context.Context) ([]Record, error) {
	return m.read(ctx, func() []Record {
		var out []Record
		for _, group := range [][]Record{m.parts, m.wires, m.texts} {
			for _, r := range group {
				if m.selected[r.ID()] {
					out = append(out, r)
				}
			}
		}
		return out
	})
}

func (m *Mock) GetDocumentSource(ctx context.Context) (any, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	doc := map[string]any{
		"components": snapshot(m.parts),
		"wires":      snapshot(m.wires),
		"texts":      snapshot(m.texts),
	}
	m.mu.Unlock()
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Mock) GetAuthStatus(ctx context.Context) (AuthStatus, error) {
	if err := m.wait(ctx); err != nil {
		return AuthStatus{}, err
	}
	authed := true
	return AuthStatus{
		Authenticated: &authed,
		Status:        "mock",
		User:          map[string]any{"username": "mock"},
		Raw:           map[string]any{"adapter": TypeMock},
	}, nil
}

func (m *Mock) SearchComponent(ctx context.Context, q SearchQuery) ([]Record, error) {
	if q.Keyword == "" {
		return nil, missing("keyword")
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	keyword := strings.ToLower(q.Keyword)
	var hits []Record
	for _, d := range m.catalog {
		name, _ := d["name"].(string)
		desc, _ := d["description"].(string)
		if strings.Contains(strings.ToLower(name), keyword) || strings.Contains(strings.ToLower(desc), keyword) {
			hits = append(hits, d.clone())
		}
	}
	if q.Limit > 0 {
		page := q.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * q.Limit
		if start >= len(hits) {
			return []Record{}, nil
		}
		end := start + q.Limit
		if end > len(hits) {
			end = len(hits)
		}
		hits = hits[start:end]
	}
	if hits == nil {
		hits = []Record{}
	}
	return hits, nil
}

func (m *Mock) CreateComponent(ctx context.Context, in Record) (Record, error) {
	c, err := parseComponent(in)
	if err != nil {
		return nil, err
	}
	rec := Record{
		"uuid":           c.UUID,
		"component_type": "part",
		"device":         c.deviceRef(),
		"x":              c.X,
		"y":              c.Y,
		"rotation":       c.Rotation,
		"mirror":         c.Mirror,
	}
	if c.Designator != "" {
		rec["designator"] = c.Designator
	}
	return m.insert(ctx, &m.parts, "component", rec)
}

func (m *Mock) CreateWire(ctx context.Context, in Record) (Record, error) {
	line, err := parseLine(in)
	if err != nil {
		return nil, err
	}
	rec := Record{"line": line}
	if net := str(in, "net"); net != "" {
		rec["net"] = net
	}
	return m.insert(ctx, &m.wires, "wire", rec)
}

func (m *Mock) CreateNetFlag(ctx context.Context, in Record) (Record, error) {
	n, err := parseNet(in, "Power", "identification", "flag_type")
	if err != nil {
		return nil, err
	}
	rec := Record{"component_type": "netflag", "identification": n.Kind, "net": n.Net, "x": n.X, "y": n.Y, "rotation": n.Rotation}
	return m.insert(ctx, &m.parts, "netflag", rec)
}

func (m *Mock) CreateNetPort(ctx context.Context, in Record) (Record, error) {
	n, err := parseNet(in, "BI", "direction")
	if err != nil {
		return nil, err
	}
	rec := Record{"component_type": "netport", "direction": n.Kind, "net": n.Net, "x": n.X, "y": n.Y, "rotation": n.Rotation}
	return m.insert(ctx, &m.parts, "netport", rec)
}

func (m *Mock) insert(ctx context.Context, into *[]Record, kind string, rec Record) (Record, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id := rec.ID(); id != "" {
		if m.indexOf(*into, id) >= 0 {
			return nil, &InputError{Field: "uuid", Reason: "already exists"}
		}
	} else {
		delete(rec, "uuid")
		rec = m.withID(rec, kind)
	}
	*into = append(*into, rec)
	return rec.clone(), nil
}

func (m *Mock) indexOf(records []Record, id string) int {
	for i, r := range records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func (m *Mock) update(ctx context.Context, kind protocol.OpKind, in Record, from *[]Record) (Record, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, err
	}
	props, err := properties(in)
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(*from, id)
	if i < 0 {
		return nil, notFound(kind, id)
	}
	for k, v := range props {
		(*from)[i][k] = v
	}
	return (*from)[i].clone(), nil
}

func (m *Mock) remove(ctx context.Context, kind protocol.OpKind, in Record, from *[]Record) (Record, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, err
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(*from, id)
	if i < 0 {
		return nil, notFound(kind, id)
	}
	*from = append((*from)[:i], (*from)[i+1:]...)
	delete(m.selected, id)
	return Record{"uuid": id, "deleted": true}, nil
}

func (m *Mock) ModifyComponent(ctx context.Context, in Record) (Record, error) {
	return m.update(ctx, protocol.OpModifyComponent, in, &m.parts)
}

func (m *Mock) DeleteComponent(ctx context.Context, in Record) (Record, error) {
	return m.remove(ctx, protocol.OpDeleteComponent, in, &m.parts)
}

func (m *Mock) ModifyWire(ctx context.Context, in Record) (Record, error) {
	return m.update(ctx, protocol.OpModifyWire, in, &m.wires)
}

func (m *Mock) DeleteWire(ctx context.Context, in Record) (Record, error) {
	return m.remove(ctx, protocol.OpDeleteWire, in, &m.wires)
}

func (m *Mock) ModifyText(ctx context.Context, in Record) (Record, error) {
	return m.update(ctx, protocol.OpModifyText, in, &m.texts)
}
