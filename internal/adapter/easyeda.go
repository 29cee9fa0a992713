package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/HsiangNianian/aieda-bridge/internal/capability"
	"github.com/HsiangNianian/aieda-bridge/internal/protocol"
)

// EasyEDA drives a live host capability set. Its capability report is taken
// once in NewEasyEDA; build a new adapter to re-probe.
type EasyEDA struct {
	host capability.Host
	caps capability.Report
}

func NewEasyEDA(h capability.Host) *EasyEDA {
	return &EasyEDA{host: h, caps: capability.Probe(h)}
}

func (e *EasyEDA) Type() string { return TypeEasyEDA }

func (e *EasyEDA) IsAvailable() bool { return e.caps.RuntimeAvailable }

func (e *EasyEDA) Capabilities() capability.Report { return e.caps.Clone() }

func (e *EasyEDA) call(ctx context.Context, name string, args ...any) (any, error) {
	method, ok := e.host.Lookup(name)
	if !ok {
		return nil, &CapabilityError{Operation: name, Missing: []string{name}}
	}
	out, err := method(ctx, args...)
	if err != nil {
		return nil, &HostCallError{Method: name, Err: err}
	}
	return out, nil
}

func (e *EasyEDA) requireRead(op string, names ...string) error {
	if !e.caps.RuntimeAvailable {
		return &CapabilityError{Operation: op, Missing: e.caps.RuntimeMinimum.Missing}
	}
	var absent []string
	for _, name := range names {
		if !e.caps.Has(name) {
			absent = append(absent, name)
		}
	}
	if len(absent) > 0 {
		return &CapabilityError{Operation: op, Missing: absent}
	}
	return nil
}

func (e *EasyEDA) requireOperation(kind protocol.OpKind) error {
	if e.caps.OperationAvailable(kind) {
		return nil
	}
	return &CapabilityError{
		Operation: string(kind),
		Missing:   append([]string{}, e.caps.UpdateOperations.Missing[kind]...),
		Write:     true,
	}
}

func (e *EasyEDA) list(ctx context.Context, op, name string) ([]Record, error) {
	if err := e.requireRead(op, name); err != nil {
		return nil, err
	}
	out, err := e.call(ctx, name)
	if err != nil {
		return nil, err
	}
	return toRecords(name, out)
}

func (e *EasyEDA) GetAllComponents(ctx context.Context) ([]Record, error) {
	records, err := e.list(ctx, "getAllComponents", capability.ComponentGetAll)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, records, capability.ComponentGetAllIDs, capability.ComponentGet), nil
}

func (e *EasyEDA) GetAllWires(ctx context.Context) ([]Record, error) {
	return e.list(ctx, "getAllWires", capability.WireGetAll)
}

func (e *EasyEDA) GetAllPolygons(ctx context.Context) ([]Record, error) {
	return e.list(ctx, "getAllPolygons", capability.PolygonGetAll)
}

// GetAllTexts is best effort: a host without text listing yields no texts.
func (e *EasyEDA) GetAllTexts(ctx context.Context) ([]Record, error) {
	if e.caps.RuntimeAvailable && !e.caps.Has(capability.TextGetAll) {
		return []Record{}, nil
	}
	records, err := e.list(ctx, "getAllTexts", capability.TextGetAll)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, records, capability.TextGetAllIDs, capability.TextGet), nil
}

func (e *EasyEDA) GetSelectedPrimitives(ctx context.Context) ([]Record, error) {
	return e.list(ctx, "getSelectedPrimitives", capability.SelectGetAll)
}

func (e *EasyEDA) GetDocumentSource(ctx context.Context) (any, error) {
	if err := e.requireRead("getDocumentSource", capability.DocumentGetSource); err != nil {
		return nil, err
	}
	return e.call(ctx, capability.DocumentGetSource)
}

func (e *EasyEDA) GetAuthStatus(ctx context.Context) (AuthStatus, error) {
	if err := e.requireRead("getAuthStatus", capability.AccountGetUserInfo); err != nil {
		return AuthStatus{}, err
	}
	out, err := e.call(ctx, capability.AccountGetUserInfo)
	if err != nil {
		return AuthStatus{}, err
	}
	user, _ := out.(map[string]any)
	authed := str(user, "uuid", "username", "userId") != ""
	status := "anonymous"
	if authed {
		status = "authenticated"
	}
	return AuthStatus{Authenticated: &authed, Status: status, User: publicUser(user), Raw: out}, nil
}

func publicUser(user map[string]any) map[string]any {
	if user == nil {
		return nil
	}
	out := map[string]any{}
	for _, key := range []string{"uuid", "username", "nickname"} {
		if v, ok := user[key]; ok {
			out[key] = v
		}
	}
	return out
}

func (e *EasyEDA) SearchComponent(ctx context.Context, q SearchQuery) ([]Record, error) {
	if q.Keyword == "" {
		return nil, missing("keyword")
	}
	if err := e.requireOperation(protocol.OpSearchComponent); err != nil {
		return nil, err
	}
	args := []any{q.Keyword}
	if q.Limit > 0 {
		page := q.Page
		if page <= 0 {
			page = 1
		}
		args = append(args, nil, nil, q.Limit, page)
	}
	out, err := e.call(ctx, capability.LibraryDeviceSearch, args...)
	if err != nil {
		return nil, err
	}
	return toRecords(capability.LibraryDeviceSearch, out)
}

func (e *EasyEDA) CreateComponent(ctx context.Context, in Record) (Record, error) {
	c, err := parseComponent(in)
	if err != nil {
		return nil, err
	}
	if err := e.requireOperation(protocol.OpCreateComponent); err != nil {
		return nil, err
	}
	method, _ := e.host.Lookup(capability.ComponentCreate)
	out, err := createWithShapes(ctx, method, c)
	if err != nil {
		return nil, err
	}
	rec := created(out, Record{"x": c.X, "y": c.Y, "rotation": c.Rotation})
	if c.Designator != "" {
		if _, err := e.call(ctx, capability.ComponentModify, rec.ID(), map[string]any{"designator": c.Designator}); err == nil {
			rec["designator"] = c.Designator
		}
	}
	return rec, nil
}

func (e *EasyEDA) modify(ctx context.Context, kind protocol.OpKind, name string, in Record) (Record, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, err
	}
	props, err := properties(in)
	if err != nil {
		return nil, err
	}
	if err := e.requireOperation(kind); err != nil {
		return nil, err
	}
	out, err := e.call(ctx, name, id, map[string]any(props))
	if err != nil {
		return nil, err
	}
	if out == nil || out == false {
		return nil, &HostCallError{Method: name, Err: notFound(kind, id)}
	}
	rec := props
	if m, ok := out.(map[string]any); ok {
		rec = normalize(m)
	}
	rec["uuid"] = id
	return rec, nil
}

func (e *EasyEDA) remove(ctx context.Context, kind protocol.OpKind, name string, in Record) (Record, error) {
	id, err := requireID(in)
	if err != nil {
		return nil, err
	}
	if err := e.requireOperation(kind); err != nil {
		return nil, err
	}
	out, err := e.call(ctx, name, id)
	if err != nil {
		return nil, err
	}
	if out == false {
		return nil, &HostCallError{Method: name, Err: notFound(kind, id)}
	}
	return Record{"uuid": id, "deleted": true}, nil
}

func (e *EasyEDA) ModifyComponent(ctx context.Context, in Record) (Record, error) {
	return e.modify(ctx, protocol.OpModifyComponent, capability.ComponentModify, in)
}

func (e *EasyEDA) DeleteComponent(ctx context.Context, in Record) (Record, error) {
	return e.remove(ctx, protocol.OpDeleteComponent, capability.ComponentDelete, in)
}

func (e *EasyEDA) CreateWire(ctx context.Context, in Record) (Record, error) {
	line, err := parseLine(in)
	if err != nil {
		return nil, err
	}
	if err := e.requireOperation(protocol.OpCreateWire); err != nil {
		return nil, err
	}
	args := []any{line}
	if net := str(in, "net"); net != "" {
		args = append(args, net)
	}
	out, err := e.call(ctx, capability.WireCreate, args...)
	if err != nil {
		return nil, err
	}
	fallback := Record{"line": line}
	if net := str(in, "net"); net != "" {
		fallback["net"] = net
	}
	return created(out, fallback), nil
}

func (e *EasyEDA) ModifyWire(ctx context.Context, in Record) (Record, error) {
	return e.modify(ctx, protocol.OpModifyWire, capability.WireModify, in)
}

func (e *EasyEDA) DeleteWire(ctx context.Context, in Record) (Record, error) {
	return e.remove(ctx, protocol.OpDeleteWire, capability.WireDelete, in)
}

func (e *EasyEDA) CreateNetFlag(ctx context.Context, in Record) (Record, error) {
	n, err := parseNet(in, "Power", "identification", "flag_type")
	if err != nil {
		return nil, err
	}
	if err := e.requireOperation(protocol.OpCreateNetFlag); err != nil {
		return nil, err
	}
	out, err := e.call(ctx, capability.ComponentCreateFlag, n.Kind, n.Net, n.X, n.Y, n.Rotation, n.Mirror)
	if err != nil {
		return nil, err
	}
	return created(out, Record{"net": n.Net, "x": n.X, "y": n.Y, "identification": n.Kind}), nil
}

func (e *EasyEDA) CreateNetPort(ctx context.Context, in Record) (Record, error) {
	n, err := parseNet(in, "BI", "direction")
	if err != nil {
		return nil, err
	}
	if err := e.requireOperation(protocol.OpCreateNetPort); err != nil {
		return nil, err
	}
	out, err := e.call(ctx, capability.ComponentCreatePort, n.Kind, n.Net, n.X, n.Y, n.Rotation, n.Mirror)
	if err != nil {
		return nil, err
	}
	return created(out, Record{"net": n.Net, "x": n.X, "y": n.Y, "direction": n.Kind}), nil
}

func (e *EasyEDA) ModifyText(ctx context.Context, in Record) (Record, error) {
	return e.modify(ctx, protocol.OpModifyText, capability.TextModify, in)
}

// created turns a host creation result into a Record. Hosts return either the
// new primitive or just its identifier.
func created(out any, fallback Record) Record {
	switch v := out.(type) {
	case map[string]any:
		rec := normalize(v)
		for k, val := range fallback {
			if _, ok := rec[k]; !ok {
				rec[k] = val
			}
		}
		return rec
	case string:
		rec := fallback.clone()
		rec["uuid"] = v
		return rec
	default:
		return fallback.clone()
	}
}

func toRecords(method string, out any) ([]Record, error) {
	switch v := out.(type) {
	case nil:
		return []Record{}, nil
	case []Record:
		records := make([]Record, len(v))
		for i, r := range v {
			records[i] = normalize(r)
		}
		return records, nil
	case []map[string]any:
		records := make([]Record, len(v))
		for i, r := range v {
			records[i] = normalize(r)
		}
		return records, nil
	case []any:
		records := make([]Record, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &HostCallError{Method: method, Err: fmt.Errorf("unexpected item %T", item)}
			}
			records = append(records, normalize(m))
		}
		return records, nil
	default:
		return nil, &HostCallError{Method: method, Err: errors.New("unexpected result shape")}
	}
}

// normalize copies a host record and lifts primitiveId into uuid.
func normalize(m map[string]any) Record {
	rec := Record(m).clone()
	if rec.ID() == "" {
		if id := str(rec, "primitiveId", "primitive_id", "id"); id != "" {
			rec["uuid"] = id
		}
	}
	return rec
}
