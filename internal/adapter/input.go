package adapter

import (
	"encoding/json"
	"math"
	"strings"
)

var idKeys = []string{"uuid", "primitive_id", "primitiveId", "id"}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func requireNumber(in Record, field string) (float64, error) {
	v, present := in[field]
	if !present || v == nil {
		return 0, missing(field)
	}
	n, ok := number(v)
	if !ok {
		return 0, &InputError{Field: field, Reason: "must be a number"}
	}
	return n, nil
}

func optionalNumber(in Record, field string, fallback float64) float64 {
	if n, ok := number(in[field]); ok {
		return n
	}
	return fallback
}

func str(in Record, keys ...string) string {
	for _, key := range keys {
		if s, ok := in[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func requireID(in Record) (string, error) {
	if id := str(in, idKeys...); id != "" {
		return id, nil
	}
	return "", missing("uuid")
}

// properties returns the fields to change: an explicit "properties" object,
// or every non-identifier key of the input.
func properties(in Record) (Record, error) {
	if p, present := in["properties"]; present {
		m, ok := p.(map[string]any)
		if !ok {
			return nil, &InputError{Field: "properties", Reason: "must be an object"}
		}
		if len(m) == 0 {
			return nil, &InputError{Field: "properties", Reason: "must not be empty"}
		}
		return Record(m).clone(), nil
	}
	props := Record{}
	for k, v := range in {
		if isIDKey(k) {
			continue
		}
		props[k] = v
	}
	if len(props) == 0 {
		return nil, &InputError{Field: "properties", Reason: "must not be empty"}
	}
	return props, nil
}

func isIDKey(k string) bool {
	for _, key := range idKeys {
		if k == key {
			return true
		}
	}
	return false
}

type componentInput struct {
	UUID        string
	DeviceUUID  string
	LibraryUUID string
	X, Y        float64
	Rotation    float64
	Mirror      bool
	SubPart     string
	Designator  string
}

func (c componentInput) deviceRef() map[string]any {
	ref := map[string]any{"uuid": c.DeviceUUID}
	if c.LibraryUUID != "" {
		ref["libraryUuid"] = c.LibraryUUID
	}
	return ref
}

func parseComponent(in Record) (componentInput, error) {
	var c componentInput
	switch d := firstPresent(in, "device", "component").(type) {
	case string:
		c.DeviceUUID = strings.TrimSpace(d)
	case map[string]any:
		c.DeviceUUID = str(d, "uuid", "device_uuid", "deviceUuid")
		c.LibraryUUID = str(d, "libraryUuid", "library_uuid")
	}
	if c.DeviceUUID == "" {
		c.DeviceUUID = str(in, "device_uuid", "deviceUuid")
	}
	if c.LibraryUUID == "" {
		c.LibraryUUID = str(in, "library_uuid", "libraryUuid")
	}
	if c.DeviceUUID == "" {
		return c, missing("device")
	}
	var err error
	if c.X, err = requireNumber(in, "x"); err != nil {
		return c, err
	}
	if c.Y, err = requireNumber(in, "y"); err != nil {
		return c, err
	}
	c.UUID = str(in, "uuid")
	c.Rotation = optionalNumber(in, "rotation", 0)
	c.Mirror, _ = in["mirror"].(bool)
	c.SubPart = str(in, "sub_part", "subPartName")
	c.Designator = str(in, "designator")
	return c, nil
}

func firstPresent(in Record, keys ...string) any {
	for _, key := range keys {
		if v, ok := in[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func parseLine(in Record) ([]float64, error) {
	raw, ok := in["line"].([]any)
	if !ok {
		if _, present := in["line"]; !present {
			return nil, missing("line")
		}
		return nil, &InputError{Field: "line", Reason: "must be an array of numbers"}
	}
	if len(raw) < 4 || len(raw)%2 != 0 {
		return nil, &InputError{Field: "line", Reason: "must hold at least two x,y points"}
	}
	line := make([]float64, len(raw))
	for i, v := range raw {
		n, ok := number(v)
		if !ok {
			return nil, &InputError{Field: "line", Reason: "must be an array of numbers"}
		}
		line[i] = n
	}
	return line, nil
}

type netInput struct {
	Kind     string
	Net      string
	X, Y     float64
	Rotation float64
	Mirror   bool
}

// parseNet reads a net flag or net port. kindKeys name the field carrying the
// flag identification or port direction.
func parseNet(in Record, fallback string, kindKeys ...string) (netInput, error) {
	n := netInput{Kind: str(in, kindKeys...), Net: str(in, "net", "net_name")}
	if n.Kind == "" {
		n.Kind = fallback
	}
	if n.Net == "" {
		return n, missing("net")
	}
	var err error
	if n.X, err = requireNumber(in, "x"); err != nil {
		return n, err
	}
	if n.Y, err = requireNumber(in, "y"); err != nil {
		return n, err
	}
	n.Rotation = optionalNumber(in, "rotation", 0)
	n.Mirror, _ = in["mirror"].(bool)
	return n, nil
}

func samePoint(a, b Record) bool {
	ax, okAX := number(a["x"])
	ay, okAY := number(a["y"])
	bx, okBX := number(b["x"])
	by, okBY := number(b["y"])
	if !okAX || !okAY || !okBX || !okBY {
		return false
	}
	return math.Abs(ax-bx) < 1e-6 && math.Abs(ay-by) < 1e-6
}
