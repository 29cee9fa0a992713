package capability

import "github.com/HsiangNianian/aieda-bridge/internal/protocol"

type MethodStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type GroupReport struct {
	Methods   []MethodStatus `json:"methods"`
	Missing   []string       `json:"missing"`
	Available bool           `json:"available"`
}

type UpdateReport struct {
	Available []protocol.OpKind            `json:"available"`
	Missing   map[protocol.OpKind][]string `json:"missing"`
}

// Report is a snapshot of the host surface taken when an adapter is built.
type Report struct {
	EnvironmentDetected bool         `json:"environment_detected"`
	RuntimeMinimum      GroupReport  `json:"runtime_minimum"`
	ReadOptional        GroupReport  `json:"read_optional"`
	UpdateOperations    UpdateReport `json:"update_operations"`
	RuntimeAvailable    bool         `json:"runtime_available"`
}

// Probe inspects h for every required method. It only looks names up and
// never invokes anything on the host. A nil host is reported as undetected.
func Probe(h Host) Report {
	detected := h != nil && h.Detected()
	has := func(name string) bool {
		if !detected {
			return false
		}
		_, ok := h.Lookup(name)
		return ok
	}
	return build(detected, has)
}

// Full is the report of a surface where every method exists.
func Full() Report {
	return build(true, func(string) bool { return true })
}

func build(detected bool, has func(string) bool) Report {
	r := Report{
		EnvironmentDetected: detected,
		RuntimeMinimum:      group(RuntimeMinimum, has),
		ReadOptional:        group(ReadOptional, has),
		UpdateOperations: UpdateReport{
			Available: []protocol.OpKind{},
			Missing:   map[protocol.OpKind][]string{},
		},
	}
	for _, kind := range protocol.OpKinds {
		var missing []string
		for _, name := range OperationRequirements[kind] {
			if !has(name) {
				missing = append(missing, name)
			}
		}
		if len(missing) == 0 {
			r.UpdateOperations.Available = append(r.UpdateOperations.Available, kind)
		} else {
			r.UpdateOperations.Missing[kind] = missing
		}
	}
	r.RuntimeAvailable = r.EnvironmentDetected && r.RuntimeMinimum.Available
	return r
}

func group(names []string, has func(string) bool) GroupReport {
	g := GroupReport{
		Methods: make([]MethodStatus, 0, len(names)),
		Missing: []string{},
	}
	for _, name := range names {
		ok := has(name)
		g.Methods = append(g.Methods, MethodStatus{Name: name, Available: ok})
		if !ok {
			g.Missing = append(g.Missing, name)
		}
	}
	g.Available = len(g.Missing) == 0
	return g
}

// Has reports whether name was present when the report was taken.
func (r Report) Has(name string) bool {
	for _, g := range []GroupReport{r.RuntimeMinimum, r.ReadOptional} {
		for _, m := range g.Methods {
			if m.Name == name {
				return m.Available
			}
		}
	}
	for kind, names := range OperationRequirements {
		for _, n := range names {
			if n == name {
				return r.OperationAvailable(kind)
			}
		}
	}
	return false
}

func (r Report) OperationAvailable(kind protocol.OpKind) bool {
	for _, k := range r.UpdateOperations.Available {
		if k == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate a cached report.
func (r Report) Clone() Report {
	out := r
	out.RuntimeMinimum = r.RuntimeMinimum.clone()
	out.ReadOptional = r.ReadOptional.clone()
	out.UpdateOperations.Available = append([]protocol.OpKind{}, r.UpdateOperations.Available...)
	out.UpdateOperations.Missing = make(map[protocol.OpKind][]string, len(r.UpdateOperations.Missing))
	for k, v := range r.UpdateOperations.Missing {
		out.UpdateOperations.Missing[k] = append([]string{}, v...)
	}
	return out
}

func (g GroupReport) clone() GroupReport {
	return GroupReport{
		Methods:   append([]MethodStatus{}, g.Methods...),
		Missing:   append([]string{}, g.Missing...),
		Available: g.Available,
	}
}
