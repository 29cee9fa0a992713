package adapter

import "context"

// reconcile swaps enumeration-order identifiers for the canonical ones
// mutation calls expect. It never fails: when the canonical listing cannot
// be read the records come back as listed.
func (e *EasyEDA) reconcile(ctx context.Context, records []Record, listIDs, get string) []Record {
	if !e.caps.Has(listIDs) {
		return records
	}
	out, err := e.call(ctx, listIDs)
	if err != nil {
		return records
	}
	canonical := toStrings(out)
	if len(canonical) == 0 {
		return records
	}
	var detail func(context.Context, string) (Record, error)
	if e.caps.Has(get) {
		detail = func(ctx context.Context, id string) (Record, error) {
			out, err := e.call(ctx, get, id)
			if err != nil {
				return nil, err
			}
			m, _ := out.(map[string]any)
			return Record(m), nil
		}
	}
	return Reconcile(ctx, records, canonical, detail)
}

// Reconcile assigns canonical identifiers to records in two passes.
//
// First, records whose identifier shares a trailing numeric suffix with
// exactly one canonical identifier take that identifier. Second, every
// canonical identifier still unclaimed is looked up with detail and paired
// with the first unmapped record at the same x/y. Records that match
// nothing keep their original identifier. Suffixes shared by several
// canonical identifiers are ambiguous and skipped in the first pass.
func Reconcile(ctx context.Context, records []Record, canonical []string, detail func(context.Context, string) (Record, error)) []Record {
	known := make(map[string]bool, len(canonical))
	bySuffix := map[string]string{}
	ambiguous := map[string]bool{}
	for _, id := range canonical {
		known[id] = true
		suffix := numericSuffix(id)
		if suffix == "" {
			continue
		}
		if _, dup := bySuffix[suffix]; dup {
			ambiguous[suffix] = true
			continue
		}
		bySuffix[suffix] = id
	}

	out := make([]Record, len(records))
	claimed := map[string]bool{}
	var unmapped []int
	for i, r := range records {
		out[i] = r.clone()
		if known[r.ID()] {
			claimed[r.ID()] = true
		}
	}
	for i, r := range out {
		id := r.ID()
		if known[id] {
			continue
		}
		suffix := numericSuffix(id)
		target, ok := bySuffix[suffix]
		if ok && !ambiguous[suffix] && !claimed[target] {
			r["uuid"] = target
			claimed[target] = true
			continue
		}
		unmapped = append(unmapped, i)
	}

	if detail == nil || len(unmapped) == 0 {
		return out
	}
	for _, id := range canonical {
		if claimed[id] || len(unmapped) == 0 {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		d, err := detail(ctx, id)
		if err != nil || d == nil {
			continue
		}
		for j, idx := range unmapped {
			if samePoint(out[idx], d) {
				out[idx]["uuid"] = id
				claimed[id] = true
				unmapped = append(unmapped[:j], unmapped[j+1:]...)
				break
			}
		}
	}
	return out
}

func numericSuffix(id string) string {
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}
	return id[start:end]
}

func toStrings(v any) []string {
	switch ids := v.(type) {
	case []string:
		return ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
