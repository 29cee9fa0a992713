package protocol

// AdaptLegacy rewrites older message shapes into the envelope form before
// normalization. Accepted shapes:
//
//	{"command": "read_schema", "params": {...}}
//	{"cmd": "read_schema", "args": {...}}
//	{"command": {<envelope>}}
//
// Anything else is returned unchanged.
func AdaptLegacy(raw any) any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	if _, has := obj["action"]; has {
		return raw
	}

	if inner, ok := obj["command"].(map[string]any); ok {
		out := copyMap(inner)
		if _, has := out["id"]; !has {
			if id, present := obj["id"]; present {
				out["id"] = id
			}
		}
		return out
	}

	name, ok := obj["command"].(string)
	if !ok {
		name, ok = obj["cmd"].(string)
	}
	if !ok {
		return raw
	}

	out := copyMap(obj)
	delete(out, "command")
	delete(out, "cmd")
	out["action"] = name
	if _, has := out["payload"]; !has {
		for _, key := range []string{"params", "args"} {
			if p, present := out[key]; present {
				out["payload"] = p
				delete(out, key)
				break
			}
		}
	}
	return out
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
