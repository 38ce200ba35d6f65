package agtype

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ToJSON renders v as the deterministic JSON described by spec §4.5:
//   - integers as decimals, floats with up to 10 significant digits and no trailing zeroes
//   - strings with JSON-standard escaping, control characters collapsed to a space
//   - Vertex -> {"id","labels","properties"}; Edge -> {"id","type","startNode","endNode","properties"}
//   - Path -> a JSON array of alternating vertex/edge objects
//
// The shape is byte-stable for a given input so it round-trips through the host's JSON functions
// (spec §6).
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindInteger:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		buf.WriteString(formatFloat(v.Float))
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindString:
		writeJSONString(buf, v.Str)
	case KindVertex:
		return writeVertex(buf, v.Vertex)
	case KindEdge:
		return writeEdge(buf, v.Edge)
	case KindPath:
		buf.WriteByte('[')
		for i, el := range v.Path {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindArray:
		buf.WriteByte('[')
		for i, el := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, p := range v.Object {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, p.Key)
			buf.WriteByte(':')
			if err := writeJSON(buf, p.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("agtype: unknown kind %d", v.Kind)
	}
	return nil
}

// formatFloat renders up to 10 significant digits with no trailing zeroes, per the original
// graphqlite C extension's agtype_value_to_string ("%.10g").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', 10, 64)
	return s
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteByte(' ') // control chars collapse to a space per spec §4.5
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeProperties(buf *bytes.Buffer, props []Property) error {
	buf.WriteByte('{')
	for i, p := range props {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, p.Key)
		buf.WriteByte(':')
		if err := writeJSON(buf, p.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeVertex(buf *bytes.Buffer, v *Vertex) error {
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatInt(v.ID, 10))
	buf.WriteString(`,"labels":[`)
	for i, l := range v.Labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, l)
	}
	buf.WriteString(`],"properties":`)
	if err := writeProperties(buf, v.Properties); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func writeEdge(buf *bytes.Buffer, e *Edge) error {
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatInt(e.ID, 10))
	buf.WriteString(`,"type":`)
	writeJSONString(buf, e.Type)
	buf.WriteString(`,"startNode":`)
	buf.WriteString(strconv.FormatInt(e.StartID, 10))
	buf.WriteString(`,"endNode":`)
	buf.WriteString(strconv.FormatInt(e.EndID, 10))
	buf.WriteString(`,"properties":`)
	if err := writeProperties(buf, e.Properties); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

// FromJSON parses arbitrary JSON (as produced by ToJSON, or by a plain JSON scalar/array/object)
// back into a Value, satisfying spec §8's "from_json(to_string(v)) yields a value equal to v".
// It does not attempt to distinguish a generic JSON object from a vertex/edge shape; callers that
// know the row came from a vertex/edge projection should use ParseVertexJSON/ParseEdgeJSON
// instead.
func FromJSON(data []byte) (Value, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("agtype: invalid json: %w", err)
	}
	return fromAny(raw)
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null, nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return NewInteger(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("agtype: invalid number %q: %w", t.String(), err)
		}
		return NewFloat(f), nil
	case string:
		return NewString(t), nil
	case []any:
		out := make([]Value, len(t))
		for i, el := range t {
			v, err := fromAny(el)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return NewArray(out), nil
	case map[string]any:
		if v, ok, err := tryVertex(t); ok {
			return v, err
		}
		if v, ok, err := tryEdge(t); ok {
			return v, err
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make([]Property, 0, len(keys))
		for _, k := range keys {
			v, err := fromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			props = append(props, Property{Key: k, Value: v})
		}
		return NewObject(props), nil
	default:
		return Value{}, fmt.Errorf("agtype: unsupported json value %T", raw)
	}
}

func tryVertex(m map[string]any) (Value, bool, error) {
	idn, hasID := m["id"].(json.Number)
	labelsRaw, hasLabels := m["labels"].([]any)
	propsRaw, hasProps := m["properties"].(map[string]any)
	if !hasID || !hasLabels || !hasProps {
		return Value{}, false, nil
	}
	id, err := idn.Int64()
	if err != nil {
		return Value{}, false, nil
	}
	labels := make([]string, 0, len(labelsRaw))
	for _, l := range labelsRaw {
		s, ok := l.(string)
		if !ok {
			return Value{}, false, nil
		}
		labels = append(labels, s)
	}
	props, err := propsFromMap(propsRaw)
	if err != nil {
		return Value{}, true, err
	}
	return NewVertex(&Vertex{ID: id, Labels: labels, Properties: props}), true, nil
}

func tryEdge(m map[string]any) (Value, bool, error) {
	idn, hasID := m["id"].(json.Number)
	typ, hasType := m["type"].(string)
	startn, hasStart := m["startNode"].(json.Number)
	endn, hasEnd := m["endNode"].(json.Number)
	propsRaw, hasProps := m["properties"].(map[string]any)
	if !hasID || !hasType || !hasStart || !hasEnd || !hasProps {
		return Value{}, false, nil
	}
	id, err1 := idn.Int64()
	start, err2 := startn.Int64()
	end, err3 := endn.Int64()
	if err1 != nil || err2 != nil || err3 != nil {
		return Value{}, false, nil
	}
	props, err := propsFromMap(propsRaw)
	if err != nil {
		return Value{}, true, err
	}
	return NewEdge(&Edge{ID: id, Type: typ, StartID: start, EndID: end, Properties: props}), true, nil
}

func propsFromMap(m map[string]any) ([]Property, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Property, 0, len(keys))
	for _, k := range keys {
		v, err := fromAny(m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, Property{Key: k, Value: v})
	}
	return out, nil
}

// ParseVertexJSON parses the host's JSON projection of a vertex (spec §4.5).
func ParseVertexJSON(data []byte) (Value, error) {
	v, err := FromJSON(data)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindVertex {
		return Value{}, fmt.Errorf("agtype: json is not a vertex shape")
	}
	return v, nil
}

// ParseEdgeJSON parses the host's JSON projection of an edge (spec §4.5).
func ParseEdgeJSON(data []byte) (Value, error) {
	v, err := FromJSON(data)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindEdge {
		return Value{}, fmt.Errorf("agtype: json is not an edge shape")
	}
	return v, nil
}
