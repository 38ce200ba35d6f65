package agtype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPathValidatesAlternationAndLength(t *testing.T) {
	v1 := NewVertex(&Vertex{ID: 1})
	v2 := NewVertex(&Vertex{ID: 2})
	e := NewEdge(&Edge{ID: 1, StartID: 1, EndID: 2})

	p, err := NewPath([]Value{v1, e, v2})
	require.NoError(t, err)
	require.Equal(t, KindPath, p.Kind)

	_, err = NewPath([]Value{v1, e})
	require.Error(t, err, "even length must be rejected")

	_, err = NewPath([]Value{v1, v2, e})
	require.Error(t, err, "must alternate starting with a vertex")

	_, err = NewPath([]Value{e, v1, e, v2, e})
	require.Error(t, err, "must begin with a vertex")
}

func TestCloneDoesNotShareSubstructure(t *testing.T) {
	orig := NewVertex(&Vertex{
		ID:     1,
		Labels: []string{"Person"},
		Properties: []Property{
			{Key: "name", Value: NewString("Alice")},
		},
	})
	clone := orig.Clone()
	clone.Vertex.Labels[0] = "Mutated"
	clone.Vertex.Properties[0].Value = NewString("Bob")

	require.Equal(t, "Person", orig.Vertex.Labels[0])
	require.Equal(t, "Alice", orig.Vertex.Properties[0].Value.Str)
}

func TestJSONRoundTrip(t *testing.T) {
	v := NewVertex(&Vertex{
		ID:     42,
		Labels: []string{"Person", "Employee"},
		Properties: []Property{
			{Key: "name", Value: NewString("Alice")},
			{Key: "age", Value: NewInteger(30)},
			{Key: "score", Value: NewFloat(3.14159)},
			{Key: "active", Value: NewBool(true)},
			{Key: "nickname", Value: Null},
		},
	})

	data, err := ToJSON(v)
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	require.True(t, Equal(v, back), "from_json(to_string(v)) must equal v")
}

func TestFloatFormattingNoTrailingZeroes(t *testing.T) {
	v := NewFloat(3.0)
	data, err := ToJSON(v)
	require.NoError(t, err)
	require.Equal(t, "3", string(data))

	v2 := NewFloat(1.0 / 3.0)
	data2, err := ToJSON(v2)
	require.NoError(t, err)
	require.Less(t, len(data2), 14)
}

func TestStringEscaping(t *testing.T) {
	v := NewString("line1\nline2\t\"quoted\"\x01")
	data, err := ToJSON(v)
	require.NoError(t, err)
	require.Contains(t, string(data), `\n`)
	require.Contains(t, string(data), `\t`)
	require.Contains(t, string(data), `\"`)
}

func TestParseVertexAndEdgeJSON(t *testing.T) {
	e := NewEdge(&Edge{ID: 7, Type: "KNOWS", StartID: 1, EndID: 2, Properties: []Property{
		{Key: "since", Value: NewInteger(2020)},
	}})
	data, err := ToJSON(e)
	require.NoError(t, err)

	back, err := ParseEdgeJSON(data)
	require.NoError(t, err)
	require.True(t, Equal(e, back))

	_, err = ParseVertexJSON(data)
	require.Error(t, err, "an edge-shaped JSON is not a vertex")
}

func TestPathJSONIsArrayOfAlternatingShapes(t *testing.T) {
	v1 := NewVertex(&Vertex{ID: 1, Labels: []string{"A"}})
	v2 := NewVertex(&Vertex{ID: 2, Labels: []string{"B"}})
	e := NewEdge(&Edge{ID: 1, Type: "R", StartID: 1, EndID: 2})
	p, err := NewPath([]Value{v1, e, v2})
	require.NoError(t, err)

	data, err := ToJSON(p)
	require.NoError(t, err)
	require.Equal(t, byte('['), data[0])
	require.Equal(t, byte(']'), data[len(data)-1])
}
