package fragment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trpc.group/trpc-go/grape-engine/fragment"
)

func TestVertexMapEqual(t *testing.T) {
	a := fragment.NewVertexMap(2)
	a.Bind(0, "person", 10, 11)
	a.Bind(1, "person", 20, 21)

	b := fragment.NewVertexMap(2)
	b.Bind(0, "person", 10, 11)
	b.Bind(1, "person", 20, 21)

	assert.True(t, a.Equal(b))

	c := fragment.NewVertexMap(2)
	c.Bind(0, "person", 10, 11)
	c.Bind(1, "person", 20, 99)
	assert.False(t, a.Equal(c))

	d := fragment.NewVertexMap(3)
	assert.False(t, a.Equal(d))
}

func TestFragmentLabelID(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	f.AddVertexLabel("person")
	f.AddVertexLabel("software")

	id, ok := f.LabelID("software")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok = f.LabelID("unknown")
	assert.False(t, ok)
}

func TestFragmentAddInnerVertexAndValues(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	f.AddInnerVertex("person", 1)
	f.AddInnerVertex("person", 2)
	f.SetVertexValue("person", 1, "value", 3.5)
	f.SetVertexString("person", 2, "name", "bob")

	assert.Equal(t, []int64{1, 2}, f.InnerVertices["person"])
	assert.Contains(t, f.Properties["person"], "value")
	assert.Contains(t, f.Properties["person"], "name")
}
