package idgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trpc.group/trpc-go/grape-engine/idgen"
)

func TestNextIsMonotonicAndUnique(t *testing.T) {
	g := idgen.New(0)
	a := g.Next("graph")
	b := g.Next("graph")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "graph-1", a)
	assert.Equal(t, "graph-2", b)
}

func TestNextClusterWideEncodesRank(t *testing.T) {
	g := idgen.New(3)
	id := g.NextClusterWide("ctx")
	assert.Equal(t, "ctx-r3-1", id)
}
