package gcontext

// Value is one result field: either a numeric payload or a string one,
// mirroring how fragment.Fragment keeps VertexData and VertexStrings
// separate rather than unioning them into one dynamically-typed cell.
type Value struct {
	Num      float64
	Str      string
	IsString bool
}
