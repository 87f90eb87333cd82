package command

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TypeCode mirrors the shared-store library's Arrow-type enumeration
// used to tag each column's payload in a Dataframe archive.
type TypeCode int32

// Type codes recognized by the property-value dispatch in graphutil
// and by every ToNdArray/ToDataframe implementation.
const (
	TypeInt32 TypeCode = iota
	TypeInt64
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeUTF8
	TypeLargeUTF8
)

// Column is one named, typed payload in a Dataframe archive.
type Column struct {
	Name    string
	Type    TypeCode
	Payload []byte
}

// EncodeNdArray builds the NdArray archive: [type_code][total_count][payload].
func EncodeNdArray(typeCode TypeCode, totalCount int64, payload []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(typeCode))
	binary.Write(&buf, binary.LittleEndian, totalCount)
	buf.Write(payload)
	return buf.Bytes()
}

// EncodeDataframe builds the Dataframe archive:
// [num_columns][total_count] then, per column, [len-prefixed name][type_code][len-prefixed payload].
func EncodeDataframe(totalCount int64, cols []Column) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int64(len(cols)))
	binary.Write(&buf, binary.LittleEndian, totalCount)
	for _, c := range cols {
		binary.Write(&buf, binary.LittleEndian, int32(len(c.Name)))
		buf.WriteString(c.Name)
		binary.Write(&buf, binary.LittleEndian, int32(c.Type))
		binary.Write(&buf, binary.LittleEndian, int64(len(c.Payload)))
		buf.Write(c.Payload)
	}
	return buf.Bytes()
}

// DecodedNdArray is the parsed form of an NdArray archive, used by
// tests that assert on §8's "total_count equals the sum of per-worker
// inner-vertex counts" invariant.
type DecodedNdArray struct {
	Type       TypeCode
	TotalCount int64
	Payload    []byte
}

// DecodeNdArray parses an archive produced by EncodeNdArray.
func DecodeNdArray(archive []byte) (DecodedNdArray, error) {
	r := bytes.NewReader(archive)
	var typeCode int32
	var total int64
	if err := binary.Read(r, binary.LittleEndian, &typeCode); err != nil {
		return DecodedNdArray{}, fmt.Errorf("read type code: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &total); err != nil {
		return DecodedNdArray{}, fmt.Errorf("read total count: %w", err)
	}
	payload := make([]byte, r.Len())
	if _, err := r.Read(payload); err != nil && r.Len() != 0 {
		return DecodedNdArray{}, fmt.Errorf("read payload: %w", err)
	}
	return DecodedNdArray{Type: TypeCode(typeCode), TotalCount: total, Payload: payload}, nil
}

// DecodedDataframe is the parsed form of a Dataframe archive.
type DecodedDataframe struct {
	TotalCount int64
	Columns    []Column
}

// DecodeDataframe parses an archive produced by EncodeDataframe.
func DecodeDataframe(archive []byte) (DecodedDataframe, error) {
	r := bytes.NewReader(archive)
	var numCols, total int64
	if err := binary.Read(r, binary.LittleEndian, &numCols); err != nil {
		return DecodedDataframe{}, fmt.Errorf("read num columns: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &total); err != nil {
		return DecodedDataframe{}, fmt.Errorf("read total count: %w", err)
	}
	out := DecodedDataframe{TotalCount: total}
	for i := int64(0); i < numCols; i++ {
		var nameLen, typeCode int32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return DecodedDataframe{}, fmt.Errorf("column %d: read name length: %w", i, err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := r.Read(nameBuf); err != nil {
			return DecodedDataframe{}, fmt.Errorf("column %d: read name: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &typeCode); err != nil {
			return DecodedDataframe{}, fmt.Errorf("column %d: read type code: %w", i, err)
		}
		var payloadLen int64
		if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
			return DecodedDataframe{}, fmt.Errorf("column %d: read payload length: %w", i, err)
		}
		payload := make([]byte, payloadLen)
		if _, err := r.Read(payload); err != nil && payloadLen != 0 {
			return DecodedDataframe{}, fmt.Errorf("column %d: read payload: %w", i, err)
		}
		out.Columns = append(out.Columns, Column{
			Name:    string(nameBuf),
			Type:    TypeCode(typeCode),
			Payload: payload,
		})
	}
	return out, nil
}
