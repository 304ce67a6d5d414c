// Package gguf reads model metadata from GGUF files: header, key-value
// pairs, and tensor descriptors. Tensor data itself is never touched;
// loading weights is the native decoder's job.
package gguf

import (
	"fmt"
	"io"
	"os"
)

const magic = "GGUF"

// ValueType tags a metadata value in the file.
type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeFloat32:
		return "f32"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat64:
		return "f64"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Value is one metadata entry.
type Value struct {
	Type  ValueType
	Value any
}

// Array is the decoded form of a TypeArray value.
type Array struct {
	Elem   ValueType
	Values []any
}

// Tensor describes one tensor without its data.
type Tensor struct {
	Name   string
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// Elements returns the number of scalar elements in the tensor.
func (t Tensor) Elements() uint64 {
	n := uint64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// File is the parsed metadata of one GGUF model file.
type File struct {
	Path     string
	FileSize int64
	Version  uint32

	KV      map[string]Value
	Tensors []Tensor

	Alignment        uint64
	TensorDataOffset uint64
}

// Open parses the metadata of the GGUF file at path. The file handle is
// released before Open returns.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	parsed, err := Decode(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	parsed.Path = path
	return parsed, nil
}

// Decode parses GGUF metadata from r. size bounds string and array
// lengths so a corrupt header cannot demand an absurd allocation; pass
// the file size, or 0 when unknown.
func Decode(rd io.Reader, size int64) (*File, error) {
	r := newReader(rd, size)

	if got := string(r.take(4)); r.err == nil && got != magic {
		return nil, fmt.Errorf("not a gguf file (magic %q)", got)
	}
	version := r.u32()
	if r.err == nil && version != 2 && version != 3 {
		return nil, fmt.Errorf("unsupported gguf version %d", version)
	}
	tensorCount := r.u64()
	kvCount := r.u64()
	if r.err != nil {
		return nil, fmt.Errorf("read header: %w", r.err)
	}

	kv := make(map[string]Value, kvCount)
	for i := uint64(0); i < kvCount; i++ {
		key := r.str()
		vtype := ValueType(r.u32())
		val := readValue(r, vtype)
		if r.err != nil {
			return nil, fmt.Errorf("read metadata entry %d: %w", i, r.err)
		}
		kv[key] = Value{Type: vtype, Value: val}
	}

	tensors := make([]Tensor, 0, tensorCount)
	for i := uint64(0); i < tensorCount; i++ {
		name := r.str()
		ndim := r.u32()
		if r.err == nil && ndim > 8 {
			r.err = fmt.Errorf("implausible dimension count %d", ndim)
		}
		dims := make([]uint64, 0, ndim)
		for d := uint32(0); d < ndim && r.err == nil; d++ {
			dims = append(dims, r.u64())
		}
		ttype := TensorType(r.u32())
		offset := r.u64()
		if r.err != nil {
			return nil, fmt.Errorf("read tensor descriptor %d: %w", i, r.err)
		}
		tensors = append(tensors, Tensor{Name: name, Dims: dims, Type: ttype, Offset: offset})
	}

	file := &File{
		FileSize:  size,
		Version:   version,
		KV:        kv,
		Tensors:   tensors,
		Alignment: 32,
	}
	if v, ok := file.Uint("general.alignment"); ok && v > 0 {
		file.Alignment = v
	}
	file.TensorDataOffset = align(uint64(r.off), file.Alignment)
	return file, nil
}

func readValue(r *reader, vtype ValueType) any {
	switch vtype {
	case TypeUint8:
		return r.u8()
	case TypeInt8:
		return int8(r.u8())
	case TypeUint16:
		return r.u16()
	case TypeInt16:
		return int16(r.u16())
	case TypeUint32:
		return r.u32()
	case TypeInt32:
		return int32(r.u32())
	case TypeUint64:
		return r.u64()
	case TypeInt64:
		return int64(r.u64())
	case TypeFloat32:
		return r.f32()
	case TypeFloat64:
		return r.f64()
	case TypeBool:
		return r.u8() != 0
	case TypeString:
		return r.str()
	case TypeArray:
		elem := ValueType(r.u32())
		count := r.u64()
		if r.err != nil {
			return nil
		}
		if r.size > 0 && count > uint64(r.size) {
			r.err = fmt.Errorf("array length %d exceeds file size", count)
			return nil
		}
		values := make([]any, 0, count)
		for i := uint64(0); i < count && r.err == nil; i++ {
			values = append(values, readValue(r, elem))
		}
		return Array{Elem: elem, Values: values}
	default:
		r.err = fmt.Errorf("unsupported value type %d", uint32(vtype))
		return nil
	}
}

func align(offset, alignment uint64) uint64 {
	if alignment == 0 {
		return offset
	}
	if rem := offset % alignment; rem != 0 {
		return offset + (alignment - rem)
	}
	return offset
}
