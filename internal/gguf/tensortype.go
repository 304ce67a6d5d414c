package gguf

import "fmt"

// TensorType is the GGML storage type of a tensor.
type TensorType uint32

const (
	TensorF32  TensorType = 0
	TensorF16  TensorType = 1
	TensorQ4_0 TensorType = 2
	TensorQ4_1 TensorType = 3
	TensorQ5_0 TensorType = 6
	TensorQ5_1 TensorType = 7
	TensorQ8_0 TensorType = 8
	TensorQ8_1 TensorType = 9
	TensorQ2_K TensorType = 10
	TensorQ3_K TensorType = 11
	TensorQ4_K TensorType = 12
	TensorQ5_K TensorType = 13
	TensorQ6_K TensorType = 14
	TensorQ8_K TensorType = 15
	TensorI8   TensorType = 24
	TensorI16  TensorType = 25
	TensorI32  TensorType = 26
	TensorI64  TensorType = 27
	TensorF64  TensorType = 28
	TensorBF16 TensorType = 30
)

func (t TensorType) String() string {
	switch t {
	case TensorF32:
		return "F32"
	case TensorF16:
		return "F16"
	case TensorQ4_0:
		return "Q4_0"
	case TensorQ4_1:
		return "Q4_1"
	case TensorQ5_0:
		return "Q5_0"
	case TensorQ5_1:
		return "Q5_1"
	case TensorQ8_0:
		return "Q8_0"
	case TensorQ8_1:
		return "Q8_1"
	case TensorQ2_K:
		return "Q2_K"
	case TensorQ3_K:
		return "Q3_K"
	case TensorQ4_K:
		return "Q4_K"
	case TensorQ5_K:
		return "Q5_K"
	case TensorQ6_K:
		return "Q6_K"
	case TensorQ8_K:
		return "Q8_K"
	case TensorI8:
		return "I8"
	case TensorI16:
		return "I16"
	case TensorI32:
		return "I32"
	case TensorI64:
		return "I64"
	case TensorF64:
		return "F64"
	case TensorBF16:
		return "BF16"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}
