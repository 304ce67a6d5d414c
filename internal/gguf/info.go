package gguf

import "fmt"

// String returns the metadata value at key when it is a string.
func (f *File) String(key string) (string, bool) {
	v, ok := f.KV[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

// Uint returns the metadata value at key widened to uint64. All integer
// widths qualify; negative values do not.
func (f *File) Uint(key string) (uint64, bool) {
	v, ok := f.KV[key]
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int8:
		if t >= 0 {
			return uint64(t), true
		}
	case int16:
		if t >= 0 {
			return uint64(t), true
		}
	case int32:
		if t >= 0 {
			return uint64(t), true
		}
	case int64:
		if t >= 0 {
			return uint64(t), true
		}
	}
	return 0, false
}

// Float returns the metadata value at key when it is a float.
func (f *File) Float(key string) (float64, bool) {
	v, ok := f.KV[key]
	if !ok {
		return 0, false
	}
	switch t := v.Value.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// Architecture returns general.architecture, or "" when absent.
func (f *File) Architecture() string {
	s, _ := f.String("general.architecture")
	return s
}

// Name returns general.name, or "" when absent.
func (f *File) Name() string {
	s, _ := f.String("general.name")
	return s
}

// ContextLength returns the architecture's trained context length.
func (f *File) ContextLength() (uint64, bool) {
	return f.Uint(f.Architecture() + ".context_length")
}

// EmbeddingLength returns the architecture's embedding width.
func (f *File) EmbeddingLength() (uint64, bool) {
	return f.Uint(f.Architecture() + ".embedding_length")
}

// BlockCount returns the architecture's transformer block count.
func (f *File) BlockCount() (uint64, bool) {
	return f.Uint(f.Architecture() + ".block_count")
}

// ParamCount sums the elements of every tensor in the file.
func (f *File) ParamCount() uint64 {
	var n uint64
	for _, t := range f.Tensors {
		n += t.Elements()
	}
	return n
}

// fileTypeNames maps general.file_type to the usual quantization label.
var fileTypeNames = map[uint64]string{
	0:  "F32",
	1:  "F16",
	2:  "Q4_0",
	3:  "Q4_1",
	7:  "Q8_0",
	8:  "Q5_0",
	9:  "Q5_1",
	10: "Q2_K",
	11: "Q3_K_S",
	12: "Q3_K_M",
	13: "Q3_K_L",
	14: "Q4_K_S",
	15: "Q4_K_M",
	16: "Q5_K_S",
	17: "Q5_K_M",
	18: "Q6_K",
	19: "IQ2_XXS",
	20: "IQ2_XS",
	24: "IQ1_S",
	25: "IQ4_NL",
	30: "BF16",
	32: "MXFP4",
}

// Quantization names the file's overall quantization. When
// general.file_type is absent it falls back to the type of the largest
// tensor, which dominates the weights.
func (f *File) Quantization() string {
	if v, ok := f.Uint("general.file_type"); ok {
		if name, ok := fileTypeNames[v]; ok {
			return name
		}
		return fmt.Sprintf("ftype(%d)", v)
	}
	var largest *Tensor
	for i := range f.Tensors {
		if largest == nil || f.Tensors[i].Elements() > largest.Elements() {
			largest = &f.Tensors[i]
		}
	}
	if largest == nil {
		return "unknown"
	}
	return largest.Type.String()
}
