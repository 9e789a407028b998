package checkpoint

import "time"

// Format constants.
const (
	MagicBytes      = "NAPC"
	FormatVersion   = 2
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum position in the fixed header
	DTypeFloat64    = "float64"
	elemSize        = 8
)

// Flags stored in the fixed header.
const (
	FlagHasOptimizer uint32 = 1 << 1 // optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // custom metadata included
	FlagHasMasks     uint32 = 1 << 3 // persistent parameter masks included
)

// Header is the JSON header of a .napc file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	NapcasVersion  string            `json:"napcas_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta describes the training state a checkpoint was taken at.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`
	Step            int64              `json:"step"`
	Loss            float64            `json:"loss"`
	OptimizerType   string             `json:"optimizer_type,omitempty"`
	OptimizerConfig map[string]float64 `json:"optimizer_config,omitempty"`
}

// TensorMeta describes one tensor of the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // Relative to the start of the data section
	Size   int64  `json:"size"`   // In bytes
}

// Tensor returns the metadata of the named tensor.
func (h *Header) Tensor(name string) (TensorMeta, bool) {
	for _, meta := range h.Tensors {
		if meta.Name == name {
			return meta, true
		}
	}
	return TensorMeta{}, false
}

// padding returns the number of zero bytes that align pos to HeaderAlignment.
func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
