package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Reader decodes a .napc file.
//
// The data checksum and the header are validated when the Reader is
// created; tensors are decoded on demand.
type Reader struct {
	src        io.ReaderAt
	closer     io.Closer
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
}

// Open opens the .napc file at path.
func Open(path string, level ValidationLevel) (*Reader, error) {
	//nolint:gosec // G304: the checkpoint path is user input
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	r, err := NewReader(f, info.Size(), level)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the headers of a .napc stream of the given size and
// validates its checksum.
func NewReader(src io.ReaderAt, size int64, level ValidationLevel) (*Reader, error) {
	var fixed [FixedHeaderSize]byte
	if _, err := src.ReadAt(fixed[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file shorter than the %d-byte header", ErrInvalidMagic, FixedHeaderSize)
		}
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, string(fixed[0:4]), MagicBytes)
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	headerEnd := FixedHeaderSize + int64(headerSize)
	dataOffset := headerEnd + padding(headerEnd)
	//nolint:gosec // G115: compared against the real file size below
	if int64(dataSize) < 0 || dataOffset+int64(dataSize) != size {
		return nil, &ValidationError{
			Type:    "out_of_bounds",
			Details: fmt.Sprintf("header declares %d data bytes at offset %d, file has %d bytes", dataSize, dataOffset, size),
		}
	}

	headerBytes := make([]byte, headerSize)
	if _, err := src.ReadAt(headerBytes, FixedHeaderSize); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	if err := verifyDataSection(src, dataOffset, int64(dataSize), stored); err != nil {
		return nil, err
	}
	if err := ValidateHeader(&header, int64(dataSize), level); err != nil {
		return nil, err
	}

	return &Reader{
		src:        src,
		header:     header,
		flags:      flags,
		dataOffset: dataOffset,
		dataSize:   int64(dataSize),
	}, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Flags returns the flags of the fixed header.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// DataSize returns the size of the data section in bytes.
func (r *Reader) DataSize() int64 {
	return r.dataSize
}

// TensorNames returns the names of all tensors in file order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// Tensor decodes the named tensor.
func (r *Reader) Tensor(name string) (*tensor.Tensor, error) {
	meta, ok := r.header.Tensor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTensor, name)
	}
	if err := validateTensorMeta(meta); err != nil {
		return nil, err
	}
	buf := make([]byte, meta.Size)
	if _, err := r.src.ReadAt(buf, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	data := make([]float64, len(buf)/elemSize)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*elemSize:]))
	}
	return tensor.FromSlice(data, tensor.Shape(meta.Shape))
}

// StateDict decodes every tensor.
func (r *Reader) StateDict() (map[string]*tensor.Tensor, error) {
	state := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.Tensor(meta.Name)
		if err != nil {
			return nil, err
		}
		state[meta.Name] = t
	}
	return state, nil
}

// Close releases the underlying file, if the Reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
