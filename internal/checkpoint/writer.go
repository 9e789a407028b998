package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/napcas-ml/napcas/internal/tensor"
	"github.com/napcas-ml/napcas/internal/version"
)

// Writer writes state dictionaries in .napc format.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that encodes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteStateDict encodes state with the given header.
//
// Tensors are laid out in name order. The Tensors, FormatVersion,
// NapcasVersion and (if zero) CreatedAt fields of header are filled in.
func (w *Writer) WriteStateDict(state map[string]*tensor.Tensor, header Header) error {
	names := make([]string, 0, len(state))
	for name := range state {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var dataSize int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		t := state[name]
		size := int64(t.Size()) * elemSize
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(t.Shape().Clone()),
			Offset: dataSize,
			Size:   size,
		})
		dataSize += size
	}

	data := make([]byte, dataSize)
	for i, name := range names {
		off := header.Tensors[i].Offset
		for j, v := range state[name].Data() {
			binary.LittleEndian.PutUint64(data[off+int64(j)*elemSize:], math.Float64bits(v))
		}
	}

	header.FormatVersion = FormatVersion
	header.NapcasVersion = version.Version
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	var fixed [FixedHeaderSize]byte
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flagsFor(names, header))
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize))
	checksum := sha256.Sum256(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.w.Write(fixed[:]); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if pad := padding(FixedHeaderSize + int64(len(headerJSON))); pad > 0 {
		if _, err := w.w.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

func flagsFor(names []string, header Header) uint32 {
	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	for _, name := range names {
		if strings.HasPrefix(name, OptimizerPrefix) {
			flags |= FlagHasOptimizer
		}
		if strings.HasSuffix(name, MaskSuffix) {
			flags |= FlagHasMasks
		}
	}
	return flags
}

// WriteFile writes state to path. The file is replaced atomically.
func WriteFile(path string, state map[string]*tensor.Tensor, header Header) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".napc-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err := NewWriter(f).WriteStateDict(state, header); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return os.Rename(f.Name(), path)
}
