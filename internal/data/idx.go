package data

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// LoadIDX loads an image/label pair in IDX format (the MNIST layout).
// Pixels are scaled to [0, 1]. Inputs have shape [n, 1, rows, cols];
// targets are class indices, shape [n]. maxSamples <= 0 loads everything.
func LoadIDX(imagesPath, labelsPath string, maxSamples int) (*Dataset, error) {
	images, rows, cols, err := readIDXImages(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	labels, err := readIDXLabels(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(images), len(labels))
	}

	n := len(images)
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}
	x := tensor.New(n, 1, rows, cols)
	y := tensor.New(n)
	for i := 0; i < n; i++ {
		dst := x.Data()[i*rows*cols : (i+1)*rows*cols]
		for j, p := range images[i] {
			dst[j] = float64(p) / 255
		}
		y.Data()[i] = float64(labels[i])
	}
	return &Dataset{Inputs: x, Targets: y}, nil
}

// readIDXImages reads an IDX image file:
//
//	magic number: 0x00000803 (2051)
//	number of images, rows, cols: 4 bytes each
//	pixel data: unsigned bytes (0-255)
func readIDXImages(filename string) (images [][]byte, rows, cols int, err error) {
	//nolint:gosec // G304: dataset path is user input
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()

	var hdr [4]uint32
	if err := binary.Read(file, binary.BigEndian, &hdr); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("invalid magic number: got %d, want %d", hdr[0], idxImagesMagic)
	}
	rows, cols = int(hdr[2]), int(hdr[3])
	images = make([][]byte, hdr[1])
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(file, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return images, rows, cols, nil
}

// readIDXLabels reads an IDX label file:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func readIDXLabels(filename string) ([]byte, error) {
	//nolint:gosec // G304: dataset path is user input
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var hdr [2]uint32
	if err := binary.Read(file, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr[0] != idxLabelsMagic {
		return nil, fmt.Errorf("invalid magic number: got %d, want %d", hdr[0], idxLabelsMagic)
	}
	labels := make([]byte, hdr[1])
	if _, err := io.ReadFull(file, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}
