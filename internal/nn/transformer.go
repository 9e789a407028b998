package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// TransformerBlock is a residual self-attention block followed by a
// residual position-wise feed-forward network:
//
//	h = x + MHA(x)
//	y = h + W_2·ReLU(W_1·h)
//
// Input and output are [seq_len, batch, d_model].
type TransformerBlock struct {
	attn *MultiHeadAttention
	ff1  *Linear
	act  *ReLU
	ff2  *Linear

	shape                  tensor.Shape
	attnOut, h, f1, f2, r1 *tensor.Tensor
	gh, gf1, gr1, gtmp     *tensor.Tensor
}

// NewTransformerBlock creates a block with the given model width, head
// count and feed-forward width.
func NewTransformerBlock(dModel, numHeads, dFF int) *TransformerBlock {
	if dFF <= 0 {
		panic(fmt.Sprintf("TransformerBlock: d_ff must be positive, got %d", dFF))
	}
	return &TransformerBlock{
		attn: NewMultiHeadAttention(dModel, numHeads),
		ff1:  NewLinear(dModel, dFF),
		act:  NewReLU(),
		ff2:  NewLinear(dFF, dModel),
	}
}

// Attention returns the block's attention sublayer.
func (t *TransformerBlock) Attention() *MultiHeadAttention { return t.attn }

// OutputShape implements Module.
func (t *TransformerBlock) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	return t.attn.OutputShape(in)
}

// Forward implements Module.
func (t *TransformerBlock) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("TransformerBlock.Forward", t, input, output); err != nil {
		return err
	}
	shape := input.Shape()
	ffShape := shape.WithLast(t.ff1.OutFeatures())

	attnOut := scratch(&t.attnOut, shape)
	if err := t.attn.Forward(input, attnOut); err != nil {
		return err
	}
	h := scratch(&t.h, shape)
	copy(h.Data(), input.Data())
	if err := h.AddInPlace(attnOut); err != nil {
		return err
	}

	f1 := scratch(&t.f1, ffShape)
	if err := t.ff1.Forward(h, f1); err != nil {
		return err
	}
	r1 := scratch(&t.r1, ffShape)
	if err := t.act.Forward(f1, r1); err != nil {
		return err
	}
	f2 := scratch(&t.f2, shape)
	if err := t.ff2.Forward(r1, f2); err != nil {
		return err
	}

	copy(output.Data(), h.Data())
	if err := output.AddInPlace(f2); err != nil {
		return err
	}
	t.shape = shape
	return nil
}

// Backward implements Module.
func (t *TransformerBlock) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if t.shape == nil {
		return tensor.StateErrorf("TransformerBlock.Backward called before Forward")
	}
	if err := tensor.CheckShape("TransformerBlock.Backward", "grad_output", gradOutput.Shape(), t.shape); err != nil {
		return err
	}
	ffShape := t.shape.WithLast(t.ff1.OutFeatures())

	// Feed-forward branch.
	gr1 := scratch(&t.gr1, ffShape)
	if err := t.ff2.Backward(gradOutput, gr1); err != nil {
		return err
	}
	gf1 := scratch(&t.gf1, ffShape)
	if err := t.act.Backward(gr1, gf1); err != nil {
		return err
	}
	gh := scratch(&t.gh, t.shape)
	if err := t.ff1.Backward(gf1, gh); err != nil {
		return err
	}
	if err := gh.AddInPlace(gradOutput); err != nil {
		return err
	}

	// Attention branch.
	gtmp := scratch(&t.gtmp, t.shape)
	if err := t.attn.Backward(gh, gtmp); err != nil {
		return err
	}
	if err := gradInput.CopyFrom(gh); err != nil {
		return err
	}
	return gradInput.AddInPlace(gtmp)
}

// Update implements Module.
func (t *TransformerBlock) Update(lr float64) { updateParams(t.Parameters(), lr) }

// Parameters returns attention then feed-forward parameters.
func (t *TransformerBlock) Parameters() []*Parameter {
	params := t.attn.Parameters()
	params = append(params, t.ff1.Parameters()...)
	return append(params, t.ff2.Parameters()...)
}

// PositionalEncoding adds fixed sinusoidal position encodings to a
// [seq_len, batch, d_model] input:
//
//	PE(pos, 2i)   = sin(pos / 10000^(2i/d))
//	PE(pos, 2i+1) = cos(pos / 10000^(2i/d))
type PositionalEncoding struct {
	dModel int
	table  []float64 // [len, d_model], grown on demand
	ready  bool
}

// NewPositionalEncoding creates a sinusoidal positional encoding.
func NewPositionalEncoding(dModel int) *PositionalEncoding {
	if dModel <= 0 {
		panic(fmt.Sprintf("PositionalEncoding: d_model must be positive, got %d", dModel))
	}
	return &PositionalEncoding{dModel: dModel}
}

func (p *PositionalEncoding) ensure(seqLen int) {
	have := len(p.table) / p.dModel
	if have >= seqLen {
		return
	}
	table := make([]float64, seqLen*p.dModel)
	for pos := 0; pos < seqLen; pos++ {
		for i := 0; i < p.dModel; i += 2 {
			angle := float64(pos) / math.Pow(10000, float64(i)/float64(p.dModel))
			table[pos*p.dModel+i] = math.Sin(angle)
			if i+1 < p.dModel {
				table[pos*p.dModel+i+1] = math.Cos(angle)
			}
		}
	}
	p.table = table
}

// Encoding returns the encoding of position pos.
func (p *PositionalEncoding) Encoding(pos int) []float64 {
	p.ensure(pos + 1)
	out := make([]float64, p.dModel)
	copy(out, p.table[pos*p.dModel:])
	return out
}

// OutputShape implements Module.
func (p *PositionalEncoding) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) != 3 || in[2] != p.dModel {
		return nil, tensor.ShapeErrorf("PositionalEncoding: expected input [seq_len, batch, %d], got %v", p.dModel, in)
	}
	return in.Clone(), nil
}

// Forward implements Module.
func (p *PositionalEncoding) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("PositionalEncoding.Forward", p, input, output); err != nil {
		return err
	}
	seqLen, batch := input.Dim(0), input.Dim(1)
	p.ensure(seqLen)
	x, y := input.Data(), output.Data()
	for s := 0; s < seqLen; s++ {
		pe := p.table[s*p.dModel : (s+1)*p.dModel]
		for b := 0; b < batch; b++ {
			off := (s*batch + b) * p.dModel
			for d, v := range pe {
				y[off+d] = x[off+d] + v
			}
		}
	}
	p.ready = true
	return nil
}

// Backward passes the gradient through unchanged.
func (p *PositionalEncoding) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if !p.ready {
		return tensor.StateErrorf("PositionalEncoding.Backward called before Forward")
	}
	return gradInput.CopyFrom(gradOutput)
}

// Update is a no-op.
func (p *PositionalEncoding) Update(float64) {}

// Parameters returns nil.
func (p *PositionalEncoding) Parameters() []*Parameter { return nil }

// TransformerConfig configures NewTransformer.
type TransformerConfig struct {
	DModel    int  // Model width
	NumHeads  int  // Attention heads per block
	NumLayers int  // Number of blocks
	DFF       int  // Feed-forward width (default: 4 * DModel)
	Causal    bool // Mask attention to earlier positions
}

// NewTransformer builds positional encoding followed by NumLayers blocks.
func NewTransformer(cfg TransformerConfig) (*Sequential, error) {
	if cfg.DModel <= 0 || cfg.NumHeads <= 0 || cfg.DModel%cfg.NumHeads != 0 {
		return nil, fmt.Errorf("transformer: d_model (%d) must be a positive multiple of num_heads (%d)", cfg.DModel, cfg.NumHeads)
	}
	if cfg.NumLayers <= 0 {
		return nil, fmt.Errorf("transformer: num_layers must be positive, got %d", cfg.NumLayers)
	}
	if cfg.DFF == 0 {
		cfg.DFF = 4 * cfg.DModel
	}
	seq := NewSequential(NewPositionalEncoding(cfg.DModel))
	for i := 0; i < cfg.NumLayers; i++ {
		block := NewTransformerBlock(cfg.DModel, cfg.NumHeads, cfg.DFF)
		block.Attention().SetCausal(cfg.Causal)
		seq.Add(block)
	}
	return seq, nil
}
