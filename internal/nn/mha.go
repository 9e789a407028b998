package nn

import (
	"fmt"
	"math"

	"github.com/napcas-ml/napcas/internal/backend/cpu"
	"github.com/napcas-ml/napcas/internal/parallel"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// MultiHeadAttention implements multi-head scaled dot-product self-attention.
//
// Input and output are [seq_len, batch, d_model]. The model dimension is
// split into heads of d_model/num_heads features:
//
//	Q, K, V = x·W_qᵗ, x·W_kᵗ, x·W_vᵗ
//	head_h  = softmax(Q_h·K_hᵗ / sqrt(d_head)) · V_h
//	y       = concat(head_1..head_n) · W_oᵗ
//
// Each (batch, head) pair is computed independently with a single
// score row of scratch, so the full [seq, seq] attention matrix never
// exists. Only the per-row log-sum-exp is kept; Backward rebuilds the
// attention weights from the cached Q, K and those row statistics.
//
// Example:
//
//	mha := nn.NewMultiHeadAttention(512, 8)
//	// x: [seq, batch, 512] -> [seq, batch, 512]
type MultiHeadAttention struct {
	dModel   int
	numHeads int
	headDim  int
	causal   bool

	wq, wk, wv, wo *Linear

	seqLen, batch int
	q, k, v, ctx  *tensor.Tensor // [seq, batch, d_model]
	lse           []float64      // [batch, heads, seq]
	ready         bool

	dq, dk, dv, dctx, tmp *tensor.Tensor
}

// NewMultiHeadAttention creates a new MultiHeadAttention module.
//
// Panics if dModel is not divisible by numHeads.
func NewMultiHeadAttention(dModel, numHeads int) *MultiHeadAttention {
	if dModel <= 0 || numHeads <= 0 || dModel%numHeads != 0 {
		panic(fmt.Sprintf("MultiHeadAttention: d_model (%d) must be divisible by num_heads (%d)", dModel, numHeads))
	}
	return &MultiHeadAttention{
		dModel:   dModel,
		numHeads: numHeads,
		headDim:  dModel / numHeads,
		wq:       NewLinear(dModel, dModel),
		wk:       NewLinear(dModel, dModel),
		wv:       NewLinear(dModel, dModel),
		wo:       NewLinear(dModel, dModel),
	}
}

// SetCausal restricts every position to attend only to itself and earlier
// positions.
func (m *MultiHeadAttention) SetCausal(causal bool) { m.causal = causal }

// OutputShape implements Module.
func (m *MultiHeadAttention) OutputShape(in tensor.Shape) (tensor.Shape, error) {
	if len(in) != 3 || in[2] != m.dModel {
		return nil, tensor.ShapeErrorf("MultiHeadAttention: expected input [seq_len, batch, %d], got %v", m.dModel, in)
	}
	return in.Clone(), nil
}

// headView describes where head h of batch b lives inside a
// [seq, batch, d_model] buffer: row i starts at i*rowStride + base.
type headView struct {
	base, rowStride int
}

func (m *MultiHeadAttention) view(b, h int) headView {
	return headView{base: b*m.dModel + h*m.headDim, rowStride: m.batch * m.dModel}
}

func (hv headView) row(buf []float64, i, headDim int) []float64 {
	off := i*hv.rowStride + hv.base
	return buf[off : off+headDim]
}

func dot(a, b []float64) float64 {
	var s float64
	for i, v := range a {
		s += v * b[i]
	}
	return s
}

// scores fills row with the scaled, masked logits of query i.
func (m *MultiHeadAttention) scores(row, q, k []float64, hv headView, i int) {
	scale := 1 / math.Sqrt(float64(m.headDim))
	qi := hv.row(q, i, m.headDim)
	for j := 0; j < m.seqLen; j++ {
		if m.causal && j > i {
			row[j] = math.Inf(-1)
			continue
		}
		row[j] = dot(qi, hv.row(k, j, m.headDim)) * scale
	}
}

// Forward implements Module.
func (m *MultiHeadAttention) Forward(input, output *tensor.Tensor) error {
	if err := checkIO("MultiHeadAttention.Forward", m, input, output); err != nil {
		return err
	}
	shape := input.Shape()
	m.seqLen, m.batch = shape[0], shape[1]

	q := scratch(&m.q, shape)
	k := scratch(&m.k, shape)
	v := scratch(&m.v, shape)
	ctx := scratch(&m.ctx, shape)
	for _, p := range []struct {
		l   *Linear
		out *tensor.Tensor
	}{{m.wq, q}, {m.wk, k}, {m.wv, v}} {
		if err := p.l.Forward(input, p.out); err != nil {
			return err
		}
	}

	if n := m.batch * m.numHeads * m.seqLen; len(m.lse) != n {
		m.lse = make([]float64, n)
	}
	qd, kd, vd, cd := q.Data(), k.Data(), v.Data(), ctx.Data()

	parallel.For(m.batch*m.numHeads, func(bh int) {
		b, h := bh/m.numHeads, bh%m.numHeads
		hv := m.view(b, h)
		row := make([]float64, m.seqLen)
		lse := m.lse[bh*m.seqLen : (bh+1)*m.seqLen]
		for i := 0; i < m.seqLen; i++ {
			m.scores(row, qd, kd, hv, i)
			lse[i] = cpu.LogSumExp(row)
			out := hv.row(cd, i, m.headDim)
			for j := 0; j < m.seqLen; j++ {
				a := math.Exp(row[j] - lse[i])
				if a == 0 {
					continue
				}
				for d, vv := range hv.row(vd, j, m.headDim) {
					out[d] += a * vv
				}
			}
		}
	}, parallel.Default().WithMinChunk(1))

	if err := m.wo.Forward(ctx, output); err != nil {
		return err
	}
	m.ready = true
	return nil
}

// Backward implements Module.
//
// For each query row i with weights a_i and context c_i:
//
//	D_i   = dC_i · c_i
//	dS_ij = a_ij (dC_i · v_j − D_i)
//	dQ_i += Σ_j dS_ij k_j / sqrt(d)
//	dK_j += dS_ij q_i / sqrt(d)
//	dV_j += a_ij dC_i
func (m *MultiHeadAttention) Backward(gradOutput, gradInput *tensor.Tensor) error {
	if !m.ready {
		return tensor.StateErrorf("MultiHeadAttention.Backward called before Forward")
	}
	shape := m.q.Shape()
	if err := tensor.CheckShape("MultiHeadAttention.Backward", "grad_input", gradInput.Shape(), shape); err != nil {
		return err
	}

	dctx := scratch(&m.dctx, shape)
	if err := m.wo.Backward(gradOutput, dctx); err != nil {
		return err
	}
	dq := scratch(&m.dq, shape)
	dk := scratch(&m.dk, shape)
	dv := scratch(&m.dv, shape)

	qd, kd, vd, cd := m.q.Data(), m.k.Data(), m.v.Data(), m.ctx.Data()
	dcd, dqd, dkd, dvd := dctx.Data(), dq.Data(), dk.Data(), dv.Data()
	scale := 1 / math.Sqrt(float64(m.headDim))

	parallel.For(m.batch*m.numHeads, func(bh int) {
		b, h := bh/m.numHeads, bh%m.numHeads
		hv := m.view(b, h)
		row := make([]float64, m.seqLen)
		lse := m.lse[bh*m.seqLen : (bh+1)*m.seqLen]
		for i := 0; i < m.seqLen; i++ {
			m.scores(row, qd, kd, hv, i)
			dci := hv.row(dcd, i, m.headDim)
			di := dot(dci, hv.row(cd, i, m.headDim))
			qi := hv.row(qd, i, m.headDim)
			dqi := hv.row(dqd, i, m.headDim)
			for j := 0; j < m.seqLen; j++ {
				a := math.Exp(row[j] - lse[i])
				if a == 0 {
					continue
				}
				vj := hv.row(vd, j, m.headDim)
				ds := a * (dot(dci, vj) - di) * scale
				kj := hv.row(kd, j, m.headDim)
				dkj := hv.row(dkd, j, m.headDim)
				dvj := hv.row(dvd, j, m.headDim)
				for d := 0; d < m.headDim; d++ {
					dqi[d] += ds * kj[d]
					dkj[d] += ds * qi[d]
					dvj[d] += a * dci[d]
				}
			}
		}
	}, parallel.Default().WithMinChunk(1))

	tmp := scratch(&m.tmp, shape)
	if err := m.wq.Backward(dq, gradInput); err != nil {
		return err
	}
	for _, p := range []struct {
		l    *Linear
		grad *tensor.Tensor
	}{{m.wk, dk}, {m.wv, dv}} {
		if err := p.l.Backward(p.grad, tmp); err != nil {
			return err
		}
		if err := gradInput.AddInPlace(tmp); err != nil {
			return err
		}
	}
	return nil
}

// Update implements Module.
func (m *MultiHeadAttention) Update(lr float64) { updateParams(m.Parameters(), lr) }

// Parameters returns the projection parameters in q, k, v, o order.
func (m *MultiHeadAttention) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range []*Linear{m.wq, m.wk, m.wv, m.wo} {
		params = append(params, l.Parameters()...)
	}
	return params
}

// NumHeads returns the number of attention heads.
func (m *MultiHeadAttention) NumHeads() int { return m.numHeads }
