// Package deeppoly is the DeepPoly-style symbolic bound propagator (§4.2):
// it assigns every layer an abstract element holding symbolic lower/upper
// linear expressions over a reference layer, and back-substitutes through
// predecessors -- sign-aware on coefficient sign -- to obtain concrete
// bounds at each neuron.
package deeppoly

import (
	"github.com/c2h5oh/datasize"
	"github.com/goki/ki/ints"
	"gonum.org/v1/gonum/mat"

	"github.com/openverify/nlrcore/graph"
)

// workMem is the engine's two reusable scratch matrices and two bias
// vectors, sized maxLayerWidth x maxLayerWidth / maxLayerWidth. They are
// lent to each abstract element for the duration of its computation and
// returned to the engine when it completes; callers must never retain a
// reference to scratch storage past that point.
type workMem struct {
	maxWidth     int
	work1, work2 *mat.Dense
	bias1, bias2 []float64
}

func newWorkMem(maxWidth int) *workMem {
	if maxWidth < 1 {
		maxWidth = 1
	}
	return &workMem{
		maxWidth: maxWidth,
		work1:    mat.NewDense(maxWidth, maxWidth, nil),
		work2:    mat.NewDense(maxWidth, maxWidth, nil),
		bias1:    make([]float64, maxWidth),
		bias2:    make([]float64, maxWidth),
	}
}

// footprint reports the scratch memory's size for diagnostics.
func (w *workMem) footprint() datasize.ByteSize {
	bytesPerFloat := datasize.ByteSize(8)
	matrices := datasize.ByteSize(2 * w.maxWidth * w.maxWidth)
	vectors := datasize.ByteSize(2 * w.maxWidth)
	return (matrices + vectors) * bytesPerFloat
}

// reuse returns an r x c zeroed matrix backed by buf's storage when buf has
// enough capacity, and a freshly allocated matrix otherwise. The returned
// matrix's contents are always zeroed regardless of which path was taken.
func reuse(buf *mat.Dense, r, c int) *mat.Dense {
	if buf != nil {
		data := buf.RawMatrix().Data
		if len(data) >= r*c {
			sub := data[:r*c]
			for i := range sub {
				sub[i] = 0
			}
			return mat.NewDense(r, c, sub)
		}
	}
	return mat.NewDense(r, c, nil)
}

// maxLayerWidth computes maxLayerWidth across the whole graph.
func maxLayerWidth(g *graph.Graph) int {
	m := 0
	for _, idx := range g.TopologicalOrder() {
		m = ints.MaxInt(m, g.GetLayer(idx).N)
	}
	return m
}
