package reference

import (
	"math"
	"slices"
	"unsafe"

	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/parallel"
)

// kernel is one operator implementation. Shapes may contain -1 while the
// session is unresolved; run is only called with resolved shapes.
type kernel struct {
	arity int
	// floatOnly kernels read and write float32.
	floatOnly bool
	shape     func(in [][]int, layout native.DimensionType) ([]int, native.ErrorCode)
	run       func(dst []byte, src [][]byte, in [][]int, layout native.DimensionType, op OpDesc, cfg parallel.Config)
}

var kernels = map[string]kernel{
	"identity": {arity: 1, shape: sameShape, run: runIdentity},
	"relu": {arity: 1, floatOnly: true, shape: sameShape, run: unary(func(x float32) float32 {
		return max(x, 0)
	})},
	"sigmoid": {arity: 1, floatOnly: true, shape: sameShape, run: unary(func(x float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(x))))
	})},
	"scale":           {arity: 1, floatOnly: true, shape: sameShape, run: runScale},
	"add":             {arity: 2, floatOnly: true, shape: equalShapes, run: binary(func(a, b float32) float32 { return a + b })},
	"mul":             {arity: 2, floatOnly: true, shape: equalShapes, run: binary(func(a, b float32) float32 { return a * b })},
	"global_avg_pool": {arity: 1, floatOnly: true, shape: poolShape, run: runGlobalAvgPool},
	"softmax":         {arity: 1, floatOnly: true, shape: sameShape, run: runSoftmax},
}

func floats(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4) //nolint:gosec // G103: 4-byte elements
}

func sameShape(in [][]int, _ native.DimensionType) ([]int, native.ErrorCode) {
	return slices.Clone(in[0]), native.NoError
}

func equalShapes(in [][]int, _ native.DimensionType) ([]int, native.ErrorCode) {
	a, b := in[0], in[1]
	if len(a) != len(b) {
		return nil, native.ComputeSizeError
	}
	out := slices.Clone(a)
	for i := range a {
		switch {
		case a[i] == b[i]:
		case a[i] < 0:
			out[i] = b[i]
		case b[i] < 0:
		default:
			return nil, native.ComputeSizeError
		}
	}
	return out, native.NoError
}

func poolShape(in [][]int, layout native.DimensionType) ([]int, native.ErrorCode) {
	s := in[0]
	if len(s) != 4 {
		return nil, native.ComputeSizeError
	}
	if layout == native.TensorFlow {
		return []int{s[0], 1, 1, s[3]}, native.NoError
	}
	return []int{s[0], s[1], 1, 1}, native.NoError
}

func runIdentity(dst []byte, src [][]byte, _ [][]int, _ native.DimensionType, _ OpDesc, _ parallel.Config) {
	copy(dst, src[0])
}

func unary(f func(float32) float32) func([]byte, [][]byte, [][]int, native.DimensionType, OpDesc, parallel.Config) {
	return func(dst []byte, src [][]byte, _ [][]int, _ native.DimensionType, _ OpDesc, cfg parallel.Config) {
		y, x := floats(dst), floats(src[0])
		parallel.Range(len(y), func(s, e int) {
			for i := s; i < e; i++ {
				y[i] = f(x[i])
			}
		}, cfg)
	}
}

func binary(f func(a, b float32) float32) func([]byte, [][]byte, [][]int, native.DimensionType, OpDesc, parallel.Config) {
	return func(dst []byte, src [][]byte, _ [][]int, _ native.DimensionType, _ OpDesc, cfg parallel.Config) {
		y, a, b := floats(dst), floats(src[0]), floats(src[1])
		parallel.Range(len(y), func(s, e int) {
			for i := s; i < e; i++ {
				y[i] = f(a[i], b[i])
			}
		}, cfg)
	}
}

func runScale(dst []byte, src [][]byte, _ [][]int, _ native.DimensionType, op OpDesc, cfg parallel.Config) {
	scale := float32(1)
	if op.Scale != nil {
		scale = *op.Scale
	}
	bias := op.Bias
	unary(func(x float32) float32 { return x*scale + bias })(dst, src, nil, 0, op, cfg)
}

func runGlobalAvgPool(dst []byte, src [][]byte, in [][]int, layout native.DimensionType, _ OpDesc, cfg parallel.Config) {
	y, x := floats(dst), floats(src[0])
	s := in[0]
	if layout == native.TensorFlow {
		n, h, w, c := s[0], s[1], s[2], s[3]
		plane := float32(h * w)
		parallel.ForBatch(n, c, func(b, ch int) {
			var sum float32
			for p := 0; p < h*w; p++ {
				sum += x[(b*h*w+p)*c+ch]
			}
			y[b*c+ch] = sum / plane
		}, cfg)
		return
	}
	n, c, hw := s[0], s[1], s[2]*s[3]
	parallel.ForBatch(n, c, func(b, ch int) {
		base := (b*c + ch) * hw
		var sum float32
		for _, v := range x[base : base+hw] {
			sum += v
		}
		y[b*c+ch] = sum / float32(hw)
	}, cfg)
}

func runSoftmax(dst []byte, src [][]byte, in [][]int, _ native.DimensionType, _ OpDesc, cfg parallel.Config) {
	y, x := floats(dst), floats(src[0])
	s := in[0]
	inner := 1
	if len(s) > 0 {
		inner = s[len(s)-1]
	}
	if inner == 0 {
		return
	}
	rows := len(x) / inner
	parallel.For(rows, func(r int) {
		row, out := x[r*inner:(r+1)*inner], y[r*inner:(r+1)*inner]
		m := slices.Max(row)
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - m))
			out[i] = float32(e)
			sum += e
		}
		for i := range out {
			out[i] = float32(float64(out[i]) / sum)
		}
	}, cfg)
}
