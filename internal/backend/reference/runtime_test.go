package reference

import (
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnn/internal/native"
)

func newClassifier(t *testing.T, rt *Runtime, cfg native.ScheduleConfig) (native.Net, native.Session) {
	t.Helper()
	net := rt.CreateNetFromBuffer([]byte(Classifier))
	require.NotZero(t, net)
	s := rt.CreateSession(net, cfg)
	require.NotZero(t, s)
	return net, s
}

func f32(b []byte) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func TestParseModelRejectsBrokenGraphs(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"no inputs", `name = "x"`},
		{"unknown op", "[[input]]\nname=\"a\"\nshape=[1]\n[[op]]\nname=\"o\"\ntype=\"conv\"\ninputs=[\"a\"]\noutput=\"b\""},
		{"undefined input", "[[input]]\nname=\"a\"\nshape=[1]\n[[op]]\nname=\"o\"\ntype=\"relu\"\ninputs=[\"z\"]\noutput=\"b\""},
		{"wrong arity", "[[input]]\nname=\"a\"\nshape=[1]\n[[op]]\nname=\"o\"\ntype=\"add\"\ninputs=[\"a\"]\noutput=\"b\""},
		{"zero extent", "[[input]]\nname=\"a\"\nshape=[0]"},
		{"unknown key", "colour = 1\n[[input]]\nname=\"a\"\nshape=[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel([]byte(tt.manifest))
			assert.Error(t, err)
			assert.Zero(t, New().CreateNetFromBuffer([]byte(tt.manifest)))
		})
	}
}

func TestClassifierRun(t *testing.T) {
	rt := New(WithPrivateDeviceMemory())
	net, s := newClassifier(t, rt, native.ScheduleConfig{NumThread: 4})

	in := rt.SessionInput(net, s, "data")
	require.NotZero(t, in)
	assert.Equal(t, []int{1, 3, 256, 256}, rt.TensorShape(in))
	data := f32(rt.TensorHost(in))
	for i := range data {
		data[i] = float32(i%2) * 3 // half zeros, half threes
	}

	require.Equal(t, native.NoError, rt.RunSession(net, s))

	out := rt.SessionOutput(net, s, "")
	assert.Equal(t, out, rt.SessionOutput(net, s, "out"))
	assert.Equal(t, []int{1, 3, 1, 1}, rt.TensorShape(out))
	assert.InDeltaSlice(t, []float32{1.5, 1.5, 1.5}, f32(rt.TensorHost(out)), 1e-5)

	assert.Zero(t, rt.SessionOutput(net, s, "feat"), "intermediate tensors are not outputs unless saved")
	assert.Zero(t, rt.SessionInput(net, s, "missing"))

	mem, ok := rt.SessionInfo(net, s, native.InfoMemory)
	require.True(t, ok)
	assert.Greater(t, mem, float32(1))
	flops, ok := rt.SessionInfo(net, s, native.InfoFlops)
	require.True(t, ok)
	assert.Greater(t, flops, float32(0))

	rt.ReleaseSession(net, s)
	rt.ReleaseNet(net)
	st := rt.Stats()
	assert.Equal(t, int64(1), st.SessionsReleased)
	assert.Equal(t, int64(1), st.NetsReleased)
	assert.Zero(t, st.DoubleFrees)
}

func TestDoubleReleaseIsCounted(t *testing.T) {
	rt := New()
	net, s := newClassifier(t, rt, native.ScheduleConfig{})
	rt.ReleaseSession(net, s)
	rt.ReleaseSession(net, s)
	rt.ReleaseNet(net)
	rt.ReleaseNet(net)

	st := rt.Stats()
	assert.Equal(t, int64(1), st.SessionsReleased)
	assert.Equal(t, int64(2), st.DoubleFrees)
}

func TestReleaseNetReleasesSessions(t *testing.T) {
	rt := New()
	net, _ := newClassifier(t, rt, native.ScheduleConfig{})
	rt.ReleaseNet(net)

	nets, sessions, _ := rt.LiveHandles()
	assert.Zero(t, nets)
	assert.Zero(t, sessions)
	assert.Equal(t, int64(1), rt.Stats().SessionsReleased)
}

func TestSessionTensorCannotBeDestroyed(t *testing.T) {
	rt := New()
	net, s := newClassifier(t, rt, native.ScheduleConfig{})
	in := rt.SessionInput(net, s, "data")
	rt.TensorDestroy(in)

	assert.Equal(t, int64(1), rt.Stats().IllegalDestroys)
	assert.NotNil(t, rt.TensorShape(in))
}

func TestDeviceSessionKeepsMemoryOffHost(t *testing.T) {
	rt := New(WithPrivateDeviceMemory())
	net, s := newClassifier(t, rt, native.ScheduleConfig{Type: 3}) // OpenCL

	in := rt.SessionInput(net, s, "data")
	assert.Nil(t, rt.TensorHost(in))
	assert.NotZero(t, rt.TensorDeviceID(in))

	staging := rt.TensorCreate([]int{1, 3, 256, 256}, native.Float32, native.Caffe, false)
	host := f32(rt.TensorHost(staging))
	for i := range host {
		host[i] = 2
	}
	require.True(t, rt.TensorCopyFromHost(in, staging))
	require.Equal(t, native.NoError, rt.RunSession(net, s))

	out := rt.TensorCreateHostFromDevice(rt.SessionOutput(net, s, "out"), true)
	require.NotZero(t, out)
	assert.InDeltaSlice(t, []float32{2, 2, 2}, f32(rt.TensorHost(out)), 1e-5)

	rt.TensorDestroy(staging)
	rt.TensorDestroy(out)
	assert.Equal(t, int64(2), rt.Stats().TensorsDestroyed)
}

func TestCopyRequiresBackendTensor(t *testing.T) {
	rt := New()
	a := rt.TensorCreate([]int{4}, native.Float32, native.Caffe, false)
	b := rt.TensorCreate([]int{4}, native.Float32, native.Caffe, false)
	assert.False(t, rt.TensorCopyFromHost(a, b), "host to standalone host copy is meaningless")
	assert.False(t, rt.TensorCopyToHost(a, b))

	d := rt.TensorCreate([]int{4}, native.Float32, native.Caffe, true)
	assert.True(t, rt.TensorCopyFromHost(d, a))
	assert.True(t, rt.TensorCopyToHost(d, b))

	i := rt.TensorCreate([]int{4}, native.Int32, native.Caffe, false)
	assert.False(t, rt.TensorCopyFromHost(d, i), "element types must match")
}

func TestTensorCreateWithBorrowsMemory(t *testing.T) {
	rt := New()
	data := make([]byte, 16)
	h := rt.TensorCreateWith([]int{4}, native.Float32, native.Caffe, data)
	require.NotZero(t, h)
	f32(rt.TensorHost(h))[2] = 7
	assert.Equal(t, float32(7), f32(data)[2])

	rt.TensorDestroy(h)
	assert.Len(t, data, 16)
	assert.Zero(t, rt.TensorCreateWith([]int{5}, native.Float32, native.Caffe, data), "size must match")
}

func TestDynamicInputNeedsResize(t *testing.T) {
	rt := New()
	net := rt.CreateNetFromBuffer([]byte(DynamicClassifier))
	s := rt.CreateSession(net, native.ScheduleConfig{})

	status, _ := rt.SessionInfo(net, s, native.InfoResizeStatus)
	assert.Equal(t, float32(native.ResizeNeedResize), status)
	assert.Equal(t, native.ComputeSizeError, rt.RunSession(net, s))

	in := rt.SessionInput(net, s, "data")
	assert.Nil(t, rt.TensorHost(in))
	rt.ResizeTensor(net, in, []int{1, 3, 8, 8})
	rt.ResizeSession(net, s, false)

	status, _ = rt.SessionInfo(net, s, native.InfoResizeStatus)
	assert.Equal(t, float32(native.ResizeNone), status)
	assert.Len(t, rt.TensorHost(in), 3*8*8*4)
	assert.Equal(t, native.NoError, rt.RunSession(net, s))
}

func TestResidualShapesAndSoftmax(t *testing.T) {
	rt := New()
	net := rt.CreateNetFromBuffer([]byte(Residual))
	s := rt.CreateSession(net, native.ScheduleConfig{})

	x := f32(rt.TensorHost(rt.SessionInput(net, s, "x")))
	y := f32(rt.TensorHost(rt.SessionInput(net, s, "y")))
	for i := range x {
		x[i], y[i] = 1, 1
	}
	require.Equal(t, native.NoError, rt.RunSession(net, s))
	prob := f32(rt.TensorHost(rt.SessionOutput(net, s, "prob")))
	assert.InDeltaSlice(t, []float32{.25, .25, .25, .25, .25, .25, .25, .25}, prob, 1e-6)

	rt.ResizeTensor(net, rt.SessionInput(net, s, "x"), []int{2, 5})
	rt.ResizeSession(net, s, false)
	assert.Equal(t, native.ComputeSizeError, rt.RunSession(net, s))
}

func TestCallbacksOnlyInDebugMode(t *testing.T) {
	rt := New()
	net, s := newClassifier(t, rt, native.ScheduleConfig{})

	var before, after []string
	b := native.SaveCallback(func(_ []native.Tensor, op native.OperatorInfo) bool {
		before = append(before, op.Name)
		return op.Name != "pool"
	})
	defer native.ReleaseCallback(b)
	a := native.SaveCallback(func(_ []native.Tensor, op native.OperatorInfo) bool {
		after = append(after, op.Name)
		return true
	})
	defer native.ReleaseCallback(a)

	require.Equal(t, native.NoError, rt.RunSessionWithCallback(net, s, b, a, true))
	assert.Equal(t, []string{"act", "pool", "head"}, before)
	assert.Equal(t, []string{"act", "head"}, after, "a false before-callback skips the op")

	rt.SetSessionMode(net, native.SessionRelease)
	before, after = nil, nil
	require.Equal(t, native.NoError, rt.RunSessionWithCallback(net, s, b, a, true))
	assert.Empty(t, before)
	assert.Empty(t, after)
}

func TestAfterCallbackStopsRun(t *testing.T) {
	rt := New()
	net, s := newClassifier(t, rt, native.ScheduleConfig{})
	stop := native.SaveCallback(func(_ []native.Tensor, _ native.OperatorInfo) bool { return false })
	defer native.ReleaseCallback(stop)

	assert.Equal(t, native.CallBackStop, rt.RunSessionWithCallback(net, s, nil, stop, true))
}

func TestSaveTensorsExposeIntermediates(t *testing.T) {
	rt := New()
	net, s := newClassifier(t, rt, native.ScheduleConfig{SaveTensors: []string{"feat", "nope"}})
	assert.NotZero(t, rt.SessionOutput(net, s, "feat"))

	outs := rt.SessionOutputs(net, s)
	require.Len(t, outs, 2)
	assert.Equal(t, "out", outs[0].Name)
	assert.Equal(t, "feat", outs[1].Name)
}

func TestResizeDeferMode(t *testing.T) {
	rt := New()
	net := rt.CreateNetFromBuffer([]byte(Classifier))
	rt.SetSessionMode(net, native.SessionResizeDefer)
	s := rt.CreateSession(net, native.ScheduleConfig{})

	assert.Equal(t, native.ComputeSizeError, rt.RunSession(net, s))
	rt.ResizeSession(net, s, true)
	assert.Equal(t, native.NoError, rt.RunSession(net, s))
}

func TestCacheFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.cache")

	rt := New()
	net, s := newClassifier(t, rt, native.ScheduleConfig{})
	assert.Equal(t, native.NotSupport, rt.UpdateCacheFile(net, s))

	rt.SetCacheFile(net, path, 128)
	require.Equal(t, native.NoError, rt.UpdateCacheFile(net, s))
	require.Equal(t, native.NoError, rt.UpdateCacheFile(net, s))
	assert.Equal(t, int64(1), rt.Stats().CacheWrites)

	rt2 := New()
	net2, _ := newClassifier(t, rt2, native.ScheduleConfig{})
	rt2.SetCacheFile(net2, path, 128)
	assert.Equal(t, int64(1), rt2.Stats().CacheHits)

	other := rt2.CreateNetFromBuffer([]byte(Residual))
	rt2.SetCacheFile(other, path, 128)
	assert.Equal(t, int64(1), rt2.Stats().CacheHits, "a different model must not hit")
}

func TestDecodeCacheRejectsGarbage(t *testing.T) {
	_, err := decodeCache([]byte("not protowire at all"))
	assert.Error(t, err)

	h, err := decodeCache(encodeCache(cacheHeader{Key: []byte{1, 2}, Model: "m", Ops: 3}))
	require.NoError(t, err)
	assert.Equal(t, "m", h.Model)
	assert.Equal(t, uint64(3), h.Ops)
}

func TestEchoLLM(t *testing.T) {
	rt := New()
	assert.Zero(t, rt.CreateLLM(""))

	m := rt.CreateLLM("config.json")
	assert.Nil(t, rt.LLMGenerate(m, []int32{1, 2}, 0), "unloaded model generates nothing")
	require.Equal(t, native.NoError, rt.LLMLoad(m))
	assert.Equal(t, []int32{1, 2}, rt.LLMGenerate(m, []int32{1, 2, 3}, 2))
	rt.DestroyLLM(m)
	rt.DestroyLLM(m)
	assert.Equal(t, int64(1), rt.Stats().DoubleFrees)
}
