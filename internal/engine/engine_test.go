package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnn/internal/backend/reference"
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/schedule"
	"github.com/born-ml/mnn/internal/tensor"
)

func writeModel(t *testing.T, manifest string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.toml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))
	return path
}

func newSession(t *testing.T, rt *reference.Runtime, manifest string) (*Engine, *Session) {
	t.Helper()
	e, err := NewFromBytes(rt, []byte(manifest))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	s, err := e.CreateSession(schedule.DefaultScheduleConfig())
	require.NoError(t, err)
	return e, s
}

func TestClassifierScenario(t *testing.T) {
	rt := reference.New()
	e, err := NewFromFile(rt, writeModel(t, reference.Classifier))
	require.NoError(t, err)
	defer e.Close()

	s, err := e.CreateSession(schedule.DefaultScheduleConfig())
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())

	in, err := Input[float32](e, s, "data")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 256, 256}, in.Shape())
	require.NoError(t, in.Fill(1.0))

	require.NoError(t, e.RunSession(s))
	require.NoError(t, e.Wait(s))
	assert.Equal(t, StateReady, s.State())

	out, err := Output[float32](e, s, "out")
	require.NoError(t, err)
	shape := out.Shape()
	assert.NotContains(t, []int(shape), tensor.Dynamic)
	product := 1
	for _, d := range shape {
		product *= d
	}
	assert.Equal(t, product, out.ElementCount())

	host, err := out.CreateHostTensorFromDevice(true)
	require.NoError(t, err)
	defer host.Close()
	values, err := host.Host()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 1, 1}, values, 1e-6)
}

func TestNewFromFileErrors(t *testing.T) {
	rt := reference.New()

	_, err := NewFromFile(rt, filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, mnnerr.ErrIO)

	_, err = NewFromFile(rt, writeModel(t, "name = 1\n[[op]]\n"))
	assert.ErrorIs(t, err, mnnerr.ErrInterpreter)

	_, err = NewFromBytes(rt, nil)
	assert.ErrorIs(t, err, mnnerr.ErrInterpreter)
}

func TestDynamicShapeGate(t *testing.T) {
	rt := reference.New()
	e, s := newSession(t, rt, reference.DynamicClassifier)
	assert.Equal(t, StateCreated, s.State())

	_, err := Input[float32](e, s, "data")
	assert.ErrorIs(t, err, mnnerr.ErrDynamicTensor)

	before := rt.Stats().RunCalls
	err = e.RunSession(s)
	assert.ErrorIs(t, err, mnnerr.ErrDynamicTensor)
	err = e.RunSessionWithCallback(s, nil, nil, true)
	assert.ErrorIs(t, err, mnnerr.ErrDynamicTensor)
	assert.Equal(t, before, rt.Stats().RunCalls, "no native run call")

	in, err := InputUnresized[float32](e, s, "data")
	require.NoError(t, err)
	require.NoError(t, e.ResizeTensorByNCHW(in.Raw(), 1, 3, 8, 8))
	status, err := e.ResizeStatus(s)
	require.NoError(t, err)
	assert.Equal(t, native.ResizeNeedResize, status)

	require.NoError(t, e.ResizeSession(s))
	assert.Equal(t, StateResized, s.State())
	status, err = e.ResizeStatus(s)
	require.NoError(t, err)
	assert.Equal(t, native.ResizeNone, status)

	in, err = Input[float32](e, s, "data")
	require.NoError(t, err)
	require.NoError(t, in.Fill(2))
	require.NoError(t, e.RunSession(s))
	assert.Equal(t, StateReady, s.State())

	out, err := Output[float32](e, s, "")
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 1, 1}, out.Shape())
	host, err := out.CreateHostTensorFromDevice(true)
	require.NoError(t, err)
	defer host.Close()
	values, err := host.Host()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{2, 2, 2}, values, 1e-6)
}

func TestResizeTensorRejectsBadDims(t *testing.T) {
	rt := reference.New()
	e, s := newSession(t, rt, reference.DynamicClassifier)
	in, err := e.RawInput(s, "data")
	require.NoError(t, err)

	assert.ErrorIs(t, e.ResizeTensor(in, []int{1, 3, 0, 4}), mnnerr.ErrTensor)
	assert.ErrorIs(t, e.ResizeTensor(RawTensor{}, []int{1}), mnnerr.ErrTensor)
}

func TestLookupErrors(t *testing.T) {
	rt := reference.New()
	e, s := newSession(t, rt, reference.Classifier)

	_, err := Input[float32](e, s, "missing")
	assert.ErrorIs(t, err, mnnerr.ErrTensor)
	_, err = Output[float32](e, s, "feat")
	assert.ErrorIs(t, err, mnnerr.ErrTensor)
	_, err = Input[int32](e, s, "data")
	assert.ErrorIs(t, err, mnnerr.ErrTypeMismatch)
	_, err = Input[float32](e, s, "dätä")
	assert.ErrorIs(t, err, mnnerr.ErrASCII)

	first, err := e.RawInput(s, "")
	require.NoError(t, err)
	named, err := e.RawInput(s, "data")
	require.NoError(t, err)
	assert.Equal(t, named.Handle(), first.Handle())
}

func TestTensorLists(t *testing.T) {
	rt := reference.New()
	e, err := NewFromBytes(rt, []byte(reference.Residual))
	require.NoError(t, err)
	defer e.Close()
	cfg := schedule.DefaultScheduleConfig()
	cfg.SaveTensors = []string{"s"}
	s, err := e.CreateSession(cfg)
	require.NoError(t, err)

	inputs, err := e.Inputs(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, inputs.Names())

	outputs, err := e.Outputs(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"prob", "s"}, outputs.Names())

	for _, info := range inputs {
		in, err := TensorOf[float32](info)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{2, 4}, in.Shape())
		mut, err := tensor.DeviceViewMutOf[float32](info.Raw())
		require.NoError(t, err)
		require.NoError(t, mut.Fill(1))
	}
	require.NoError(t, e.RunSession(s))

	sum, ok := outputs.Get("s")
	require.True(t, ok)
	view, err := TensorOf[float32](sum)
	require.NoError(t, err)
	host, err := view.CreateHostTensorFromDevice(true)
	require.NoError(t, err)
	defer host.Close()
	values, err := host.Host()
	require.NoError(t, err)
	for _, v := range values {
		assert.Equal(t, float32(2), v)
	}

	_, ok = outputs.Get("nope")
	assert.False(t, ok)
}

func TestRunSessionWithCallback(t *testing.T) {
	rt := reference.New()
	e, s := newSession(t, rt, reference.Classifier)

	var ops []string
	before := func(tensors []RawTensor, op OperatorInfo) bool {
		assert.NotEmpty(t, tensors)
		ops = append(ops, op.Name)
		return true
	}
	after := func(tensors []RawTensor, op OperatorInfo) bool {
		return op.Name != "pool"
	}
	err := e.RunSessionWithCallback(s, before, after, true)
	assert.Equal(t, native.CallBackStop, mnnerr.CodeOf(err))
	assert.Equal(t, []string{"act", "pool"}, ops)
	assert.Zero(t, native.LiveCallbacks(), "callbacks released after the run")

	ops = nil
	require.NoError(t, e.RunSessionWithCallback(s, before, nil, false))
	assert.Equal(t, []string{"act", "pool", "head"}, ops)
}

func TestReleaseModeSkipsCallbacks(t *testing.T) {
	rt := reference.New()
	e, s := newSession(t, rt, reference.Classifier)
	require.NoError(t, e.SetSessionMode(native.SessionRelease))

	called := false
	err := e.RunSessionWithCallback(s, func([]RawTensor, OperatorInfo) bool {
		called = true
		return false
	}, nil, true)
	require.NoError(t, err)
	assert.False(t, called)
	assert.Zero(t, rt.Stats().CallbacksInvoked)
}

func TestSessionInfo(t *testing.T) {
	rt := reference.New()
	e, err := NewFromBytes(rt, []byte(reference.Classifier))
	require.NoError(t, err)
	defer e.Close()

	cpu := schedule.DefaultScheduleConfig()
	gpu := cpu.Clone()
	gpu.Type = schedule.ForwardVulkan
	s, err := e.CreateMultiPathSession([]schedule.ScheduleConfig{cpu, gpu})
	require.NoError(t, err)

	mem, err := e.Memory(s)
	require.NoError(t, err)
	assert.Greater(t, mem, float32(0))
	flops, err := e.Flops(s)
	require.NoError(t, err)
	assert.Greater(t, flops, float32(0))
	backends, err := e.Backends(s)
	require.NoError(t, err)
	assert.Equal(t, 2, backends)
	assert.Len(t, s.Configs(), 2)
}

func TestCreateSessionValidatesConfig(t *testing.T) {
	rt := reference.New()
	e, err := NewFromBytes(rt, []byte(reference.Classifier))
	require.NoError(t, err)
	defer e.Close()

	cfg := schedule.DefaultScheduleConfig()
	cfg.NumThreads = -1
	_, err = e.CreateSession(cfg)
	assert.ErrorIs(t, err, mnnerr.ErrParse)

	_, err = e.CreateMultiPathSession(nil)
	assert.ErrorIs(t, err, mnnerr.ErrParse)
}

func TestCacheFile(t *testing.T) {
	rt := reference.New()
	e, s := newSession(t, rt, reference.Classifier)

	err := e.UpdateCacheFile(s)
	assert.Equal(t, native.NotSupport, mnnerr.CodeOf(err), "no cache file configured")

	path := filepath.Join(t.TempDir(), "classifier.cache")
	require.NoError(t, e.SetCacheFile(path, 128))
	require.NoError(t, e.UpdateCacheFile(s))
	assert.FileExists(t, path)
	assert.Equal(t, int64(1), rt.Stats().CacheWrites)
}

func TestCloseReleasesEverythingOnce(t *testing.T) {
	rt := reference.New()
	e, err := NewFromBytes(rt, []byte(reference.Classifier))
	require.NoError(t, err)
	s1, err := e.CreateSession(schedule.DefaultScheduleConfig())
	require.NoError(t, err)
	s2, err := e.CreateSession(schedule.DefaultScheduleConfig())
	require.NoError(t, err)

	s1.Close()
	s1.Close()
	assert.Equal(t, StateDestroyed, s1.State())
	assert.ErrorIs(t, e.RunSession(s1), mnnerr.ErrInterpreter)

	e.Close()
	e.Close()
	s2.Close()
	assert.Equal(t, StateDestroyed, s2.State())

	st := rt.Stats()
	assert.Equal(t, int64(2), st.SessionsReleased)
	assert.Equal(t, int64(1), st.NetsReleased)
	assert.Zero(t, st.DoubleFrees)
	nets, sessions, _ := rt.LiveHandles()
	assert.Zero(t, nets)
	assert.Zero(t, sessions)

	_, err = e.CreateSession(schedule.DefaultScheduleConfig())
	assert.ErrorIs(t, err, mnnerr.ErrInterpreter)
}

func TestSessionFromAnotherEngine(t *testing.T) {
	rt := reference.New()
	e1, _ := newSession(t, rt, reference.Classifier)
	_, s2 := newSession(t, rt, reference.Classifier)

	assert.ErrorIs(t, e1.RunSession(s2), mnnerr.ErrInterpreter)
}
