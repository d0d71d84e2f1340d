package native

import "unsafe"

// Runtime is the native engine. Calls on one Net and everything derived from
// it must come from a single goroutine at a time.
type Runtime interface {
	CreateNetFromFile(path string) Net
	CreateNetFromBuffer(data []byte) Net
	ReleaseNet(net Net)
	SetSessionMode(net Net, mode SessionMode)
	SetCacheFile(net Net, path string, keySize int)
	UpdateCacheFile(net Net, session Session) ErrorCode

	CreateSession(net Net, config ScheduleConfig) Session
	CreateMultiPathSession(net Net, configs []ScheduleConfig) Session
	ReleaseSession(net Net, session Session)
	ResizeSession(net Net, session Session, realloc bool)
	RunSession(net Net, session Session) ErrorCode
	// RunSessionWithCallback runs the session, invoking the callbacks saved
	// with SaveCallback through InvokeCallback. Either pointer may be nil.
	RunSessionWithCallback(net Net, session Session, before, after unsafe.Pointer, sync bool) ErrorCode
	// SessionInput returns the named input, or the first one when name is
	// empty. A missing tensor is the null handle.
	SessionInput(net Net, session Session, name string) Tensor
	SessionOutput(net Net, session Session, name string) Tensor
	SessionInputs(net Net, session Session) []NamedTensor
	SessionOutputs(net Net, session Session) []NamedTensor
	ResizeTensor(net Net, tensor Tensor, dims []int)
	SessionInfo(net Net, session Session, code SessionInfoCode) (float32, bool)

	// TensorCreate allocates an owned tensor in host memory, or in device
	// memory when device is set.
	TensorCreate(shape []int, typ HalideType, dim DimensionType, device bool) Tensor
	// TensorCreateWith wraps caller memory. Destroying the result releases
	// the header only.
	TensorCreateWith(shape []int, typ HalideType, dim DimensionType, data []byte) Tensor
	TensorDestroy(tensor Tensor)
	TensorShape(tensor Tensor) []int
	TensorType(tensor Tensor) HalideType
	TensorDimensionType(tensor Tensor) DimensionType
	// TensorHost returns the host bytes, or nil for device memory.
	TensorHost(tensor Tensor) []byte
	TensorDeviceID(tensor Tensor) uint64
	TensorWait(tensor Tensor, mode MapType, finish bool) bool
	TensorCopyFromHost(dst, src Tensor) bool
	TensorCopyToHost(src, dst Tensor) bool
	TensorCreateHostFromDevice(tensor Tensor, copyData bool) Tensor
}

// LLMRuntime is implemented by runtimes that ship the LLM engine.
type LLMRuntime interface {
	CreateLLM(configPath string) LLM
	LLMLoad(llm LLM) ErrorCode
	LLMGenerate(llm LLM, ids []int32, maxNew int) []int32
	LLMReset(llm LLM)
	DestroyLLM(llm LLM)
}

// ElementCount returns the product of dims, or -1 when any extent is
// unresolved.
func ElementCount(dims []int) int {
	n := 1
	for _, d := range dims {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}
