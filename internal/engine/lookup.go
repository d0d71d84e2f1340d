package engine

import (
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/tensor"
)

// RawInput returns the named input of s without any type check. An empty
// name selects the first input.
func (e *Engine) RawInput(s *Session, name string) (RawTensor, error) {
	if err := e.lookupCheck(s, name); err != nil {
		return RawTensor{}, err
	}
	t := tensor.NewRaw(e.rt, e.rt.SessionInput(e.net, s.handle, name))
	if t.IsNull() {
		return RawTensor{}, mnnerr.New(mnnerr.KindTensor, "input tensor %q not found", name)
	}
	return t, nil
}

// RawOutput returns the named output of s without any type check. An empty
// name selects the first output.
func (e *Engine) RawOutput(s *Session, name string) (RawTensor, error) {
	if err := e.lookupCheck(s, name); err != nil {
		return RawTensor{}, err
	}
	t := tensor.NewRaw(e.rt, e.rt.SessionOutput(e.net, s.handle, name))
	if t.IsNull() {
		return RawTensor{}, mnnerr.New(mnnerr.KindTensor, "output tensor %q not found", name)
	}
	return t, nil
}

func (e *Engine) lookupCheck(s *Session, name string) error {
	if err := e.checkSession(s); err != nil {
		return err
	}
	return checkName(name)
}

// Input returns the named input of s as a mutable device view. It fails
// with a dynamic tensor error while the input shape is unresolved.
func Input[T tensor.Element](e *Engine, s *Session, name string) (tensor.DeviceViewMut[T], error) {
	raw, err := e.RawInput(s, name)
	if err != nil {
		return tensor.DeviceViewMut[T]{}, err
	}
	if raw.IsDynamic() {
		return tensor.DeviceViewMut[T]{}, mnnerr.New(mnnerr.KindDynamicTensor, "input %q has shape %s", name, raw.Shape())
	}
	return tensor.DeviceViewMutOf[T](raw)
}

// InputUnresized is Input without the dynamic shape check, for inputs that
// are about to be resized.
func InputUnresized[T tensor.Element](e *Engine, s *Session, name string) (tensor.DeviceViewMut[T], error) {
	raw, err := e.RawInput(s, name)
	if err != nil {
		return tensor.DeviceViewMut[T]{}, err
	}
	return tensor.DeviceViewMutOf[T](raw)
}

// Output returns the named output of s as a read-only device view.
func Output[T tensor.Element](e *Engine, s *Session, name string) (tensor.DeviceView[T], error) {
	raw, err := e.RawOutput(s, name)
	if err != nil {
		return tensor.DeviceView[T]{}, err
	}
	if raw.IsDynamic() {
		return tensor.DeviceView[T]{}, mnnerr.New(mnnerr.KindDynamicTensor, "output %q has shape %s", name, raw.Shape())
	}
	return tensor.DeviceViewOf[T](raw)
}

// TensorInfo names one session tensor.
type TensorInfo struct {
	Name string
	raw  RawTensor
}

// Raw returns the tensor without a type check.
func (i TensorInfo) Raw() RawTensor { return i.raw }

// TensorOf returns the tensor behind i as a read-only device view.
func TensorOf[T tensor.Element](i TensorInfo) (tensor.DeviceView[T], error) {
	if i.raw.IsDynamic() {
		return tensor.DeviceView[T]{}, mnnerr.New(mnnerr.KindDynamicTensor, "tensor %q has shape %s", i.Name, i.raw.Shape())
	}
	return tensor.DeviceViewOf[T](i.raw)
}

// TensorList is the ordered set of a session's inputs or outputs.
type TensorList []TensorInfo

// Names returns the tensor names in order.
func (l TensorList) Names() []string {
	names := make([]string, len(l))
	for i, t := range l {
		names[i] = t.Name
	}
	return names
}

// Get returns the tensor called name.
func (l TensorList) Get(name string) (TensorInfo, bool) {
	for _, t := range l {
		if t.Name == name {
			return t, true
		}
	}
	return TensorInfo{}, false
}

// Inputs lists the inputs of s in declaration order.
func (e *Engine) Inputs(s *Session) (TensorList, error) {
	if err := e.checkSession(s); err != nil {
		return nil, err
	}
	return e.list(e.rt.SessionInputs(e.net, s.handle)), nil
}

// Outputs lists the outputs of s, followed by any saved tensors.
func (e *Engine) Outputs(s *Session) (TensorList, error) {
	if err := e.checkSession(s); err != nil {
		return nil, err
	}
	return e.list(e.rt.SessionOutputs(e.net, s.handle)), nil
}

func (e *Engine) list(named []native.NamedTensor) TensorList {
	l := make(TensorList, len(named))
	for i, n := range named {
		l[i] = TensorInfo{Name: n.Name, raw: tensor.NewRaw(e.rt, n.Tensor)}
	}
	return l
}
