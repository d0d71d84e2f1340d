package reference

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/born-ml/mnn/internal/native"
)

// Model is a parsed model manifest.
type Model struct {
	Name    string       `toml:"name"`
	Inputs  []TensorDesc `toml:"input"`
	Ops     []OpDesc     `toml:"op"`
	Outputs []OutputDesc `toml:"output"`

	// raw is the manifest source, used for the cache key.
	raw []byte
}

// TensorDesc declares a graph input.
type TensorDesc struct {
	Name   string `toml:"name"`
	Shape  []int  `toml:"shape"`
	Type   string `toml:"type"`
	Layout string `toml:"layout"`
}

// OpDesc is one operator.
type OpDesc struct {
	Name   string   `toml:"name"`
	Type   string   `toml:"type"`
	Inputs []string `toml:"inputs"`
	Output string   `toml:"output"`
	Scale  *float32 `toml:"scale"`
	Bias   float32  `toml:"bias"`
}

// OutputDesc names a graph output.
type OutputDesc struct {
	Name string `toml:"name"`
}

var elementTypes = map[string]native.HalideType{
	"":        native.Float32,
	"float32": native.Float32,
	"float64": native.Float64,
	"int8":    native.Int8,
	"int16":   native.Int16,
	"int32":   native.Int32,
	"int64":   native.Int64,
	"uint8":   native.Uint8,
	"uint16":  native.Uint16,
}

var layouts = map[string]native.DimensionType{
	"":           native.Caffe,
	"nchw":       native.Caffe,
	"caffe":      native.Caffe,
	"nhwc":       native.TensorFlow,
	"tensorflow": native.TensorFlow,
	"nc4hw4":     native.CaffeC4,
	"caffe_c4":   native.CaffeC4,
}

// ParseModel decodes and validates a manifest.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse model: unknown keys %v", undecoded)
	}
	m.raw = slices.Clone(data)
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Inputs) == 0 {
		return fmt.Errorf("model %q has no inputs", m.Name)
	}
	defined := make(map[string]bool)
	for i, in := range m.Inputs {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("input[%d] missing name", i)
		}
		if defined[in.Name] {
			return fmt.Errorf("input %q declared twice", in.Name)
		}
		if _, ok := elementTypes[strings.ToLower(in.Type)]; !ok {
			return fmt.Errorf("input %q: unknown type %q", in.Name, in.Type)
		}
		if _, ok := layouts[strings.ToLower(in.Layout)]; !ok {
			return fmt.Errorf("input %q: unknown layout %q", in.Name, in.Layout)
		}
		for _, d := range in.Shape {
			if d == 0 || d < -1 {
				return fmt.Errorf("input %q: invalid extent %d", in.Name, d)
			}
		}
		defined[in.Name] = true
	}
	for i, op := range m.Ops {
		k, ok := kernels[op.Type]
		if !ok {
			return fmt.Errorf("op[%d] %q: unknown type %q", i, op.Name, op.Type)
		}
		if len(op.Inputs) != k.arity {
			return fmt.Errorf("op %q: %s takes %d inputs, got %d", op.Name, op.Type, k.arity, len(op.Inputs))
		}
		for _, in := range op.Inputs {
			if !defined[in] {
				return fmt.Errorf("op %q: input %q is not defined before use", op.Name, in)
			}
		}
		if op.Output == "" || defined[op.Output] {
			return fmt.Errorf("op %q: output %q is empty or already defined", op.Name, op.Output)
		}
		defined[op.Output] = true
	}
	for _, out := range m.Outputs {
		if !defined[out.Name] {
			return fmt.Errorf("output %q is not produced by the graph", out.Name)
		}
	}
	return nil
}

// outputNames returns the declared outputs, or every tensor no op consumes.
func (m *Model) outputNames() []string {
	if len(m.Outputs) > 0 {
		names := make([]string, len(m.Outputs))
		for i, o := range m.Outputs {
			names[i] = o.Name
		}
		return names
	}
	consumed := make(map[string]bool)
	for _, op := range m.Ops {
		for _, in := range op.Inputs {
			consumed[in] = true
		}
	}
	var names []string
	for _, op := range m.Ops {
		if !consumed[op.Output] {
			names = append(names, op.Output)
		}
	}
	if len(names) == 0 {
		for _, in := range m.Inputs {
			names = append(names, in.Name)
		}
	}
	return names
}
