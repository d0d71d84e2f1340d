package schedule

import (
	"strings"

	"github.com/born-ml/mnn/internal/mnnerr"
)

// ForwardType selects the compute backend of a session.
type ForwardType int32

// Forward types, valued as the engine's MNNForwardType.
const (
	ForwardCPU    ForwardType = 0
	ForwardMetal  ForwardType = 1
	ForwardOpenCL ForwardType = 3
	ForwardAuto   ForwardType = 4
	ForwardCoreML ForwardType = 5
	ForwardOpenGL ForwardType = 6
	ForwardVulkan ForwardType = 7
	ForwardAll    ForwardType = 8
)

var forwardNames = map[ForwardType]string{
	ForwardCPU:    "cpu",
	ForwardMetal:  "metal",
	ForwardOpenCL: "opencl",
	ForwardAuto:   "auto",
	ForwardCoreML: "coreml",
	ForwardOpenGL: "opengl",
	ForwardVulkan: "vulkan",
	ForwardAll:    "all",
}

func (f ForwardType) String() string {
	if s, ok := forwardNames[f]; ok {
		return s
	}
	return "unknown"
}

// IsDevice reports whether sessions on f keep their tensors in device memory.
func (f ForwardType) IsDevice() bool {
	return f != ForwardCPU && f != ForwardAuto
}

// ParseForwardType parses a backend name such as "cpu" or "metal".
func ParseForwardType(s string) (ForwardType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "nn" {
		return ForwardCoreML, nil
	}
	for f, n := range forwardNames {
		if n == name {
			return f, nil
		}
	}
	return 0, mnnerr.New(mnnerr.KindParse, "invalid forward type: %s", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f ForwardType) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *ForwardType) UnmarshalText(text []byte) error {
	v, err := ParseForwardType(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// mode is the value set shared by MemoryMode and PowerMode.
type mode int32

const (
	modeNormal mode = 0
	modeHigh   mode = 1
	modeLow    mode = 2
)

func (m mode) String() string {
	switch m {
	case modeNormal:
		return "normal"
	case modeHigh:
		return "high"
	case modeLow:
		return "low"
	default:
		return "unknown"
	}
}

func parseMode(what, s string) (mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return modeNormal, nil
	case "high":
		return modeHigh, nil
	case "low":
		return modeLow, nil
	default:
		return 0, mnnerr.New(mnnerr.KindParse, "invalid %s mode: %s", what, s)
	}
}

// MemoryMode trades memory for speed where the backend supports it.
type MemoryMode int32

// Memory modes.
const (
	MemoryNormal = MemoryMode(modeNormal)
	MemoryHigh   = MemoryMode(modeHigh)
	MemoryLow    = MemoryMode(modeLow)
)

func (m MemoryMode) String() string { return mode(m).String() }

// ParseMemoryMode parses "low", "normal" or "high".
func ParseMemoryMode(s string) (MemoryMode, error) {
	m, err := parseMode("memory", s)
	return MemoryMode(m), err
}

// MarshalText implements encoding.TextMarshaler.
func (m MemoryMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MemoryMode) UnmarshalText(text []byte) error {
	v, err := ParseMemoryMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// PowerMode trades power for speed where the backend supports it.
type PowerMode int32

// Power modes.
const (
	PowerNormal = PowerMode(modeNormal)
	PowerHigh   = PowerMode(modeHigh)
	PowerLow    = PowerMode(modeLow)
)

func (p PowerMode) String() string { return mode(p).String() }

// ParsePowerMode parses "low", "normal" or "high".
func ParsePowerMode(s string) (PowerMode, error) {
	m, err := parseMode("power", s)
	return PowerMode(m), err
}

// MarshalText implements encoding.TextMarshaler.
func (p PowerMode) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PowerMode) UnmarshalText(text []byte) error {
	v, err := ParsePowerMode(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PrecisionMode selects the arithmetic precision of the backend.
type PrecisionMode int32

// Precision modes.
const (
	PrecisionNormal  PrecisionMode = 0
	PrecisionHigh    PrecisionMode = 1
	PrecisionLow     PrecisionMode = 2
	PrecisionLowBF16 PrecisionMode = 3
)

func (p PrecisionMode) String() string {
	if p == PrecisionLowBF16 {
		return "low_bf16"
	}
	return mode(p).String()
}

// ParsePrecisionMode parses "low", "normal", "high" or "low_bf16".
func ParsePrecisionMode(s string) (PrecisionMode, error) {
	if strings.EqualFold(strings.TrimSpace(s), "low_bf16") {
		return PrecisionLowBF16, nil
	}
	m, err := parseMode("precision", s)
	return PrecisionMode(m), err
}

// MarshalText implements encoding.TextMarshaler.
func (p PrecisionMode) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PrecisionMode) UnmarshalText(text []byte) error {
	v, err := ParsePrecisionMode(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
