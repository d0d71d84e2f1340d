// Package schedule holds the value objects that pick where and how a
// session executes.
package schedule

import (
	"slices"
	"strings"

	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/native"
)

// BackendConfig tunes the selected backend.
type BackendConfig struct {
	Memory    MemoryMode    `toml:"memory"`
	Power     PowerMode     `toml:"power"`
	Precision PrecisionMode `toml:"precision"`
	// Flags are backend specific.
	Flags uint64 `toml:"flags"`
}

// DefaultBackendConfig returns normal memory, power and precision.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{}
}

// ScheduleConfig describes the compute target of a session. It is a value:
// sessions keep their own clone.
type ScheduleConfig struct {
	Type       ForwardType `toml:"type"`
	BackupType ForwardType `toml:"backup_type"`
	NumThreads int         `toml:"num_threads"`
	// Mode is the engine's scheduling mode. On CPU it is the thread count
	// when NumThreads is zero.
	Mode int `toml:"mode"`
	// SaveTensors names intermediate tensors kept readable after a run.
	SaveTensors []string       `toml:"save_tensors"`
	Backend     *BackendConfig `toml:"backend"`
}

// DefaultScheduleConfig returns a four-thread CPU schedule.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Type:       ForwardCPU,
		BackupType: ForwardCPU,
		NumThreads: 4,
	}
}

// Clone returns a deep copy of c.
func (c ScheduleConfig) Clone() ScheduleConfig {
	out := c
	out.SaveTensors = slices.Clone(c.SaveTensors)
	if c.Backend != nil {
		b := *c.Backend
		out.Backend = &b
	}
	return out
}

// WithBackend returns a copy of c using b.
func (c ScheduleConfig) WithBackend(b BackendConfig) ScheduleConfig {
	out := c.Clone()
	out.Backend = &b
	return out
}

// Validate checks the fields the engine would otherwise reject silently.
func (c ScheduleConfig) Validate() error {
	if c.NumThreads < 0 {
		return mnnerr.New(mnnerr.KindParse, "num_threads must not be negative, got %d", c.NumThreads)
	}
	for _, name := range c.SaveTensors {
		if !isASCII(name) {
			return mnnerr.New(mnnerr.KindASCII, "save tensor name %q", name)
		}
	}
	return nil
}

// Native converts c into the engine's struct.
func (c ScheduleConfig) Native() native.ScheduleConfig {
	out := native.ScheduleConfig{
		Type:        int32(c.Type),
		BackupType:  int32(c.BackupType),
		NumThread:   int32(c.NumThreads),
		Mode:        int32(c.Mode),
		SaveTensors: slices.Clone(c.SaveTensors),
	}
	if c.Backend != nil {
		out.Backend = &native.BackendConfig{
			Memory:    int32(c.Backend.Memory),
			Power:     int32(c.Backend.Power),
			Precision: int32(c.Backend.Precision),
			Flags:     c.Backend.Flags,
		}
	}
	return out
}

// FromNative converts the engine's struct back into a ScheduleConfig.
func FromNative(n native.ScheduleConfig) ScheduleConfig {
	out := ScheduleConfig{
		Type:        ForwardType(n.Type),
		BackupType:  ForwardType(n.BackupType),
		NumThreads:  int(n.NumThread),
		Mode:        int(n.Mode),
		SaveTensors: slices.Clone(n.SaveTensors),
	}
	if n.Backend != nil {
		out.Backend = &BackendConfig{
			Memory:    MemoryMode(n.Backend.Memory),
			Power:     PowerMode(n.Backend.Power),
			Precision: PrecisionMode(n.Backend.Precision),
			Flags:     n.Backend.Flags,
		}
	}
	return out
}

var sessionModes = map[string]native.SessionMode{
	"debug":           native.SessionDebug,
	"release":         native.SessionRelease,
	"input_inside":    native.SessionInputInside,
	"input_user":      native.SessionInputUser,
	"output_inside":   native.SessionOutputInside,
	"output_user":     native.SessionOutputUser,
	"resize_direct":   native.SessionResizeDirect,
	"resize_defer":    native.SessionResizeDefer,
	"backend_fix":     native.SessionBackendFix,
	"backend_auto":    native.SessionBackendAuto,
	"memory_collect":  native.SessionMemoryCollect,
	"memory_cache":    native.SessionMemoryCache,
	"codegen_disable": native.SessionCodegenDisable,
	"codegen_enable":  native.SessionCodegenEnable,
	"resize_check":    native.SessionResizeCheck,
	"resize_fix":      native.SessionResizeFix,
}

// ParseSessionMode parses a session mode name such as "debug" or
// "input_user".
func ParseSessionMode(s string) (native.SessionMode, error) {
	if m, ok := sessionModes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return 0, mnnerr.New(mnnerr.KindParse, "invalid session mode: %s", s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 || s[i] == 0 {
			return false
		}
	}
	return true
}
