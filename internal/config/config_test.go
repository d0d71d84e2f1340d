package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnn/internal/backend/reference"
	"github.com/born-ml/mnn/internal/engine"
	"github.com/born-ml/mnn/internal/mnnerr"
	"github.com/born-ml/mnn/internal/modelstore"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/schedule"
)

const full = `
model = "models/tiny.toml"
cache_file = "tiny.cache"
cache_key_size = 64
session_mode = ["release", "input_user"]

[schedule]
type = "opencl"
backup_type = "cpu"
num_threads = 2
save_tensors = ["feat"]

[schedule.backend]
memory = "low"
power = "high"
precision = "low_bf16"

[actor]
queue_size = 8
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(writeFile(t, dir, "mnn.toml", full))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "models", "tiny.toml"), cfg.Model)
	assert.Equal(t, filepath.Join(dir, "tiny.cache"), cfg.CacheFile)
	assert.Equal(t, 64, cfg.CacheKeySize)
	assert.Equal(t, []native.SessionMode{native.SessionRelease, native.SessionInputUser}, cfg.SessionModes)

	assert.Equal(t, schedule.ForwardOpenCL, cfg.Schedule.Type)
	assert.Equal(t, schedule.ForwardCPU, cfg.Schedule.BackupType)
	assert.Equal(t, 2, cfg.Schedule.NumThreads)
	assert.Equal(t, []string{"feat"}, cfg.Schedule.SaveTensors)
	require.NotNil(t, cfg.Schedule.Backend)
	assert.Equal(t, schedule.MemoryLow, cfg.Schedule.Backend.Memory)
	assert.Equal(t, schedule.PowerHigh, cfg.Schedule.Backend.Power)
	assert.Equal(t, schedule.PrecisionLowBF16, cfg.Schedule.Backend.Precision)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Nil(t, cfg.Store)
}

func TestDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse(`model = "tiny.toml"`)
	require.NoError(t, err)

	want := Default()
	want.Model = "tiny.toml"
	assert.Equal(t, want, cfg)
	assert.Equal(t, 4, cfg.Schedule.NumThreads)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind error
	}{
		{"syntax", `model = `, mnnerr.ErrParse},
		{"unknown key", "model = \"a\"\ncolour = \"red\"", mnnerr.ErrParse},
		{"bad forward type", "[schedule]\ntype = \"tpu\"", mnnerr.ErrParse},
		{"bad session mode", `session_mode = ["fast"]`, mnnerr.ErrParse},
		{"negative threads", "[schedule]\nnum_threads = -2", mnnerr.ErrParse},
		{"non ascii save tensor", "[schedule]\nsave_tensors = [\"fé\"]", mnnerr.ErrASCII},
		{"negative queue", "[actor]\nqueue_size = -1", mnnerr.ErrParse},
		{"unknown store", "[store]\nkind = \"ftp\"\ncache_dir = \"c\"", mnnerr.ErrParse},
		{"store without cache", "[store]\ndir = \"models\"", mnnerr.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, mnnerr.ErrIO)
}

func TestActorConfigClonesSchedule(t *testing.T) {
	cfg, err := Parse("[schedule]\nsave_tensors = [\"feat\"]\n[actor]\nqueue_size = 3")
	require.NoError(t, err)

	ac := cfg.ActorConfig()
	require.Len(t, ac.Schedule, 1)
	assert.Equal(t, 3, ac.QueueSize)
	ac.Schedule[0].SaveTensors[0] = "changed"
	assert.Equal(t, "feat", cfg.Schedule.SaveTensors[0])
}

func TestNewEngineFromStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models/classifier.toml", reference.Classifier)
	path := writeFile(t, dir, "mnn.toml", `
model = "classifier.toml"
cache_file = "classifier.cache"
session_mode = ["release"]

[store]
dir = "models"
cache_dir = "cache"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Store)
	assert.Equal(t, StoreFile, cfg.Store.Kind)

	store, err := cfg.ModelStore()
	require.NoError(t, err)
	assert.IsType(t, &modelstore.FileStore{}, store)

	rt := reference.New()
	e, err := cfg.NewEngine(context.Background(), rt)
	require.NoError(t, err)
	defer e.Close()
	assert.FileExists(t, filepath.Join(dir, "cache", "classifier.toml"))

	s, err := e.CreateSession(cfg.Schedule)
	require.NoError(t, err)
	require.NoError(t, e.UpdateCacheFile(s))
	assert.FileExists(t, filepath.Join(dir, "classifier.cache"))

	called := false
	require.NoError(t, e.RunSessionWithCallback(s, func([]engine.RawTensor, engine.OperatorInfo) bool {
		called = true
		return true
	}, nil, true))
	assert.False(t, called, "release mode from the config disables callbacks")
}

func TestModelPathWithoutModel(t *testing.T) {
	_, err := Default().ModelPath(context.Background())
	assert.ErrorIs(t, err, mnnerr.ErrParse)
}
