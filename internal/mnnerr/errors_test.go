package mnnerr

import (
	"errors"
	"fmt"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/mnn/internal/native"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := New(KindDynamicTensor, "input %q", "data")
	assert.ErrorIs(t, err, ErrDynamicTensor)
	assert.NotErrorIs(t, err, ErrTensor)

	wrapped := fmt.Errorf("run: %w", err)
	assert.ErrorIs(t, wrapped, ErrDynamicTensor)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindDynamicTensor, kind)
	assert.Contains(t, err.Location, "errors_test.go")
}

func TestFromCode(t *testing.T) {
	assert.NoError(t, FromCode(native.NoError))

	err := FromCode(native.ComputeSizeError)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, native.ComputeSizeError, CodeOf(err))
	assert.Equal(t, "internal error: COMPUTE_SIZE_ERROR", err.Error())
}

func TestSizeMismatchMessage(t *testing.T) {
	err := SizeMismatch(12, 10).WithDetail("borrowed data")
	assert.Equal(t, "size mismatch: expected 12, got 10: borrowed data", err.Error())
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("no such file")
	err := Wrap(KindIO, cause, "open %s", "model.mnn")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrIO)
	assert.Equal(t, "io error: open model.mnn: no such file", err.Error())
}

func TestRecoveredCarriesPayloadAndLocation(t *testing.T) {
	var err *Error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = Recovered(r, debug.Stack())
			}
		}()
		panic("boom")
	}()

	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrSync)

	var p *PanicError
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "boom", p.Value)
	assert.Contains(t, p.Location, "errors_test.go")
	assert.NotEmpty(t, p.Stack)
}
