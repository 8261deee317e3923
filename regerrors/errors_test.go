package regerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorParts(t *testing.T) {
	assert.Equal(t, "IncompatibleRealize", GetErrorName(ErrIncompatibleRealize))
	assert.Equal(t, "R1", GetErrorCode(ErrIncompatibleRealize))
	assert.Equal(t, "R4_OutOfHostRegisters", GetErrorCodeWithName(ErrOutOfHostRegisters))
	assert.Equal(t, "Every allocatable host register is locked.", GetErrorDesc(ErrOutOfHostRegisters))
	assert.Equal(t, "No Error", GetErrorName(nil))
	assert.Equal(t, []string{"DoubleUnlock", "NotRevertable"}, GetErrorNames([]error{ErrDoubleUnlock, ErrNotRevertable}))
}

func TestAssertPanicsWithSentinel(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, ErrDoubleUnlock, "unused") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		ae, ok := r.(*AssertionError)
		require.True(t, ok)
		assert.ErrorIs(t, ae, ErrDoubleUnlock)
		assert.Contains(t, ae.Error(), "guest 3")
		assert.Equal(t, "R2", GetErrorCode(ae))
	}()
	Assert(false, ErrDoubleUnlock, "guest %d", 3)
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		Fail(ErrNotStarted, "no layout")
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotStarted))

	assert.Panics(t, func() {
		var err error
		defer Recover(&err)
		panic("not an assertion")
	})
}
