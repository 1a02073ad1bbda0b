package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

func TestNewAndError(t *testing.T) {
	err := coreerrors.New(coreerrors.NotFound, "slot not found")

	assert.Equal(t, "[not_found] slot not found", err.Error())
	assert.Equal(t, coreerrors.NotFound, coreerrors.GetCode(err))
	assert.True(t, coreerrors.Is(err, coreerrors.NotFound))
	assert.False(t, coreerrors.Is(err, coreerrors.Timeout))
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := coreerrors.Wrap(coreerrors.Failed, "sign failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestConvenienceConstructors(t *testing.T) {
	cases := []struct {
		err  error
		code coreerrors.Code
	}{
		{coreerrors.InvalidArgumentf("bad %s", "iv"), coreerrors.InvalidArgument},
		{coreerrors.NotSupportedf("curve"), coreerrors.NotSupported},
		{coreerrors.AlreadyExistsf("instance"), coreerrors.AlreadyExists},
		{coreerrors.OutOfRangef("slots"), coreerrors.OutOfRange},
		{coreerrors.NoMemoryf("table"), coreerrors.NoMemory},
		{coreerrors.WrongStatef("cipher"), coreerrors.WrongState},
		{coreerrors.Timeoutf("rpc"), coreerrors.Timeout},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, coreerrors.GetCode(tc.err))
	}
}

func TestGetCodeNonCoreError(t *testing.T) {
	assert.Equal(t, coreerrors.Code(""), coreerrors.GetCode(fmt.Errorf("plain")))
}
