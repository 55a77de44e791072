package api_test

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-tcp/api"
)

func TestSystemErrorCarriesErrno(t *testing.T) {
	err := api.SystemError("bind", fmt.Errorf("wrapped: %w", syscall.EADDRINUSE))
	assert.Equal(t, api.ErrCodeSystem, err.Code)
	assert.Equal(t, syscall.EADDRINUSE, err.Errno)
	assert.ErrorIs(t, err, syscall.EADDRINUSE)
	assert.Contains(t, err.Error(), "bind")
}

func TestSystemErrorNonErrnoCause(t *testing.T) {
	cause := errors.New("boom")
	err := api.SystemError("accept", cause)
	assert.Zero(t, err.Errno)
	assert.ErrorIs(t, err, cause)
}

func TestCodeOfThroughWrapping(t *testing.T) {
	inner := api.NewError(api.ErrCodeConfig, "unknown address format").WithContext("address", "nope")
	err := fmt.Errorf("listener nope:1: %w", inner)

	assert.Equal(t, api.ErrCodeConfig, api.CodeOf(err))
	assert.True(t, api.IsCode(err, api.ErrCodeConfig))
	assert.False(t, api.IsCode(nil, api.ErrCodeOK))
	assert.Equal(t, api.ErrCodeOK, api.CodeOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "address:nope")
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := api.NewError(api.ErrCodeHandshake, "tls: bad record")
	assert.ErrorIs(t, err, &api.Error{Code: api.ErrCodeHandshake})
	assert.NotErrorIs(t, err, &api.Error{Code: api.ErrCodeConfig})
}

func TestStepInterest(t *testing.T) {
	require.Equal(t, api.EventWrite, api.StepWantWrite.Interest())
	require.Equal(t, api.EventRead, api.StepWantRead.Interest())
	assert.Equal(t, "want-read", api.StepWantRead.String())
	assert.Equal(t, "invalid", api.Step(0).String())
}
