package sockfd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/sockfd"
)

func TestFD_CloseOnce(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	f := sockfd.New(fds[0])
	assert.Equal(t, fds[0], f.Int())
	assert.False(t, f.Closed())

	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
	assert.Equal(t, -1, f.Int())

	// The second call must not reach the OS.
	require.NoError(t, f.Close())

	// The peer observes EOF once our side is gone.
	buf := make([]byte, 1)
	n, err := unix.Read(fds[1], buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFD_NilIsClosed(t *testing.T) {
	var f *sockfd.FD
	assert.True(t, f.Closed())
	assert.Equal(t, -1, f.Int())
	assert.NoError(t, f.Close())
}

func TestFD_CloseReportsErrno(t *testing.T) {
	// Far above any open descriptor, so the OS rejects it.
	f := sockfd.New(1 << 24)
	assert.ErrorIs(t, f.Close(), unix.EBADF)
	assert.True(t, f.Closed())
	assert.NoError(t, f.Close())
}
