package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Stdout(t *testing.T) {
	out, err := New().Execute(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecute_FailureCarriesStderr(t *testing.T) {
	_, err := New().Execute(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "sh", cmdErr.Name)
	assert.Equal(t, "boom", cmdErr.Stderr)
	assert.Contains(t, err.Error(), "stderr: boom")
}

func TestExecute_MissingBinary(t *testing.T) {
	_, err := New().Execute(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	long := strings.Repeat("x", maxStderr+10)
	got := tail(long)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.Len(t, got, maxStderr+3)
}
