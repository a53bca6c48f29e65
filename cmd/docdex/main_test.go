package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdex/docdex"
)

// runCLI executes the program against a temp data directory.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	m := NewMain()
	m.DataDir = filepath.Join(t.TempDir(), "data")

	var out, errBuf bytes.Buffer
	err = m.Run(context.Background(), args, &out, &errBuf)
	return out.String(), errBuf.String(), err
}

func TestMain_Run_no_command(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t)
	require.Error(t, err)
	assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
}

func TestMain_Run_help(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, "--help")
	require.NoError(t, err)
}

func TestMain_Run_config_show(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCLI(t, "config", "--show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[ollama]")
	assert.Contains(t, stdout, "model = 'nomic-embed-text'")
}

func TestMain_Run_config_writes_file(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCLI(t, "config")
	require.NoError(t, err)
	assert.Contains(t, stdout, "config.toml")
}

func TestMain_Run_list_empty(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCLI(t, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No sites registered")
}

func TestMain_Run_delete_unknown_site(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, "delete", "nonexistent")
	require.Error(t, err)
	assert.Equal(t, docdex.ENOTFOUND, docdex.ErrorCode(err))
}

func TestMain_Run_add_rejects_invalid_url(t *testing.T) {
	t.Parallel()

	_, _, err := runCLI(t, "add", "not-a-url")
	require.Error(t, err)
	assert.Equal(t, docdex.EINVALID, docdex.ErrorCode(err))
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitUsage, exitCodeFor(docdex.Errorf(docdex.EINVALID, "bad flag")))
	assert.Equal(t, exitUsage, exitCodeFor(docdex.Errorf(docdex.ENOTFOUND, "no such site")))
	assert.Equal(t, exitUsage, exitCodeFor(docdex.Errorf(docdex.ECONFLICT, "already running")))
	assert.Equal(t, exitRuntime, exitCodeFor(docdex.Errorf(docdex.EINTERNAL, "boom")))
	assert.Equal(t, exitRuntime, exitCodeFor(fmt.Errorf("plain failure")))
}
