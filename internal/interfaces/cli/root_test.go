package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/infrastructure/feed"
	"github.com/coprede/sir-dashboard/internal/testutil"
	"github.com/coprede/sir-dashboard/pkg/client"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// feedFixture writes the sample snapshot as a feed document and points the
// file source at it.
func feedFixture(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, feed.Encode(&buf, testutil.SampleSnapshot()))
	path := filepath.Join(t.TempDir(), "dashboard_data.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	t.Setenv("SIRDASH_FEED_KIND", "file")
	t.Setenv("SIRDASH_FEED_PATH", path)
	return path
}

func execute(t *testing.T, deps rootDeps, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", "", "--no-color", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "sirdash", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"board", "cluster", "types", "snapshot", "history", "trend", "transitions", "refresh", "ingest", "notify", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "env-file", "output", "no-color", "timeout", "server", "token"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, FormatTable, cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestVersionCmd_SkipsInit(t *testing.T) {
	// An unusable config path would fail initialization.
	out, err := execute(t, rootDeps{}, "--config", "/nonexistent/sirdash.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sirdash "+Version)
	assert.Contains(t, out, "commit: "+GitCommit)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	_, err := execute(t, rootDeps{backend: &fakeBackend{}}, "--output", "xml", "snapshot")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestRoot_InvalidConfigFile(t *testing.T) {
	_, err := execute(t, rootDeps{backend: &fakeBackend{}}, "--config", "/nonexistent/sirdash.yaml", "snapshot")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestCLIContext_BackendSelection(t *testing.T) {
	feedFixture(t)
	opts := &RootOptions{Server: "http://localhost:8080", LogLevel: "error", Output: FormatJSON}
	cliCtx, err := newCLIContext(newRootCommand(rootDeps{}), opts)
	require.NoError(t, err)
	defer cliCtx.Close()

	b, err := cliCtx.Backend(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &client.Client{}, b)
	assert.Nil(t, cliCtx.infra, "remote mode opens no local infrastructure")

	opts.Server = "ftp://nope"
	cliCtx.backend = nil
	_, err = cliCtx.Backend(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))

	opts.Server = ""
	b, err = cliCtx.Backend(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &localBackend{}, b)
	assert.NotNil(t, cliCtx.infra)
}
