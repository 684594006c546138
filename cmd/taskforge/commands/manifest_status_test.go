package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/log"
)

func TestManifestStatusCommandNoActiveManifest(t *testing.T) {
	app := kingpin.New("taskforge", "")
	rootCmd := NewRootCommand(app)
	manifestCmd := app.Command("manifest", "")
	cmd := NewManifestStatusCommand(rootCmd, manifestCmd)

	_, err := app.Parse([]string{"--ephemeral", "--user", "user1", "manifest", "status", "project1"})
	require.NoError(t, err)

	var out bytes.Buffer
	rootCmd.Logger = log.Noop
	rootCmd.Stdout = &out

	// Nothing to show is an answer, not a failure.
	err = cmd.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No active manifest")
}
