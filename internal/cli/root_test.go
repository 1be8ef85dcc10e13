package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/internal/cli/config"
	"github.com/leapstack-labs/legacyscan/internal/cli/output"
)

func TestGetConfig_FallsBackToDefaults(t *testing.T) {
	cfg := GetConfig(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, config.DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, config.DefaultStateFile, cfg.StatePath)
}

func TestGetRenderer_FromContext(t *testing.T) {
	r := output.NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, output.ModeJSON)
	ctx := context.WithValue(context.Background(), rendererKey{}, r)

	assert.Same(t, r, GetRenderer(ctx))
	assert.NotNil(t, GetRenderer(context.Background()))
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"config", "root", "dictionary", "state", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %q should exist", name)
	}
	assert.Equal(t, "o", cmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestCompletionCommand(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "legacyscan"},
		{"zsh", "#compdef legacyscan"},
		{"fish", "complete -c legacyscan"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			config.ResetConfig()
			t.Cleanup(config.ResetConfig)

			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(new(bytes.Buffer))
			cmd.SetArgs([]string{"completion", tt.shell})

			require.NoError(t, cmd.Execute())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestCompletionCommand_RejectsUnknownShell(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"completion", "tcsh"})

	assert.Error(t, cmd.Execute())
}
