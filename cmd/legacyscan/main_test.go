// Package main provides tests for the legacyscan CLI.
package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/legacyscan/internal/cli"
	"github.com/leapstack-labs/legacyscan/internal/cli/config"
	"github.com/leapstack-labs/legacyscan/internal/cli/output"
	"github.com/leapstack-labs/legacyscan/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "legacyscan v")
}

func TestHelpCommand(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)

	for _, expected := range []string{"scan", "view", "lineage", "search", "runs", "completion"} {
		assert.Contains(t, out, expected)
	}
}

func TestScanEndToEnd(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"etl/load.sql": "INSERT INTO card_stage SELECT c.open_dt FROM gdr_card_acct c;\n",
		"etl/run.sh":   "#!/bin/sh\nbeeline -f etl/load.sql\n",
	})
	home := t.TempDir()
	dict := testutil.WriteFile(t, home, "dict.csv", "legacy_table,attribute,c360_mapping\ngdr_card_acct,open_dt,card.opened\n")

	out, err := run(t, "scan", root,
		"--dictionary", dict,
		"--state", filepath.Join(home, "state.db"),
		"--save",
		"-o", "json")
	require.NoError(t, err)

	var got output.ScanOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Summary.Files)
	assert.NotEmpty(t, got.RunID)
	require.Len(t, got.Occurrences, 1)
	assert.Equal(t, "etl/load.sql", got.Occurrences[0].FilePath)
	assert.Equal(t, "card.opened", got.Occurrences[0].Entry.Mapping)

	out, err = run(t, "runs", "list", "--state", filepath.Join(home, "state.db"), "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, got.RunID)
}

func TestInvalidOutputFlag(t *testing.T) {
	_, err := run(t, "scan", t.TempDir(), "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output")
}
