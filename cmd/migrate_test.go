package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/testimony-api/pkg/config"
)

func TestMigrateCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		wantErr        bool
		expectedOutput string
	}{
		{
			name:           "migrate command with help",
			args:           []string{"migrate", "--help"},
			wantErr:        false,
			expectedOutput: "Manage the database schema",
		},
		{
			name:           "migrate up subcommand",
			args:           []string{"migrate", "up", "--help"},
			wantErr:        false,
			expectedOutput: "Apply the schema for all models",
		},
		{
			name:           "migrate status subcommand",
			args:           []string{"migrate", "status", "--help"},
			wantErr:        false,
			expectedOutput: "Display the current status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.expectedOutput != "" && !strings.Contains(buf.String(), tt.expectedOutput) {
				t.Errorf("Expected output to contain %q, got %q", tt.expectedOutput, buf.String())
			}
		})
	}
}

func TestMigrateCommandSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	if err != nil {
		t.Fatalf("Failed to find migrate command: %v", err)
	}

	// Check that subcommands exist
	expectedSubcommands := []string{"up", "status"}
	for _, subCmd := range expectedSubcommands {
		found := false
		for _, child := range migrateCmd.Commands() {
			if child.Name() == subCmd {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected migrate command to have %q subcommand", subCmd)
		}
	}
}

func TestMigrateUpAndStatus(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TESTIMONY_DATABASE_PATH", filepath.Join(dir, "testimonies.db"))
	config.Reset()
	t.Cleanup(config.Reset)

	run := func(args ...string) string {
		cmd := NewRootCmd()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetErr(buf)
		cmd.SetArgs(append(args, "--config", filepath.Join(dir, "missing.yaml")))
		require.NoError(t, cmd.Execute())
		return buf.String()
	}

	out := run("migrate", "up")
	assert.Contains(t, out, "Schema is up to date")

	out = run("migrate", "status")
	assert.Contains(t, out, "testimonies")
	assert.NotContains(t, out, "missing\n")
	assert.NotContains(t, out, "run \"migrate up\"")
}
