package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "rostra" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "rostra")
	}

	expected := []string{"serve", "sessions"}
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range expected {
		if !names[want] {
			t.Errorf("expected subcommand %q not found", want)
		}
	}
}

func TestSessionsCommand_EmptyStore(t *testing.T) {
	out, err := executeCommand(rootCmd, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "no stored sessions") {
		t.Errorf("output = %q, want mention of empty store", out)
	}
}
