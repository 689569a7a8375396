// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/config"
	"github.com/xkilldash9x/umbra/internal/observability"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	// 1. Reset Viper and prevent auto-discovery of a real config file.
	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")

	// 2. Reset package-level variables from root.go.
	cfgFile = ""
	appConfig = nil

	// 3. Reset the logger to a silent state. Consuming the init here means
	// the command's own InitializeLogger call becomes a no-op, so tests
	// never write umbra.log into the working tree.
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	// 4. Re-initialize the root command to its pristine state. This
	// prevents state leakage within Cobra itself.
	rootCmd = newPristineRootCmd()
}

// newPristineRootCmd builds a clean root command for integration tests.
// The body mirrors the rootCmd initialization in root.go.
func newPristineRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "umbra",
		Short:   "Umbra is a shadow-tree aware document engine with a scriptable runtime.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "umbra"})
				return err
			}
			appConfig = cfg
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("Starting umbra", zap.String("version", Version))
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./umbra.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newReplCmd())
	return cmd
}

// executeRoot runs the package root command with the given args, capturing
// Cobra's own output.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeCommandNoPreRun is for testing argument and flag validation without
// triggering config loading in PersistentPreRunE.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testRootCmd := newPristineRootCmd()
	testRootCmd.PersistentPreRunE = nil

	buf := new(bytes.Buffer)
	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)
	err := testRootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// captureStdout redirects os.Stdout for fn, returning everything written.
// Script results and --dump-html go to the real stdout, not Cobra's writer.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}
