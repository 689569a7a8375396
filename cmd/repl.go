// File: cmd/repl.go
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/config"
	"github.com/xkilldash9x/umbra/internal/jsexec"
	"github.com/xkilldash9x/umbra/internal/observability"
)

// newReplCmd creates the interactive `repl` command. Each input line runs
// as a script against one long-lived document and runtime, so state
// accumulates across lines the way it does in a browser console.
func newReplCmd() *cobra.Command {
	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Starts an interactive JavaScript session against a document",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("storage.dir", cmd.Flags().Lookup("storage-dir")); err != nil {
				return err
			}
			return viper.BindPFlag("engine.script_timeout", cmd.Flags().Lookup("timeout"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			appConfig = cfg

			htmlFile, _ := cmd.Flags().GetString("html")
			cfg.SetRunConfig(config.RunConfig{
				HTMLFile: htmlFile,
				Timeout:  cfg.Engine().ScriptTimeout,
			})

			components, err := initializeRunComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize repl components: %w", err)
			}
			defer components.Shutdown()

			in := cmd.InOrStdin()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "umbra %s interactive shell. Type .exit or press Ctrl-D to leave.\n", Version)

			scanner := bufio.NewScanner(in)
			lineNo := 0
			for {
				fmt.Fprint(out, "umbra> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == ".exit" || line == "exit" || line == "quit" {
					break
				}

				lineNo++
				value, err := components.Runtime.ExecuteScript(ctx, fmt.Sprintf("repl:%d", lineNo), line)
				if err != nil {
					var interrupted *jsexec.InterruptedError
					if errors.As(err, &interrupted) && ctx.Err() != nil {
						// Ctrl-C during evaluation ends the session.
						break
					}
					// Script errors stay inside the session.
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				if value != nil {
					fmt.Fprintf(out, "%v\n", value)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read repl input: %w", err)
			}

			logger.Info("Interactive session ended", zap.Int("lines", lineNo))
			return nil
		},
	}

	replCmd.Flags().String("html", "", "HTML file to load as the initial document.")
	replCmd.Flags().Duration("timeout", 0, "Per-line timeout. (Overrides config/env)")
	replCmd.Flags().String("storage-dir", "", "Directory backing indexedDB. (Overrides config/env)")

	return replCmd
}
