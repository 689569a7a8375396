// File: cmd/run.go
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/config"
	"github.com/xkilldash9x/umbra/internal/dom"
	"github.com/xkilldash9x/umbra/internal/dom/htmlconv"
	"github.com/xkilldash9x/umbra/internal/jsexec"
	"github.com/xkilldash9x/umbra/internal/observability"
	"github.com/xkilldash9x/umbra/internal/storage"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scripts...]",
		Short: "Runs one or more scripts against a document",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys. This is the idiomatic way to
			// ensure command-line flags override values from the config file
			// and environment variables.
			if err := viper.BindPFlag("storage.dir", cmd.Flags().Lookup("storage-dir")); err != nil {
				return err
			}
			return viper.BindPFlag("engine.script_timeout", cmd.Flags().Lookup("timeout"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-resolve the config so the flags bound in PreRunE apply
			// with the right precedence.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			appConfig = cfg

			htmlFile, _ := cmd.Flags().GetString("html")
			dumpHTML, _ := cmd.Flags().GetBool("dump-html")
			cfg.SetRunConfig(config.RunConfig{
				Scripts:  args,
				HTMLFile: htmlFile,
				Timeout:  cfg.Engine().ScriptTimeout,
				DumpHTML: dumpHTML,
			})

			logger.Info("Starting run",
				zap.Strings("scripts", args),
				zap.String("html_file", htmlFile),
				zap.Duration("timeout", cfg.Run().Timeout),
			)

			components, err := initializeRunComponents(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize run components: %w", err)
			}
			defer components.Shutdown()

			for _, script := range cfg.Run().Scripts {
				src, err := os.ReadFile(script)
				if err != nil {
					return fmt.Errorf("failed to read script %q: %w", script, err)
				}

				value, err := components.Runtime.ExecuteScript(ctx, filepath.Base(script), string(src))
				if err != nil {
					var interrupted *jsexec.InterruptedError
					if errors.As(err, &interrupted) && ctx.Err() != nil {
						logger.Warn("Run aborted", zap.String("script", script))
						return fmt.Errorf("run aborted by user signal")
					}
					logger.Error("Script failed", zap.String("script", script), zap.Error(err))
					return err
				}
				if value != nil {
					fmt.Printf("%s: %v\n", filepath.Base(script), value)
				}
			}

			if cfg.Run().DumpHTML {
				markup, err := htmlconv.Serialize(components.Document.AsNode())
				if err != nil {
					return fmt.Errorf("failed to serialize document: %w", err)
				}
				fmt.Println(markup)
			}

			logger.Info("Run completed successfully")
			return nil
		},
	}

	runCmd.Flags().String("html", "", "HTML file to load as the initial document.")
	runCmd.Flags().Duration("timeout", 0, "Per-script timeout. (Overrides config/env)")
	runCmd.Flags().String("storage-dir", "", "Directory backing indexedDB. (Overrides config/env)")
	runCmd.Flags().Bool("dump-html", false, "Print the serialized document after all scripts finish.")

	return runCmd
}

// runComponents holds the initialized engine pieces for a single run.
type runComponents struct {
	Document *dom.Document
	Slots    *dom.SlotEngine
	Store    *storage.Manager
	Runtime  *jsexec.Runtime
}

// Shutdown gracefully closes all components.
func (rc *runComponents) Shutdown() {
	if rc.Runtime != nil {
		rc.Runtime.Close()
	}
	if rc.Store != nil {
		if err := rc.Store.Close(); err != nil {
			observability.GetLogger().Warn("Error flushing storage during shutdown", zap.Error(err))
		}
	}
}

// initializeRunComponents handles dependency injection for the run command.
func initializeRunComponents(cfg *config.Config, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	// 1. Document
	var doc *dom.Document
	if htmlFile := cfg.Run().HTMLFile; htmlFile != "" {
		f, err := os.Open(htmlFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open html file: %w", err)
		}
		doc, err = htmlconv.Parse(f, logger)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse html file: %w", err)
		}
	} else {
		doc = dom.NewDocument(logger)
	}
	doc.SetMaxDepth(cfg.Engine().MaxTreeDepth)
	components.Document = doc

	// 2. Slot assignment
	slots := dom.NewSlotEngine(logger)
	doc.AddObserver(slots)
	components.Slots = slots

	// 3. Origin storage
	if cfg.Storage().Enabled {
		store, err := storage.NewManager(cfg.Storage().Dir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		components.Store = store
	}

	// 4. Script runtime
	components.Runtime = jsexec.NewRuntime(components.Document, components.Slots, components.Store, cfg.Engine().ScriptTimeout, logger)

	return components, nil
}
