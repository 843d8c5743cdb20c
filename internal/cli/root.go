// Package cli implements inspectctl, the operator command line for a
// fieldsync agent. Commands open the agent's local store directly, so they
// work while the agent is offline.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldsync/inspector/internal/app"
	"github.com/fieldsync/inspector/internal/config"
)

// opener builds the agent components a command runs against
type opener func(ctx context.Context) (*app.App, error)

type env struct {
	open       opener
	configPath string
	jsonOutput bool
}

// Execute runs inspectctl with os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the inspectctl command tree backed by the configured agent
func NewRootCommand() *cobra.Command {
	e := &env{}
	e.open = func(ctx context.Context) (*app.App, error) {
		if e.configPath != "" {
			os.Setenv("CONFIG_PATH", e.configPath)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		return app.New(ctx, cfg, app.Options{})
	}
	return newRootCommand(e)
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "inspectctl",
		Short: "Operate a fieldsync inspection agent",
		Long: `inspectctl inspects and drives the local state of a fieldsync agent:
the outbound sync queue, in-progress sessions and the equipment mirror.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "Path to the agent config file (defaults to CONFIG_PATH or config.json)")
	root.PersistentFlags().BoolVar(&e.jsonOutput, "json", false, "Print results as JSON")

	root.AddCommand(newSyncCommand(e))
	root.AddCommand(newQueueCommand(e))
	root.AddCommand(newSessionCommand(e))
	root.AddCommand(newEquipmentCommand(e))
	root.AddCommand(newCapturesCommand(e))
	return root
}

// withApp opens the agent for the duration of fn
func (e *env) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// printJSON writes v indented when --json is set and reports whether it did
func (e *env) printJSON(w io.Writer, v interface{}) (bool, error) {
	if !e.jsonOutput {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
