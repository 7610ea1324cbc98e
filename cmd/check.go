package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/internal/config"
	"github.com/xkilldash9x/ariadriver/internal/observability"
	"github.com/xkilldash9x/ariadriver/internal/widget"
)

func kindNames() string {
	kinds := widget.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <kind> <url> <selector>",
		Short: "Activate a widget in a live browser and verify it reacts",
		Long: fmt.Sprintf(`Loads the page, validates the trigger's ARIA markup, focuses it, presses Enter
and waits (up to the configured patience) for the widget's expected state.

Supported kinds: %s.`, kindNames()),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, url, selector := widget.Kind(args[0]), args[1], args[2]
			if _, err := widget.Lookup(kind); err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := config.Get()

			components, err := initializeComponents(ctx, cfg, logger, componentOptions{})
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			if err := components.Driver.Get(ctx, url); err != nil {
				return fmt.Errorf("failed to load %s: %w", url, err)
			}

			out, opErr := components.Driver.Operate(ctx, kind, selector)
			logger.Info("Widget check finished",
				zap.String("kind", string(kind)),
				zap.String("selector", selector),
				zap.String("state", string(out.State)),
				zap.Duration("elapsed", out.Elapsed),
			)
			if err := newOutcomeReport(out, opErr).Write(cmd.OutOrStdout(), jsonOutput); err != nil {
				return err
			}
			return opErr
		},
	}
}
