package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ariadriver/internal/config"
	"github.com/xkilldash9x/ariadriver/internal/observability"
	"github.com/xkilldash9x/ariadriver/internal/widget"
)

func newLintCmd() *cobra.Command {
	var kind string

	lintCmd := &cobra.Command{
		Use:   "lint <file|url> <selector>",
		Short: "Check a trigger's ARIA markup without a browser",
		Long: `Parses the page statically, resolves the selector and runs the markup rule for
the widget kind. Nothing is focused or activated, so no scripts are needed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, selector := args[0], args[1]
			if _, err := widget.Lookup(widget.Kind(kind)); err != nil {
				return err
			}
			ctx := cmd.Context()

			components, err := initializeComponents(ctx, config.Get(), observability.GetLogger(), componentOptions{Offline: true})
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			if err := components.Driver.Get(ctx, target); err != nil {
				return fmt.Errorf("failed to load %s: %w", target, err)
			}

			warnings, lintErr := components.Driver.Inspect(ctx, widget.Kind(kind), selector)
			r := Report{Kind: kind, Selector: selector, State: "VALID", Warnings: warnings}
			if lintErr != nil {
				r.State = ""
				r.setError(lintErr)
			}
			if err := r.Write(cmd.OutOrStdout(), jsonOutput); err != nil {
				return err
			}
			return lintErr
		},
	}

	lintCmd.Flags().StringVarP(&kind, "kind", "k", string(widget.KindPopup), fmt.Sprintf("widget kind (%s)", kindNames()))
	return lintCmd
}
