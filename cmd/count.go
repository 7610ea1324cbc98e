package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/ariadriver/internal/config"
	"github.com/xkilldash9x/ariadriver/internal/observability"
)

func newCountCmd() *cobra.Command {
	var offline bool

	countCmd := &cobra.Command{
		Use:   "count <url> <selector>",
		Short: "Print how many elements match a selector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, selector := args[0], args[1]
			ctx := cmd.Context()

			components, err := initializeComponents(ctx, config.Get(), observability.GetLogger(), componentOptions{Offline: offline})
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			if err := components.Driver.Get(ctx, url); err != nil {
				return fmt.Errorf("failed to load %s: %w", url, err)
			}
			n, err := components.Driver.Count(ctx, selector)
			if err != nil {
				return err
			}
			return Report{Selector: selector, Count: &n}.Write(cmd.OutOrStdout(), jsonOutput)
		},
	}

	countCmd.Flags().BoolVar(&offline, "offline", false, "parse the page statically instead of launching a browser")
	return countCmd
}
