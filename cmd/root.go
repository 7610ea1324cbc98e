// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ariadriver/internal/config"
	"github.com/xkilldash9x/ariadriver/internal/observability"
)

var (
	cfgFile    string
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "ariadriver",
	Short:         "ariadriver verifies ARIA widgets by driving them in a live browser.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. Initialize configuration loading (Viper)
		if err := initializeConfig(); err != nil {
			basicLogger, _ := zap.NewDevelopment()
			basicLogger.Error("Failed to initialize configuration", zap.Error(err))
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		// 2. Unmarshal, validate and install the configuration
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			if cfg == nil {
				cfg = config.NewDefaultConfig()
			}
			observability.InitializeLogger(cfg.Logger)
			return err
		}

		// 3. Initialize the logger
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting ariadriver", zap.String("version", Version))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

// Execute runs the root command with a context passed from main.go for
// graceful shutdown.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// A cancelled context is an expected shutdown, not a failure worth logging.
		if ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./ariadriver.yaml)")
	flags.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	flags.String("endpoint", "", "DevTools endpoint of a running browser (ws:// or http://); launches one when empty")
	flags.Int("patience", config.DefaultPatienceMs, "milliseconds allowed for any state change to appear")
	flags.Bool("headless", true, "run a launched browser headless")
	_ = viper.BindPFlag("driver.endpoint", flags.Lookup("endpoint"))
	_ = viper.BindPFlag("driver.patience_ms", flags.Lookup("patience"))
	_ = viper.BindPFlag("browser.headless", flags.Lookup("headless"))

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newCountCmd())
	rootCmd.AddCommand(newLintCmd())
	rootCmd.AddCommand(versionCmd)
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	// Set default values so the app can run with a minimal config.
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("ariadriver")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ARIADRIVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The endpoint is commonly injected by CI without the structured name.
	_ = viper.BindEnv("driver.endpoint", "ARIADRIVER_ENDPOINT", "ARIADRIVER_DRIVER_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; parse errors are not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
