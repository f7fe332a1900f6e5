// Package cmd implements the metastage CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/metastage/internal/config"
	"github.com/agentstation/metastage/internal/transport"
	"github.com/agentstation/metastage/pkg/logging"
	"github.com/agentstation/metastage/pkg/session"
)

var (
	configFile string
	verbose    bool
	quiet      bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "metastage",
	Short: "Staged metadata change review",
	Long: `Metastage previews staged metadata changes against a metadata service,
lets you layer draft overrides on top of the proposed values, and submits
the resulting patch set in one batch.

Point it at the service's GraphQL endpoint via METASTAGE_UPSTREAM_ENDPOINT
or --upstream-endpoint; an auth token goes in METASTAGE_UPSTREAM_TOKEN.`,
}

// Execute runs the root command with signal-aware context.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.metastage.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "warnings and errors only")
	rootCmd.PersistentFlags().String("upstream-endpoint", "", "metadata service GraphQL endpoint")
	rootCmd.PersistentFlags().String("upstream-token", "", "metadata service auth token")
	rootCmd.PersistentFlags().Duration("upstream-timeout", 30*time.Second, "upstream request timeout")

	for _, flag := range []string{"upstream-endpoint", "upstream-token", "upstream-timeout"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("Failed to bind %s flag: %v", flag, err))
		}
	}
}

// initConfig reads the config file and environment variables.
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".metastage")
	}

	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	configureLogging()
}

// configureLogging sets the log level from flags and environment.
func configureLogging() {
	level := zerolog.InfoLevel
	if verbose || viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	if quiet || viper.GetBool("quiet") {
		level = zerolog.WarnLevel
	}
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(envLevel); err == nil {
			level = parsed
		}
	}
	logging.SetLevel(level)
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		if err := godotenv.Load(envFile); err == nil && verbose {
			fmt.Fprintf(os.Stderr, "Loaded %s\n", envFile)
		}
	}
}

// newSession builds a review session against the configured upstream.
func newSession() (*session.Session, error) {
	up, err := config.ResolveUpstream()
	if err != nil {
		return nil, err
	}

	opts := []transport.Option{transport.WithTimeout(up.Timeout)}
	if up.Token != "" {
		opts = append(opts, transport.WithAuth(transport.TokenAuth{Token: up.Token}))
	}
	client := transport.New(up.Endpoint, opts...)

	return session.New(client), nil
}
