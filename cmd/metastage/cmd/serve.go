package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/metastage/internal/config"
	"github.com/agentstation/metastage/internal/server"
	"github.com/agentstation/metastage/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review API server",
	Long: `Serve exposes the review session over HTTP for a browser frontend:
preview fetching and search, draft edits, compiled change inspection, and
batch submission.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "localhost", "listen host")
	serveCmd.Flags().Int("port", 8080, "listen port")
	serveCmd.Flags().String("api-key", "", "require this API key on review endpoints")
	serveCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origins (default all)")
	serveCmd.Flags().Int("rate-limit", 0, "requests per minute per IP, 0 disables")

	for _, flag := range []string{"host", "port", "api-key", "cors-origin", "rate-limit"} {
		if err := viper.BindPFlag("serve."+flag, serveCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Host = viper.GetString("serve.host")
	cfg.Port = viper.GetInt("serve.port")
	cfg.RateLimit = viper.GetInt("serve.rate-limit")
	if origins := viper.GetStringSlice("serve.cors-origin"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	cfg.APIKey = viper.GetString("serve.api-key")
	if cfg.APIKey == "" {
		cfg.APIKey = config.GetString(config.EnvAPIKey)
	}

	srv := server.New(sess, cfg, logging.Default())
	return srv.ListenAndServe(cmd.Context())
}
