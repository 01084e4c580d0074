package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/crypto"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Multi-tenant WhatsApp Cloud API chatbot",
	Long: `Receives WhatsApp Cloud API webhooks for every tenant, answers customers
with the configured AI model and hands conversations over to humans on request.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Flags first, before any subcommand is added
	initFlags()

	cobra.OnInitialize(initEnvConfig)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	flags.StringP("port", "p", "", "change port number with --port <number> | example: --port=8080")
	flags.BoolP("debug", "d", false, "hide or displaying log with --debug <true/false> | example: --debug=true")
	flags.StringSliceP("basic-auth", "b", nil, "basic auth credential for health and monitoring | -b=yourUsername:yourPassword")
	flags.String("base-path", "", `base path for subpath deployment --base-path <string> | example: --base-path="/bot"`)
	flags.StringSlice("trusted-proxies", nil, `trusted proxy IP ranges --trusted-proxies <string> | example: --trusted-proxies="10.0.0.0/8"`)
	flags.String("db-driver", "", `database driver --db-driver <sqlite|postgres>`)
	flags.String("db-name", "", `sqlite file or postgres database name --db-name <string> | example: --db-name="storages/chatbot.db"`)
	flags.String("tenants-file", "", `serve tenants from a YAML file instead of the database --tenants-file <path>`)
	flags.Int("message-workers", 0, `number of concurrent message workers --message-workers <number> | example: --message-workers=30 (default: 20)`)
	flags.Int("message-queue-size", 0, `queue size per message worker --message-queue-size <number> | example: --message-queue-size=1500 (default: 1000)`)

	bind := map[string]string{
		"app_port":                  "port",
		"app_debug":                 "debug",
		"app_basic_auth":            "basic-auth",
		"app_base_path":             "base-path",
		"app_trusted_proxies":       "trusted-proxies",
		"db_driver":                 "db-driver",
		"db_name":                   "db-name",
		"tenants_file":              "tenants-file",
		"message_worker_pool_size":  "message-workers",
		"message_worker_queue_size": "message-queue-size",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// initEnvConfig loads .env, builds core/config from the environment and
// lets explicit flags win over it.
func initEnvConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("[CONFIG] failed to load .env file")
	}
	viper.AutomaticEnv()

	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] failed to load configuration: %v", err)
	}

	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if v := viper.GetStringSlice("app_basic_auth"); len(v) > 0 {
		cfg.App.BasicAuth = splitList(v)
	}
	if v := viper.GetString("app_base_path"); v != "" {
		cfg.App.BasePath = v
	}
	if v := viper.GetStringSlice("app_trusted_proxies"); len(v) > 0 {
		cfg.App.TrustedProxies = splitList(v)
	}
	if v := viper.GetString("db_driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("db_name"); v != "" {
		cfg.Database.Name = v
	}
	if v := viper.GetString("tenants_file"); v != "" {
		cfg.App.TenantsFile = v
	}
	if n := viper.GetInt("message_worker_pool_size"); n > 0 {
		cfg.WorkerPool.Size = n
	}
	if n := viper.GetInt("message_worker_queue_size"); n > 0 {
		cfg.WorkerPool.QueueSize = n
	}

	initLogging(cfg.App)
	crypto.SetEncryptionKey(cfg.Security.SecretKey)
	if cfg.Security.SecretKey == "" {
		logrus.Warn("[CONFIG] APP_SECRET_KEY is empty, tenant secrets are stored in plain text")
	}
}

func initLogging(app coreconfig.AppConfig) {
	if strings.EqualFold(app.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(app.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if app.Debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}

// splitList accepts both repeated flags and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
