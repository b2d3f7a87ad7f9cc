package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().String("namespace", "agentflow", "namespace used in storage")
	cmd.Flags().String("sqlite-path", "agentflow.db", "sqlite database file, :memory: for a transient database")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage: redis, sqlite or memory")
	cmd.Flags().Int("max-node-visits", config.DEFAULT_MAX_NODE_VISITS, "maximum nodes visited in one traversal")
	cmd.Flags().Int("max-redirect-repeats", config.DEFAULT_MAX_REDIRECT_REPEATS, "maximum redirects between the same pair of flows in one traversal")
	cmd.Flags().Bool("debug-trace", false, "return the traversal trace in api responses")
	cmd.Flags().Int("stream-buffer", 256, "buffered frames of the live stream hub")
	cmd.Flags().Int("stream-ping-interval", 30, "seconds between websocket pings")
	cmd.Flags().String("analytics-file", "", "file analytics events are written to, empty disables analytics")
	cmd.Flags().String("log-level", "info", "log level")
	viper.SetEnvPrefix("AGENTFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	// .env is optional
	_ = godotenv.Load()

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.SqliteConfig.Path = viper.GetString("sqlite-path")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.ExecutorConfig = config.ExecutorConfig{
		MaxNodeVisits:      viper.GetInt("max-node-visits"),
		MaxRedirectRepeats: viper.GetInt("max-redirect-repeats"),
		DebugTrace:         viper.GetBool("debug-trace"),
	}.WithDefaults()
	c.cfg.StreamConfig = config.StreamConfig{
		BufferSize:   viper.GetInt("stream-buffer"),
		PingInterval: viper.GetInt("stream-ping-interval"),
	}
	c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{CollectorType: analytics.NOOP_DATA_COLLECTOR}
	if file := viper.GetString("analytics-file"); file != "" {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{FileName: file, CollectorType: analytics.LOG_FILE_DATA_COLLECTOR}
	}
	c.cfg.LogLevel = viper.GetString("log-level")
	return logger.Init(c.cfg.LogLevel)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "agentflow",
		Short:   "conversation flow executor",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
