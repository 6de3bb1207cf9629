package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"depth_spider/internal/app"
	"depth_spider/internal/config"
)

var (
	appName = "depth-spider"
	appSHA  = "latest-app-git-sha" // Populated by the compiler at the linking stage.
	logger  *logrus.Entry

	cfgFile string
	debug   bool
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSHA,
		"host": host,
	})

	if err := rootCommand().Execute(); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		_ = os.Stderr.Sync()

		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Depth-bounded web crawler with a stored link graph",
		Version:       appSHA,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	root.AddCommand(serveCommand(), crawlCommand(), refreshCommand())

	return root
}

// loadConfig reads the config and applies its log settings to the root logger.
func loadConfig() (*config.SpiderConfig, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	configureLogger(logger.Logger, cfg.Log)
	return cfg, nil
}

func configureLogger(l *logrus.Logger, cfg config.LogConfig) {
	if strings.EqualFold(cfg.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)
}

func newApp() (*app.SpiderApp, *config.SpiderConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	spiderApp, err := app.NewSpiderApp(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return spiderApp, cfg, nil
}
