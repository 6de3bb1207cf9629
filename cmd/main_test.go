package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depth_spider/internal/config"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := rootCommand()

	for _, name := range []string{"serve", "crawl", "refresh"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	crawl, _, err := root.Find([]string{"crawl"})
	require.NoError(t, err)
	assert.Error(t, crawl.Args(crawl, []string{"https://example.com"}))
	assert.NoError(t, crawl.Args(crawl, []string{"https://example.com", "2"}))
}

func TestConfigureLogger(t *testing.T) {
	logger = logrus.NewEntry(logrus.New())
	l := logrus.New()

	configureLogger(l, config.LogConfig{Level: "warn", Format: "text"})
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)

	configureLogger(l, config.LogConfig{Level: "loud", Format: "json"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}
