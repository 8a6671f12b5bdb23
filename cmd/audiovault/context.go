package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"audiovault/internal/catalog"
	"audiovault/internal/config"
	"audiovault/internal/filestore"
	"audiovault/internal/ingest"
	"audiovault/internal/logging"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger writes to stderr only; offline commands stay quiet unless
// --verbose is set.
func (c *commandContext) cliLogger(cfg *config.Config) *slog.Logger {
	level := "warn"
	if c.verboseFlag != nil && *c.verboseFlag {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// localRuntime is the catalog and pipeline opened directly by an offline
// command, bypassing the daemon.
type localRuntime struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *catalog.Store
	pipeline *ingest.Pipeline
}

func (c *commandContext) withRuntime(fn func(*localRuntime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := c.cliLogger(cfg)
	store, err := catalog.Open(cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	files, err := filestore.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}
	return fn(&localRuntime{
		cfg:      cfg,
		logger:   logger,
		catalog:  store,
		pipeline: ingest.New(cfg, files, store, logger),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
