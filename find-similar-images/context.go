package main

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artyom/imgmatch/internal/config"
	"github.com/artyom/imgmatch/internal/logging"
)

type commandContext struct {
	configFlag string
	logLevel   string
	logFormat  string
	noColor    bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevel != "" {
			cfg.Logging.Level = c.logLevel
		}
		if c.logFormat != "" {
			cfg.Logging.Format = c.logFormat
		}
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// logger builds the command logger on the command's stderr.
func (c *commandContext) logger(cmd *cobra.Command, component string) (zerolog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return zerolog.Nop(), err
	}
	w := cmd.ErrOrStderr()
	l, err := logging.NewFromConfig(cfg, w, c.noColor || !isTerminal(w))
	if err != nil {
		return zerolog.Nop(), err
	}
	return logging.Named(l, component), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
