package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scheinicam/internal/admin"
	"scheinicam/internal/auth"
	"scheinicam/internal/catalog"
	"scheinicam/internal/config"
	"scheinicam/internal/gateway"
	"scheinicam/internal/logging"
	"scheinicam/internal/recording"
	"scheinicam/internal/sessionstore"
)

const (
	annotationSkipConfig  = "skipConfigLoad"
	annotationRequireAuth = "requireAuth"
)

var errNotLoggedIn = errors.New("not logged in; run `camctl login` first")

type contextOption func(*commandContext)

// withTicks replaces the lockout countdown clock.
func withTicks(source auth.TickSource) contextOption {
	return func(c *commandContext) {
		c.ticks = source
	}
}

type commandContext struct {
	configFlag *string
	formatFlag *string
	urlFlag    *string
	ticks      auth.TickSource

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
	closeLog   func() error
}

func newCommandContext(configFlag, formatFlag, urlFlag *string, opts ...contextOption) *commandContext {
	c := &commandContext{
		configFlag: configFlag,
		formatFlag: formatFlag,
		urlFlag:    urlFlag,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if override := c.urlOverride(); override != "" {
			parsed, err := url.Parse(override)
			if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				c.configErr = fmt.Errorf("--url must be an http(s) URL, got %q", override)
				return
			}
			cfg.Server.BaseURL = strings.TrimRight(override, "/")
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) urlOverride() string {
	if c.urlFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.urlFlag)
}

func (c *commandContext) loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.closeLog, c.loggerErr = logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	})
	return c.logger, c.loggerErr
}

// close releases the daily log file once the command has finished.
func (c *commandContext) close() {
	if c.closeLog == nil {
		return
	}
	if err := c.closeLog(); err != nil && c.logger != nil {
		c.logger.Debug("close log file failed", logging.Error(err))
	}
	c.closeLog = nil
}

func (c *commandContext) gatewayClient(cmd *cobra.Command) (*gateway.Client, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.loggerFor(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := gateway.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}

// withSession restores the auth session for the duration of fn.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(*auth.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, logger, err := c.gatewayClient(cmd)
	if err != nil {
		return err
	}
	store, err := sessionstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	opts := []auth.Option{auth.WithLogger(logger)}
	if c.ticks != nil {
		opts = append(opts, auth.WithTicks(c.ticks))
	}
	session := auth.New(cmd.Context(), client, store, opts...)
	defer session.Close()
	return fn(session)
}

func (c *commandContext) requireAuthenticated(cmd *cobra.Command) error {
	return c.withSession(cmd, func(session *auth.Session) error {
		if !session.IsAuthenticated() {
			return errNotLoggedIn
		}
		return nil
	})
}

func (c *commandContext) recordingMonitor(cmd *cobra.Command) (*recording.Monitor, error) {
	client, logger, err := c.gatewayClient(cmd)
	if err != nil {
		return nil, err
	}
	return recording.New(client, recording.WithLogger(logger)), nil
}

func (c *commandContext) videoCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	client, logger, err := c.gatewayClient(cmd)
	if err != nil {
		return nil, err
	}
	return catalog.New(client, catalog.WithLogger(logger), catalog.WithLocale(c.config.LocaleTag())), nil
}

func (c *commandContext) adminPanel(cmd *cobra.Command) (*admin.Panel, error) {
	client, logger, err := c.gatewayClient(cmd)
	if err != nil {
		return nil, err
	}
	return admin.New(client, admin.WithLogger(logger)), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	return hasAnnotation(cmd, annotationSkipConfig)
}

func requiresAuth(cmd *cobra.Command) bool {
	return hasAnnotation(cmd, annotationRequireAuth)
}

func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations[key] == "true" {
			return true
		}
	}
	return false
}

func authRequired() map[string]string {
	return map[string]string{annotationRequireAuth: "true"}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
