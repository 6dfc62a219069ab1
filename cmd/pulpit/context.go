package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"pulpit/internal/api"
	"pulpit/internal/config"
	"pulpit/internal/daemonrun"
	"pulpit/internal/logging"
	"pulpit/internal/store"
)

// daemonProbeTimeout bounds the status call used to decide whether a daemon
// is answering.
const daemonProbeTimeout = 2 * time.Second

type commandContext struct {
	configFlag *string
	apiFlag    *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
		verbose:    verbose,
	}
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
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) logger() *slog.Logger {
	verbose := c.verbose != nil && *c.verbose
	return logging.NewCLI(c.configValue(), verbose)
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if value := strings.TrimSpace(*c.apiFlag); value != "" {
			return value
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) apiClient() *api.Client {
	token := ""
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Paths.APIToken
	}
	return api.NewClient(c.apiAddress(), token)
}

// reachableClient returns a client when the daemon answers a status probe.
func (c *commandContext) reachableClient(ctx context.Context) (*api.Client, *api.DaemonStatus) {
	client := c.apiClient()
	probeCtx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	status, err := client.Status(probeCtx)
	if err != nil {
		return nil, nil
	}
	return client, &status
}

// withClient runs fn against a daemon that must be running.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(*api.Client) error) error {
	client, _ := c.reachableClient(cmd.Context())
	if client == nil {
		return wrapDialError(c.apiAddress())
	}
	return fn(client)
}

// withStore prefers the daemon API and falls back to opening the catalog
// directly. Exactly one of client and st is non-nil.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(client *api.Client, st *store.Store) error) error {
	if client, _ := c.reachableClient(cmd.Context()); client != nil {
		return fn(client, nil)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()
	return fn(nil, st)
}

// withRuntime wires the full service graph in-process for one-shot commands.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := daemonrun.Build(cmd.Context(), cfg, c.logger(), nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func wrapDialError(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("connect to daemon: %w", api.ErrDaemonUnavailable)
	}
	return fmt.Errorf("connect to daemon: no daemon answered at %s; start it with `pulpit daemon run`", address)
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
