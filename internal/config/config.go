// Package config loads the server configuration from an HCL file and
// applies defaults for everything left unset, so a missing file is the
// same as an empty one.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/insrapperswil/antimony/internal/ctxlog"
)

// Defaults used when the file or its fields are absent.
const (
	DefaultListenAddr      = ":3000"
	DefaultNotificationCap = 20
	DefaultTickMinSeconds  = 6
	DefaultTickMaxSeconds  = 10
)

// File is the on-disk shape: a single server block.
type File struct {
	Server *ServerBlock `hcl:"server,block"`
}

// ServerBlock holds the tunables of the mock server.
type ServerBlock struct {
	ListenAddr      string `hcl:"listen_addr,optional"`
	FixturesDir     string `hcl:"fixtures_dir,optional"`
	NotificationCap int    `hcl:"notification_cap,optional"`
	TickMinSeconds  int    `hcl:"tick_min_seconds,optional"`
	TickMaxSeconds  int    `hcl:"tick_max_seconds,optional"`
}

// Config is the resolved configuration with all defaults applied.
type Config struct {
	ListenAddr      string
	FixturesDir     string
	NotificationCap int
	TickMin         time.Duration
	TickMax         time.Duration
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr:      DefaultListenAddr,
		NotificationCap: DefaultNotificationCap,
		TickMin:         DefaultTickMinSeconds * time.Second,
		TickMax:         DefaultTickMaxSeconds * time.Second,
	}
}

// Load reads and resolves a configuration file. An empty path yields the
// defaults without touching the filesystem.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading configuration file.", "path", path)

	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var file File
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return cfg, fmt.Errorf("failed to decode config file %q: %w", path, err)
	}
	if file.Server == nil {
		return cfg, nil
	}

	s := file.Server
	if s.ListenAddr != "" {
		cfg.ListenAddr = s.ListenAddr
	}
	cfg.FixturesDir = s.FixturesDir
	if s.NotificationCap > 0 {
		cfg.NotificationCap = s.NotificationCap
	}
	if s.TickMinSeconds > 0 {
		cfg.TickMin = time.Duration(s.TickMinSeconds) * time.Second
	}
	if s.TickMaxSeconds > 0 {
		cfg.TickMax = time.Duration(s.TickMaxSeconds) * time.Second
	}
	if cfg.TickMax < cfg.TickMin {
		return cfg, fmt.Errorf("tick_max_seconds must not be below tick_min_seconds")
	}
	return cfg, nil
}
