package server

import (
	"context"
	"fmt"
	"os"

	"github.com/insrapperswil/antimony/internal/ctxlog"
	"github.com/insrapperswil/antimony/internal/fsutil"
	"github.com/insrapperswil/antimony/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML-backed seed data the mock server starts from.
// Multiple fixture files merge by concatenation.
type Fixtures struct {
	Users      []model.User   `yaml:"users"`
	Groups     []model.Group  `yaml:"groups"`
	Devices    []model.Device `yaml:"devices"`
	Topologies []SeedTopology `yaml:"topologies"`
}

// SeedTopology is a fixture topology record; the id is assigned at load.
type SeedTopology struct {
	GroupID    string `yaml:"groupId"`
	CreatorID  string `yaml:"creatorId"`
	Definition string `yaml:"definition"`
}

// LoadFixtures reads and merges every .yaml/.yml file under dir.
func LoadFixtures(ctx context.Context, dir string) (*Fixtures, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(dir, ".yaml", ".yml")
	if err != nil {
		return nil, fmt.Errorf("failed to scan fixtures directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no fixture files found under %s", dir)
	}

	merged := &Fixtures{}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture file %s: %w", path, err)
		}
		var fx Fixtures
		if err := yaml.Unmarshal(raw, &fx); err != nil {
			return nil, fmt.Errorf("failed to parse fixture file %s: %w", path, err)
		}
		merged.Users = append(merged.Users, fx.Users...)
		merged.Groups = append(merged.Groups, fx.Groups...)
		merged.Devices = append(merged.Devices, fx.Devices...)
		merged.Topologies = append(merged.Topologies, fx.Topologies...)
		logger.Debug("Fixture file loaded.", "path", path)
	}
	logger.Info("Fixtures loaded.",
		"files", len(files),
		"users", len(merged.Users),
		"groups", len(merged.Groups),
		"topologies", len(merged.Topologies),
	)
	return merged, nil
}

// DefaultFixtures returns the built-in seed data used when no fixtures
// directory is configured.
func DefaultFixtures() *Fixtures {
	return &Fixtures{
		Users: []model.User{
			{ID: "u-admin", Username: "admin", Password: "admin", IsAdmin: true},
			{ID: "u-student", Username: "student", Password: "student"},
		},
		Groups: []model.Group{
			{ID: "g-cldinf", Name: "cldinf", CanWrite: true, CanRun: true},
			{ID: "g-nisec", Name: "nisec", CanWrite: false, CanRun: true},
		},
		Devices: []model.Device{
			{Name: "SR Linux", Kind: "nokia_srlinux", InterfacePattern: "e1-%d", Images: []string{"ghcr.io/nokia/srlinux"}},
			{Name: "Linux host", Kind: "linux", InterfacePattern: "eth%d", Images: []string{"alpine:latest"}},
		},
		Topologies: []SeedTopology{
			{
				GroupID:   "g-cldinf",
				CreatorID: "u-admin",
				Definition: `name: two-node-srl
topology:
  nodes:
    # pos=120,80
    srl1:
      kind: nokia_srlinux
      image: ghcr.io/nokia/srlinux
    # pos=320,80
    srl2:
      kind: nokia_srlinux
      image: ghcr.io/nokia/srlinux
  links:
    - endpoints: ["srl1:e1-1", "srl2:e1-1"]
`,
			},
			{
				GroupID:   "g-nisec",
				CreatorID: "u-admin",
				Definition: `name: single-host
topology:
  nodes:
    host1:
      kind: linux
      image: alpine:latest
`,
			},
		},
	}
}
