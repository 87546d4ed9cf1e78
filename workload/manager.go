//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workload

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/streetrace-ai/streetrace-go/compaction"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/tool/provider"
)

// DefaultName is the alias that resolves to the host's built-in coding
// agent, case-insensitively.
const DefaultName = "default"

// dirBlocklist names directories never descended into during
// discovery: build outputs and dependency caches.
var dirBlocklist = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"venv":         true,
}

// Location is one source of workload definitions, searched in priority
// order.
type Location interface {
	// Name identifies the location in logs and definitions.
	Name() string

	discover(ctx context.Context, m *Manager) ([]Definition, error)
	load(ctx context.Context, m *Manager, def Definition) (Workload, error)
}

// DirLocation discovers YAML agent cards under a directory tree.
type DirLocation struct {
	path string
}

// NewDirLocation creates a filesystem location.
func NewDirLocation(path string) *DirLocation {
	return &DirLocation{path: path}
}

// Name implements Location.
func (d *DirLocation) Name() string { return d.path }

func (d *DirLocation) discover(_ context.Context, m *Manager) ([]Definition, error) {
	var defs []Definition
	err := filepath.WalkDir(d.path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			name := entry.Name()
			if path != d.path && (strings.HasPrefix(name, ".") || dirBlocklist[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		def, ok := m.yaml.identify(path)
		if !ok {
			return nil
		}
		def.Location = d.path
		defs = append(defs, def)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.path, err)
	}
	return defs, nil
}

func (d *DirLocation) load(ctx context.Context, m *Manager, def Definition) (Workload, error) {
	ag, err := m.yaml.load(ctx, def)
	if err != nil {
		return nil, err
	}
	return NewAgentWorkload(def.Name, ag, m.service, m.runner), nil
}

// Manager discovers workloads across ordered locations and
// instantiates them by name.
type Manager struct {
	locations    []Location
	yaml         *yamlLoader
	service      session.Service
	runner       *compaction.Runner
	buildDefault AgentBuilder

	// cache maps lower-cased names to their winning definition; order
	// preserves discovery order for listing.
	cache map[string]Definition
	order []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	locations    []Location
	modelFactory model.Factory
	defaultModel string
	provider     *provider.Provider
	service      session.Service
	runner       *compaction.Runner
	buildDefault AgentBuilder
}

// WithLocations sets the search locations in priority order.
func WithLocations(locations ...Location) ManagerOption {
	return func(o *managerOptions) { o.locations = append(o.locations, locations...) }
}

// WithModelFactory sets the model constructor used by card loading.
func WithModelFactory(f model.Factory) ManagerOption {
	return func(o *managerOptions) { o.modelFactory = f }
}

// WithDefaultModel sets the model used by cards that name none.
func WithDefaultModel(name string) ManagerOption {
	return func(o *managerOptions) { o.defaultModel = name }
}

// WithToolProvider sets the tool resolver used by card loading.
func WithToolProvider(p *provider.Provider) ManagerOption {
	return func(o *managerOptions) { o.provider = p }
}

// WithSessionService sets the service that persists run events.
func WithSessionService(svc session.Service) ManagerOption {
	return func(o *managerOptions) { o.service = svc }
}

// WithCompactionRunner wraps agent workload runs with token-aware
// compaction.
func WithCompactionRunner(r *compaction.Runner) ManagerOption {
	return func(o *managerOptions) { o.runner = r }
}

// WithDefaultWorkload sets the builder behind the "default" alias.
func WithDefaultWorkload(build AgentBuilder) ManagerOption {
	return func(o *managerOptions) { o.buildDefault = build }
}

// NewManager creates a workload manager.
func NewManager(opts ...ManagerOption) *Manager {
	var cfg managerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Manager{
		locations: cfg.locations,
		yaml: &yamlLoader{
			modelFactory: cfg.modelFactory,
			defaultModel: cfg.defaultModel,
			provider:     cfg.provider,
			cardPaths:    make(map[string]string),
		},
		service:      cfg.service,
		runner:       cfg.runner,
		buildDefault: cfg.buildDefault,
		cache:        make(map[string]Definition),
	}
}

// Discover walks every location in priority order. The first location
// to produce a name claims it; later duplicates are ignored.
func (m *Manager) Discover(ctx context.Context) error {
	m.cache = make(map[string]Definition)
	m.order = m.order[:0]
	m.yaml.cardPaths = make(map[string]string)

	for _, loc := range m.locations {
		defs, err := loc.discover(ctx, m)
		if err != nil {
			log.Warnf("discover %s: %v", loc.Name(), err)
			continue
		}
		for _, def := range defs {
			key := strings.ToLower(def.Name)
			if prior, ok := m.cache[key]; ok {
				log.Debugf("workload %q from %s shadowed by %s",
					def.Name, loc.Name(), prior.Location)
				continue
			}
			m.cache[key] = def
			m.order = append(m.order, key)
			if def.Format == FormatYAML {
				m.yaml.cardPaths[key] = def.SourcePath
			}
		}
	}
	return nil
}

// List returns the discovered definitions in discovery order.
func (m *Manager) List() []Definition {
	defs := make([]Definition, 0, len(m.order))
	for _, key := range m.order {
		defs = append(defs, m.cache[key])
	}
	return defs
}

// CreateWorkload resolves a name case-insensitively against the
// discovery cache and instantiates it. The caller owns the returned
// workload and must close it; WithWorkload handles that automatically.
func (m *Manager) CreateWorkload(ctx context.Context, name string) (Workload, error) {
	if strings.EqualFold(name, DefaultName) {
		if m.buildDefault == nil {
			return nil, fmt.Errorf("no default workload configured")
		}
		ag, err := m.buildDefault(ctx)
		if err != nil {
			return nil, fmt.Errorf("build default workload: %w", err)
		}
		return NewAgentWorkload(DefaultName, ag, m.service, m.runner), nil
	}
	def, ok := m.cache[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("workload %q not found", name)
	}
	for _, loc := range m.locations {
		if loc.Name() == def.Location {
			return loc.load(ctx, m, def)
		}
	}
	return nil, fmt.Errorf("workload %q: location %s no longer attached", name, def.Location)
}

// WithWorkload runs fn with the named workload, closing it
// unconditionally afterwards, including when fn fails.
func (m *Manager) WithWorkload(ctx context.Context, name string, fn func(w Workload) error) error {
	w, err := m.CreateWorkload(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			log.Warnf("close workload %s: %v", w.Name(), cerr)
		}
	}()
	return fn(w)
}
