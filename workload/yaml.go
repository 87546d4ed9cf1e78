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
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/streetrace-ai/streetrace-go/agent/llmagent"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/tool"
	"github.com/streetrace-ai/streetrace-go/tool/provider"
)

// nameRe constrains workload names to identifier shape.
var nameRe = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]*$`)

// envRe matches ${VAR} and ${VAR:-default} expansions.
var envRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// card is the declarative YAML agent definition.
type card struct {
	Name              string            `yaml:"name"`
	Description       string            `yaml:"description"`
	Model             string            `yaml:"model"`
	Instruction       string            `yaml:"instruction"`
	GlobalInstruction string            `yaml:"global_instruction"`
	Prompt            string            `yaml:"prompt"`
	Tools             []string          `yaml:"tools"`
	SubAgents         []string          `yaml:"sub_agents"`
	OutputSchema      map[string]any    `yaml:"output_schema"`
	Attributes        map[string]string `yaml:"attributes"`
}

// validate enforces the card's structural rules.
func (c *card) validate() error {
	if !nameRe.MatchString(c.Name) {
		return fmt.Errorf("invalid workload name %q", c.Name)
	}
	if len(c.OutputSchema) > 0 && len(c.Tools) > 0 {
		return fmt.Errorf("workload %q: output_schema and tools are mutually exclusive", c.Name)
	}
	if len(c.OutputSchema) > 0 && len(c.SubAgents) > 0 {
		return fmt.Errorf("workload %q: output_schema and sub_agents are mutually exclusive", c.Name)
	}
	return nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} in every string
// field except the name, which must stay stable across environments.
func (c *card) expandEnv() {
	c.Description = expandEnvString(c.Description)
	c.Model = expandEnvString(c.Model)
	c.Instruction = expandEnvString(c.Instruction)
	c.GlobalInstruction = expandEnvString(c.GlobalInstruction)
	c.Prompt = expandEnvString(c.Prompt)
	for i := range c.Tools {
		c.Tools[i] = expandEnvString(c.Tools[i])
	}
	for i := range c.SubAgents {
		c.SubAgents[i] = expandEnvString(c.SubAgents[i])
	}
	for k, v := range c.Attributes {
		c.Attributes[k] = expandEnvString(v)
	}
}

func expandEnvString(s string) string {
	return envRe.ReplaceAllStringFunc(s, func(m string) string {
		groups := envRe.FindStringSubmatch(m)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[2]
	})
}

// yamlLoader materializes agent workloads from YAML cards. Sub-agent
// references resolve against the discovery cache, so a card can compose
// cards from any location that won the name.
type yamlLoader struct {
	modelFactory model.Factory
	defaultModel string
	provider     *provider.Provider

	// cardPaths maps lower-cased card names to their source files. The
	// manager fills it during discovery.
	cardPaths map[string]string
}

// identify reports whether the path is a YAML card and returns its
// definition.
func (l *yamlLoader) identify(path string) (Definition, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return Definition{}, false
	}
	c, err := readCard(path)
	if err != nil {
		return Definition{}, false
	}
	return Definition{
		Name:        c.Name,
		Description: c.Description,
		Format:      FormatYAML,
		SourcePath:  path,
	}, true
}

func readCard(path string) (*card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c card
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse card %s: %w", path, err)
	}
	c.expandEnv()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// load builds the workload behind a card.
func (l *yamlLoader) load(ctx context.Context, def Definition) (*llmagent.LLMAgent, error) {
	return l.buildAgent(ctx, def.SourcePath, map[string]bool{})
}

func (l *yamlLoader) buildAgent(ctx context.Context, path string, visiting map[string]bool) (*llmagent.LLMAgent, error) {
	c, err := readCard(path)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(c.Name)
	if visiting[key] {
		return nil, fmt.Errorf("workload %q: sub-agent cycle", c.Name)
	}
	visiting[key] = true
	defer delete(visiting, key)

	if l.modelFactory == nil {
		return nil, fmt.Errorf("workload %q: no model factory configured", c.Name)
	}
	modelName := c.Model
	if modelName == "" {
		modelName = l.defaultModel
	}
	m, err := l.modelFactory(modelName)
	if err != nil {
		return nil, fmt.Errorf("workload %q: %w", c.Name, err)
	}

	var tools []tool.CallableTool
	for _, ref := range c.Tools {
		resolved, err := l.provider.Resolve(ctx, parseToolRef(ref))
		if err != nil {
			return nil, fmt.Errorf("workload %q: tool %q: %w", c.Name, ref, err)
		}
		tools = append(tools, resolved...)
	}

	var subAgents []*llmagent.LLMAgent
	for _, subName := range c.SubAgents {
		subPath, ok := l.cardPaths[strings.ToLower(subName)]
		if !ok {
			return nil, fmt.Errorf("workload %q: unknown sub-agent %q", c.Name, subName)
		}
		sub, err := l.buildAgent(ctx, subPath, visiting)
		if err != nil {
			return nil, err
		}
		subAgents = append(subAgents, sub)
	}

	instruction := strings.TrimSpace(strings.Join(
		nonEmpty(c.GlobalInstruction, c.Instruction, c.Prompt), "\n\n"))

	opts := []llmagent.Option{
		llmagent.WithDescription(c.Description),
		llmagent.WithInstruction(instruction),
		llmagent.WithModel(m),
		llmagent.WithTools(tools...),
	}
	for _, sub := range subAgents {
		opts = append(opts, llmagent.WithSubAgents(sub))
	}
	return llmagent.New(c.Name, opts...), nil
}

// parseToolRef maps a card tool entry to a provider reference:
// "mcp:<server>" routes through the MCP manager, anything else names a
// host-provided toolset.
func parseToolRef(ref string) provider.Ref {
	if server, ok := strings.CutPrefix(ref, "mcp:"); ok {
		return provider.Ref{Kind: provider.RefMCP, Value: server}
	}
	return provider.Ref{Kind: provider.RefBuiltin, Value: ref}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
