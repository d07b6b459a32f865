// Package capabilities supplies the read-only metadata the prompt is built
// from: theme variables, connector hints, agent capabilities, script names
// and extra instructions. Every call returns a fresh snapshot.
package capabilities

import (
	"context"
	"maps"
	"slices"
)

type Connector struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type Agent struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type ThemeSource interface {
	ThemeVariables(ctx context.Context) (map[string]string, error)
}

type ConnectorSource interface {
	Connectors(ctx context.Context) ([]Connector, error)
}

type AgentSource interface {
	Agents(ctx context.Context) ([]Agent, error)
}

type ScriptSource interface {
	ScriptNames(ctx context.Context) ([]string, error)
}

type InstructionSource interface {
	Instructions(ctx context.Context) ([]string, error)
}

// Snapshot is everything gathered for one transform.
type Snapshot struct {
	Theme        map[string]string
	Connectors   []Connector
	Agents       []Agent
	Scripts      []string
	Instructions []string
}

// Sources bundles the collaborators; nil members contribute nothing.
type Sources struct {
	Theme        ThemeSource
	Connectors   ConnectorSource
	Agents       AgentSource
	Scripts      ScriptSource
	Instructions InstructionSource
}

// Collect asks every configured source for its snapshot.
func (s Sources) Collect(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if s.Theme != nil {
		if snap.Theme, err = s.Theme.ThemeVariables(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	if s.Connectors != nil {
		if snap.Connectors, err = s.Connectors.Connectors(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	if s.Agents != nil {
		if snap.Agents, err = s.Agents.Agents(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	if s.Scripts != nil {
		if snap.Scripts, err = s.Scripts.ScriptNames(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	if s.Instructions != nil {
		if snap.Instructions, err = s.Instructions.Instructions(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// Static serves fixed values, typically straight from configuration.
type Static struct {
	Theme           map[string]string
	ConnectorHints  []Connector
	AgentHints      []Agent
	Scripts         []string
	ExtraGuidelines []string
}

func (s *Static) ThemeVariables(context.Context) (map[string]string, error) {
	return maps.Clone(s.Theme), nil
}

func (s *Static) Connectors(context.Context) ([]Connector, error) {
	return slices.Clone(s.ConnectorHints), nil
}

func (s *Static) Agents(context.Context) ([]Agent, error) {
	return slices.Clone(s.AgentHints), nil
}

func (s *Static) ScriptNames(context.Context) ([]string, error) {
	return slices.Clone(s.Scripts), nil
}

func (s *Static) Instructions(context.Context) ([]string, error) {
	return slices.Clone(s.ExtraGuidelines), nil
}
