package main

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/lumen-ai/conductor/internal/config"
	"github.com/lumen-ai/conductor/internal/planner"
	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/internal/security"
	"github.com/lumen-ai/conductor/internal/skills"
	"github.com/lumen-ai/conductor/internal/validate"
)

// pipeline bundles the wired components a command needs to serve requests.
type pipeline struct {
	Registry  *registry.Registry
	Validator *validate.Engine
	Planner   *planner.Planner
	Security  *security.Manager
	Client    *planner.Client
}

// createClient creates the Anthropic client, or nil when no credentials are
// configured. A nil client degrades the planner and responder to their
// static fallbacks rather than failing the command.
func createClient(cfg *config.Config) (*planner.Client, error) {
	if !cfg.Anthropic.UseBedrock {
		if _, err := config.ResolveAPIKey(cfg); err != nil {
			return nil, nil
		}
	}

	apiKey, _ := config.ResolveAPIKey(cfg)
	client, err := planner.NewClient(planner.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// createPipeline wires the registry, validation engine, planner, and
// security manager from configuration.
func createPipeline(cfg *config.Config) (*pipeline, error) {
	client, err := createClient(cfg)
	if err != nil {
		return nil, err
	}

	providers := skills.Providers{}
	if client != nil {
		providers.Generate = &apiGenerator{client: client}
	}

	reg := registry.New()
	if err := skills.RegisterBuiltins(reg, providers); err != nil {
		return nil, fmt.Errorf("register builtin skills: %w", err)
	}

	engine := validate.New(reg)

	plannerOpts := []planner.Option{
		planner.WithTimeout(cfg.Planner.Timeout),
		planner.WithConfidenceThreshold(cfg.Planner.ConfidenceThreshold),
		planner.WithCache(planner.NewCache(cfg.Planner.CacheSize, cfg.Planner.CacheTTL)),
	}
	if cfg.Planner.RateLimit > 0 {
		plannerOpts = append(plannerOpts, planner.WithRateLimit(cfg.Planner.RateLimit, 1))
	}
	if cfg.Planner.CachePath != "" {
		store, err := planner.NewStore(cfg.Planner.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open plan store: %w", err)
		}
		plannerOpts = append(plannerOpts, planner.WithStore(store))
	}

	var reasoner planner.Reasoner
	if client != nil {
		reasoner = client
	}
	pln := planner.New(reg, engine, reasoner, plannerOpts...)

	if warmed, err := pln.WarmCache(); err != nil {
		fmt.Printf("Warning: plan cache warm-up failed: %v\n", err)
	} else if warmed > 0 {
		fmt.Printf("Loaded %d cached plans\n", warmed)
	}

	secOpts := []security.ManagerOption{}
	policies := map[string]security.Policy{}
	if cfg.Security.PolicyPath != "" {
		loaded, fallback, err := security.LoadPolicyFile(cfg.Security.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("load security policy: %w", err)
		}
		if loaded != nil {
			policies = loaded
		}
		if fallback != nil {
			secOpts = append(secOpts, security.WithDefaultPolicy(*fallback))
		}
	}
	mgr := security.NewManager(policies, secOpts...)

	return &pipeline{
		Registry:  reg,
		Validator: engine,
		Planner:   pln,
		Security:  mgr,
		Client:    client,
	}, nil
}

const generatePromptFormat = `Answer the user's question using the provided context.
If the context does not contain the answer, say so.

Context:
%s

Question: %s`

// apiGenerator adapts the planning client into the responder's generation
// collaborator.
type apiGenerator struct {
	client *planner.Client
}

func (g *apiGenerator) Generate(ctx context.Context, query, contextText string) (string, float64, error) {
	if contextText == "" {
		contextText = "(no context available)"
	}
	prompt := fmt.Sprintf(generatePromptFormat, contextText, query)
	text, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return "", 0, err
	}
	return text, 0.85, nil
}
