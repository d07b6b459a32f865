package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"livepage/internal/prompt"
)

const (
	DefaultMaxRetries      = 2
	DefaultRequestTimeout  = 90 * time.Second
	DefaultInitialInterval = 500 * time.Millisecond
)

// Route sends every model id starting with Prefix to Provider.
type Route struct {
	Prefix   string
	Provider string
}

// Options bound the gateway's retry behaviour.
type Options struct {
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries      int
	RequestTimeout  time.Duration
	InitialInterval time.Duration
	Logger          *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:      DefaultMaxRetries,
		RequestTimeout:  DefaultRequestTimeout,
		InitialInterval: DefaultInitialInterval,
	}
}

// Gateway routes completions to providers by model id prefix.
type Gateway struct {
	routes    []Route
	providers map[string]Provider
	opts      Options
	logger    *slog.Logger
}

// NewGateway validates the routing table. Prefixes must be non-empty and no
// prefix of one provider may overlap a prefix of another.
func NewGateway(routes []Route, providers map[string]Provider, opts Options) (*Gateway, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("at least one route is required")
	}

	table := make([]Route, 0, len(routes))
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		r.Prefix = strings.TrimSpace(r.Prefix)
		r.Provider = strings.TrimSpace(r.Provider)
		if r.Prefix == "" {
			return nil, fmt.Errorf("route for provider %q has an empty prefix", r.Provider)
		}
		if _, ok := providers[r.Provider]; !ok || providers[r.Provider] == nil {
			return nil, fmt.Errorf("route %q targets unknown provider %q", r.Prefix, r.Provider)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true
		table = append(table, r)
	}

	for i, a := range table {
		for _, b := range table[i+1:] {
			if a.Provider == b.Provider {
				continue
			}
			if strings.HasPrefix(a.Prefix, b.Prefix) || strings.HasPrefix(b.Prefix, a.Prefix) {
				return nil, fmt.Errorf("route prefixes %q (%s) and %q (%s) overlap", a.Prefix, a.Provider, b.Prefix, b.Provider)
			}
		}
	}

	sort.SliceStable(table, func(i, j int) bool { return len(table[i].Prefix) > len(table[j].Prefix) })

	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultInitialInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{routes: table, providers: providers, opts: opts, logger: logger}, nil
}

// Resolve returns the route serving modelID, preferring the longest prefix.
func (g *Gateway) Resolve(modelID string) (Route, bool) {
	for _, r := range g.routes {
		if strings.HasPrefix(modelID, r.Prefix) {
			return r, true
		}
	}
	return Route{}, false
}

// Complete sends the payload to the provider serving modelID. Transient
// failures are retried with exponential backoff; every failure is returned as
// a *ProviderError.
func (g *Gateway) Complete(ctx context.Context, modelID string, payload prompt.Payload) (string, error) {
	modelID = strings.TrimSpace(modelID)
	route, ok := g.Resolve(modelID)
	if !ok || modelID == "" {
		return "", &ProviderError{Kind: KindRouting, ModelID: modelID, Err: fmt.Errorf("no provider serves model %q", modelID)}
	}
	provider := g.providers[route.Provider]

	var (
		text    string
		attempt int
	)
	operation := func() error {
		attempt++
		out, err := g.attempt(ctx, provider, route.Provider, modelID, payload)
		if err != nil {
			if err.Transient() {
				return err
			}
			return backoff.Permanent(err)
		}
		text = out
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.opts.InitialInterval
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(g.opts.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		g.logger.Warn("provider attempt failed, retrying",
			"provider", route.Provider, "model", modelID, "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctx.Err() != nil {
			return "", &ProviderError{Kind: KindCanceled, Provider: route.Provider, ModelID: modelID, Err: ctx.Err()}
		}
		var perr *ProviderError
		if errors.As(err, &perr) {
			return "", perr
		}
		return "", asProviderError(err, route.Provider, modelID)
	}
	return text, nil
}

func (g *Gateway) attempt(ctx context.Context, provider Provider, providerID, modelID string, payload prompt.Payload) (string, *ProviderError) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.opts.RequestTimeout)
	defer cancel()

	out, err := provider.Complete(attemptCtx, modelID, payload)
	switch {
	case ctx.Err() != nil:
		return "", &ProviderError{Kind: KindCanceled, Provider: providerID, ModelID: modelID, Err: ctx.Err()}
	case err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return "", &ProviderError{Kind: KindTimeout, Provider: providerID, ModelID: modelID, Err: err}
	case err != nil:
		return "", asProviderError(err, providerID, modelID)
	case strings.TrimSpace(out) == "":
		return "", &ProviderError{Kind: KindMalformed, Provider: providerID, ModelID: modelID, Err: fmt.Errorf("empty completion")}
	}
	return out, nil
}
