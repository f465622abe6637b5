package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Router implements Client and routes each request by its Tier.
type Router struct {
	logger  *zap.Logger
	clients map[ModelTier]Client
}

// NewRouter creates a router with a client per tier.
func NewRouter(logger *zap.Logger, fastClient, powerfulClient Client) (*Router, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}
	return &Router{
		logger: logger.Named("llm_router"),
		clients: map[ModelTier]Client{
			TierFast:     fastClient,
			TierPowerful: powerfulClient,
		},
	}, nil
}

// Generate defaults to the powerful tier when none is set.
func (r *Router) Generate(ctx context.Context, req GenerationRequest) (Response, error) {
	tier := req.Tier
	if tier == "" {
		tier = TierPowerful
	}
	client, ok := r.clients[tier]
	if !ok {
		return Response{}, fmt.Errorf("no LLM client configured for tier: %s", tier)
	}
	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}

// Close closes each distinct underlying client once.
func (r *Router) Close() error {
	seen := map[Client]struct{}{}
	var errs []error
	for _, c := range r.clients {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
