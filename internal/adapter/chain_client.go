package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/types"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// ChainClient reads chain state and broadcasts transactions.
type ChainClient interface {
	LatestHeight(ctx context.Context) (uint64, error)
	GetBlocks(ctx context.Context, start, end uint64) ([]Block, error)
	GetBlock(ctx context.Context, height uint64) (*Block, error)
	GetProgram(ctx context.Context, programID string) (string, error)
	BroadcastTransaction(ctx context.Context, transaction string) (string, error)
}

// HTTPChainClient talks to a chain API node. Requests carry the
// per-deployment API token in the path and are rate limited client-side.
type HTTPChainClient struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
	service string
}

// NewChainClient builds a client for the given network. Networks without
// a configured endpoint are rejected.
func NewChainClient(cfg *config.ChainConfig, network types.Network) (*HTTPChainClient, error) {
	if !network.Valid() {
		return nil, werr.Validation("Unknown network: " + string(network))
	}

	base := cfg.BaseURL(network)
	if base == "" {
		return nil, werr.Validation("Network " + string(network) + " is not configured")
	}
	base = strings.TrimSuffix(base, "/")
	if token := cfg.APIToken[network]; token != "" {
		base += "/" + token
	}
	base += "/" + string(network)

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}

	return &HTTPChainClient{
		base:    base,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		service: "chain API",
	}, nil
}

func (c *HTTPChainClient) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := newRequest(ctx, http.MethodGet, c.base+path, nil, "")
	if err != nil {
		return err
	}
	return doJSON(c.client, req, c.service, out)
}

// LatestHeight returns the chain head height.
func (c *HTTPChainClient) LatestHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.get(ctx, "/latest/height", &height); err != nil {
		return 0, err
	}
	return height, nil
}

// GetBlocks fetches the inclusive block range [start, end]. The node caps
// ranges at 50 blocks.
func (c *HTTPChainClient) GetBlocks(ctx context.Context, start, end uint64) ([]Block, error) {
	if end < start {
		return nil, werr.Validation("Invalid block range")
	}
	var blocks []Block
	path := fmt.Sprintf("/blocks?start=%d&end=%d", start, end)
	if err := c.get(ctx, path, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// GetBlock fetches a single block by height.
func (c *HTTPChainClient) GetBlock(ctx context.Context, height uint64) (*Block, error) {
	var block Block
	if err := c.get(ctx, fmt.Sprintf("/block/%d", height), &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetProgram fetches a deployed program's source.
func (c *HTTPChainClient) GetProgram(ctx context.Context, programID string) (string, error) {
	if programID == "" {
		return "", werr.Validation("Program id is required")
	}
	var program string
	if err := c.get(ctx, "/program/"+programID, &program); err != nil {
		return "", err
	}
	return program, nil
}

// BroadcastTransaction submits a proved transaction and returns its id.
func (c *HTTPChainClient) BroadcastTransaction(ctx context.Context, transaction string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := jsonBody(transaction)
	if err != nil {
		return "", err
	}
	req, err := newRequest(ctx, http.MethodPost, c.base+"/transaction/broadcast", body, "")
	if err != nil {
		return "", err
	}

	var txID string
	if err := doJSON(c.client, req, c.service, &txID); err != nil {
		return "", err
	}
	return txID, nil
}
