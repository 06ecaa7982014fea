package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// coinGeckoClient implements port.PriceReader against the CoinGecko
// simple/price endpoint.
type coinGeckoClient struct {
	client  *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoinGeckoClient creates a PriceReader. apiKey may be empty for the
// public API tier.
func NewCoinGeckoClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) port.PriceReader {
	return &coinGeckoClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		logger:  logger.Named("CoinGeckoClient"),
	}
}

// FetchPrice implements port.PriceReader.
func (c *coinGeckoClient) FetchPrice(ctx context.Context, priceID string) (float64, bool, error) {
	prices, err := c.FetchPricesBatch(ctx, []string{priceID})
	if err != nil {
		return 0, false, err
	}
	price, found := prices[priceID]
	return price, found, nil
}

// FetchPricesBatch implements port.PriceReader. Ids absent from the returned
// map were not found upstream; only transport/API failures are errors.
func (c *coinGeckoClient) FetchPricesBatch(ctx context.Context, priceIDs []string) (map[string]float64, error) {
	if len(priceIDs) == 0 {
		return map[string]float64{}, nil
	}

	requestURL := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd",
		c.baseURL, url.QueryEscape(strings.Join(priceIDs, ",")))
	c.logger.Debug("Requesting spot prices", zap.Int("idCount", len(priceIDs)))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, &entity.UpstreamFetchError{Resource: "price batch", Err: err}
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, &entity.UpstreamFetchError{Resource: "price batch", Err: err}
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Price API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", resp.Body()))
		return nil, &entity.UpstreamFetchError{
			Resource: "price batch",
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	// {"ethereum":{"usd":3000.12},"usd-coin":{"usd":1.0}}
	var payload map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &entity.UpstreamFetchError{
			Resource: "price batch",
			Err:      fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}

	prices := make(map[string]float64, len(payload))
	for id, quote := range payload {
		if usd, ok := quote["usd"]; ok {
			prices[id] = usd
		}
	}
	c.logger.Debug("Resolved spot prices", zap.Int("requested", len(priceIDs)), zap.Int("resolved", len(prices)))
	return prices, nil
}
