package shiprate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brandkart/brandkart-backend/pkg/config"
	pkgerrors "github.com/brandkart/brandkart-backend/pkg/errors"
	"github.com/brandkart/brandkart-backend/pkg/logger"
)

const responseBodyReadLimit = 1024

// Quote holds a shipping fee computed for a single shipment.
type Quote struct {
	FeeCents int64
	Courier  string
}

// Rater resolves a shipping fee for a shipment between two pincodes.
type Rater interface {
	Rate(ctx context.Context, originPincode, destPincode string, weightGrams int) (*Quote, error)
}

// Client queries an external courier-rate API, optionally falling back to a
// flat fee when the provider is unreachable.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	token           string
	flatFallbackFee int64
	useFlatFallback bool
	logg            *logger.Logger
}

// NewClient builds the rate client from configuration.
func NewClient(cfg config.ShipRateConfig, logg *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimSpace(cfg.BaseURL),
		token:           strings.TrimSpace(cfg.Token),
		flatFallbackFee: cfg.FlatFallbackFee,
		useFlatFallback: cfg.UseFlatFallback,
		logg:            logg,
	}
}

// Rate looks up the shipping fee for a shipment. When the provider fails and
// flat fallback is enabled, the configured flat fee is returned instead of an
// error so checkout can proceed.
func (c *Client) Rate(ctx context.Context, originPincode, destPincode string, weightGrams int) (*Quote, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprate client not configured")
	}
	if strings.TrimSpace(originPincode) == "" || strings.TrimSpace(destPincode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin and destination pincodes are required")
	}
	if weightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment weight must be positive")
	}

	quote, err := c.lookup(ctx, originPincode, destPincode, weightGrams)
	if err == nil {
		return quote, nil
	}
	if c.useFlatFallback {
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "shiprate lookup failed, using flat fallback fee")
		}
		return &Quote{FeeCents: c.flatFallbackFee, Courier: "flat"}, nil
	}
	return nil, err
}

func (c *Client) lookup(ctx context.Context, originPincode, destPincode string, weightGrams int) (*Quote, error) {
	if c.baseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprate base URL not configured")
	}

	endpoint := fmt.Sprintf("%s/rates", strings.TrimRight(c.baseURL, "/"))
	query := url.Values{}
	query.Set("origin", strings.TrimSpace(originPincode))
	query.Set("destination", strings.TrimSpace(destPincode))
	query.Set("weight_grams", strconv.Itoa(weightGrams))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build shiprate request")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute shiprate request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "shiprate request failed")
	}

	var apiResp struct {
		FeeCents int64  `json:"fee_cents"`
		Courier  string `json:"courier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shiprate response")
	}
	if apiResp.FeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprate returned a negative fee")
	}

	return &Quote{FeeCents: apiResp.FeeCents, Courier: apiResp.Courier}, nil
}
