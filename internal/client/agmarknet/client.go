// Package agmarknet is the client for the open-data daily commodity price
// resource. The provider is rate-limited, only reliably serves recent dates,
// and matches filter values exactly.
package agmarknet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"mandi/internal/models"
)

const defaultPageLimit = 500

type Client struct {
	http       *resty.Client
	resourceID string
	apiKey     string
	pageLimit  int
	maxPages   int
	logger     *zap.Logger
}

type Options struct {
	BaseURL    string
	ResourceID string
	APIKey     string
	Timeout    time.Duration
	PageLimit  int
	MaxPages   int
	Logger     *zap.Logger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.data.gov.in"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	pageLimit := opts.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 4
	}
	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http:       httpClient,
		resourceID: opts.ResourceID,
		apiKey:     opts.APIKey,
		pageLimit:  pageLimit,
		maxPages:   maxPages,
		logger:     opts.Logger,
	}
}

// ListPrices fetches all rows matching the filters, following pagination up
// to the configured page cap, and converts them to price records. Rows with
// unusable dates are skipped, not fatal.
func (c *Client) ListPrices(ctx context.Context, f Filters) ([]models.PriceRecord, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("agmarknet client not configured")
	}
	pageLimit := f.Limit
	if pageLimit <= 0 || pageLimit > c.pageLimit {
		pageLimit = c.pageLimit
	}
	offset := f.Offset
	var out []models.PriceRecord
	for page := 0; page < c.maxPages; page++ {
		env, err := c.fetchPage(ctx, f, pageLimit, offset)
		if err != nil {
			return nil, err
		}
		for _, raw := range env.Records {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				if c.logger != nil {
					c.logger.Warn("skipping malformed provider row", zap.Error(err))
				}
				continue
			}
			m, err := rec.ToModel()
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("skipping provider row", zap.Error(err))
				}
				continue
			}
			out = append(out, m)
		}
		if len(env.Records) < pageLimit {
			break
		}
		offset += pageLimit
		if f.Limit > 0 && len(out) >= f.Limit {
			out = out[:f.Limit]
			break
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, f Filters, limit, offset int) (*envelope, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("api-key", c.apiKey).
		SetQueryParam("format", "json").
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetQueryParam("offset", fmt.Sprintf("%d", offset))
	setFilter(req, "commodity", f.Commodity)
	setFilter(req, "state", f.State)
	setFilter(req, "district", f.District)
	setFilter(req, "market", f.Market)
	setFilter(req, "arrival_date", f.Date)

	resp, err := req.Get(fmt.Sprintf("/resource/%s", c.resourceID))
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("malformed provider payload: %w", err)
	}
	return &env, nil
}

func setFilter(req *resty.Request, name, value string) {
	v := strings.TrimSpace(value)
	if v == "" {
		return
	}
	req.SetQueryParam(fmt.Sprintf("filters[%s]", name), v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
