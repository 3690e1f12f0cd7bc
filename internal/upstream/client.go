package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

// Transport selects how requests reach the upstream marketplace. Public CORS
// proxies rotate in front of the upstream because it blocks some origins.
type Transport string

const (
	TransportAllOrigins   Transport = "allorigins"
	TransportCORSProxy    Transport = "corsproxy"
	TransportCORSAnywhere Transport = "cors-anywhere"
	TransportDirect       Transport = "direct"
	TransportCustom       Transport = "custom"
)

// ParseTransport maps a stored proxy name to a Transport, defaulting to direct.
func ParseTransport(s string) Transport {
	switch Transport(s) {
	case TransportAllOrigins, TransportCORSProxy, TransportCORSAnywhere, TransportCustom:
		return Transport(s)
	default:
		return TransportDirect
	}
}

const (
	allOriginsPrefix   = "https://api.allorigins.win/get?url="
	corsProxyPrefix    = "https://corsproxy.io/?"
	corsAnywherePrefix = "https://cors-anywhere.herokuapp.com/"

	maxResponseBytes = 1 << 20
)

// Client talks to the upstream marketplace through a configurable proxy
// transport and normalizes whatever comes back. Malformed bodies never
// surface as errors; only network-level failures do.
type Client struct {
	logger       *slog.Logger
	http         *http.Client
	baseURL      string
	customPrefix string

	stockTimeout time.Duration
	buyTimeout   time.Duration
}

func NewClient(logger *slog.Logger, baseURL, customPrefix string, stockTimeout, buyTimeout time.Duration) *Client {
	if stockTimeout <= 0 {
		stockTimeout = 10 * time.Second
	}
	if buyTimeout <= 0 {
		buyTimeout = 30 * time.Second
	}

	return &Client{
		logger:       logger,
		http:         &http.Client{Timeout: buyTimeout},
		baseURL:      baseURL,
		customPrefix: customPrefix,
		stockTimeout: stockTimeout,
		buyTimeout:   buyTimeout,
	}
}

// GetStock fetches the stock/price record for a kiosk listing.
func (c *Client) GetStock(ctx context.Context, cfg *entities.UpstreamConfig, kioskToken string) (*StockRecord, error) {
	target := fmt.Sprintf("%s/getStock?kioskToken=%s&userToken=%s",
		c.baseURL, url.QueryEscape(kioskToken), url.QueryEscape(cfg.UserToken))

	transport := ParseTransport(cfg.Proxy)
	body, contentType, err := c.fetch(ctx, target, transport, c.stockTimeout)
	if err != nil {
		return nil, fmt.Errorf("stock request failed: %w", err)
	}

	rec := normalizeStock(body, contentType, transport == TransportAllOrigins)
	if rec.Mock {
		c.logger.Warn("Stock response unparseable, returning placeholder",
			"kiosk_token", kioskToken, "from_html", rec.FromHTML)
	}
	return rec, nil
}

// BuyProducts places an upstream purchase. The caller must treat anything but
// Success=true (and Mock=false) as "no purchase happened".
func (c *Client) BuyProducts(ctx context.Context, cfg *entities.UpstreamConfig, kioskToken string, quantity int, promotion *string) (*BuyRecord, error) {
	target := fmt.Sprintf("%s/buyProducts?kioskToken=%s&userToken=%s&quantity=%s",
		c.baseURL, url.QueryEscape(kioskToken), url.QueryEscape(cfg.UserToken), strconv.Itoa(quantity))
	if promotion != nil && *promotion != "" {
		target += "&promotion=" + url.QueryEscape(*promotion)
	}

	transport := ParseTransport(cfg.Proxy)
	body, contentType, err := c.fetch(ctx, target, transport, c.buyTimeout)
	if err != nil {
		return nil, fmt.Errorf("buy request failed: %w", err)
	}

	rec := normalizeBuy(body, contentType, transport == TransportAllOrigins)
	if rec.Mock {
		c.logger.Warn("Buy response unparseable, returning placeholder",
			"kiosk_token", kioskToken, "from_html", rec.FromHTML)
	}
	return rec, nil
}

// GetProducts polls for the delivered goods of a placed order.
func (c *Client) GetProducts(ctx context.Context, cfg *entities.UpstreamConfig, orderID string) (*GoodsRecord, error) {
	target := fmt.Sprintf("%s/getProducts?orderId=%s&userToken=%s",
		c.baseURL, url.QueryEscape(orderID), url.QueryEscape(cfg.UserToken))

	transport := ParseTransport(cfg.Proxy)
	body, contentType, err := c.fetch(ctx, target, transport, c.stockTimeout)
	if err != nil {
		return nil, fmt.Errorf("fulfillment request failed: %w", err)
	}

	rec := normalizeGoods(body, contentType, transport == TransportAllOrigins)
	if rec.Mock {
		c.logger.Warn("Fulfillment response unparseable, returning placeholder",
			"order_id", orderID, "from_html", rec.FromHTML)
	}
	return rec, nil
}

// buildProxiedURL wraps the target per transport. allorigins envelopes the
// response in {contents, status}; the others pass the body through.
func (c *Client) buildProxiedURL(target string, transport Transport) string {
	switch transport {
	case TransportAllOrigins:
		return allOriginsPrefix + url.QueryEscape(target)
	case TransportCORSProxy:
		return corsProxyPrefix + url.QueryEscape(target)
	case TransportCORSAnywhere:
		return corsAnywherePrefix + target
	case TransportCustom:
		if c.customPrefix != "" {
			return c.customPrefix + target
		}
		return target
	default:
		return target
	}
}

func (c *Client) fetch(ctx context.Context, target string, transport Transport, timeout time.Duration) ([]byte, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proxied := c.buildProxiedURL(target, transport)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, proxied, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create upstream request: %w", err)
	}

	// The upstream rejects obviously non-browser traffic.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upstream response: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
