package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"pricewatch/internal/pkg/text"

	"github.com/tidwall/gjson"
)

const maxJSONBody = 4 << 20

// JSONConfig describes a retailer API that answers with JSON.
//
// Endpoint may reference the product locator with {locator} (query-escaped)
// or {id} (last path segment of the locator). An empty endpoint fetches the
// locator itself. Paths use gjson syntax.
type JSONConfig struct {
	Name          string
	Site          string
	Endpoint      string
	PricePath     string
	ShippingPath  string
	AvailablePath string
	Headers       map[string]string
}

type JSONCapability struct {
	cfg    JSONConfig
	client *http.Client
}

func NewJSONCapability(cfg JSONConfig, client *http.Client) *JSONCapability {
	if client == nil {
		client = http.DefaultClient
	}
	return &JSONCapability{cfg: cfg, client: client}
}

func (c *JSONCapability) Name() string { return c.cfg.Name }

func (c *JSONCapability) Fetch(ctx context.Context, locator string) (Quote, error) {
	target := c.endpointFor(locator)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build request %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return Quote{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return Quote{}, fmt.Errorf("%s status=%d body=%s", target, resp.StatusCode, text.Truncate(strings.TrimSpace(string(body)), 200))
	}
	if !gjson.ValidBytes(body) {
		return Quote{}, fmt.Errorf("%s returned invalid json", target)
	}
	return c.extract(body), nil
}

func (c *JSONCapability) extract(body []byte) Quote {
	q := Quote{Site: c.cfg.Site}
	if v, ok := numberAt(body, c.cfg.PricePath); ok {
		q.Price = Float(v)
	}
	if v, ok := numberAt(body, c.cfg.ShippingPath); ok {
		q.Shipping = Float(v)
	}
	if p := strings.TrimSpace(c.cfg.AvailablePath); p != "" {
		if res := gjson.GetBytes(body, p); res.Exists() {
			q.Available = Bool(res.Bool())
		}
	}
	return q
}

func numberAt(body []byte, p string) (float64, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return 0, false
	}
	res := gjson.GetBytes(body, p)
	switch res.Type {
	case gjson.Number:
		return res.Float(), true
	case gjson.String:
		return ParsePriceText(res.String())
	default:
		return 0, false
	}
}

func (c *JSONCapability) endpointFor(locator string) string {
	endpoint := strings.TrimSpace(c.cfg.Endpoint)
	if endpoint == "" {
		return locator
	}
	id := ""
	if u, err := url.Parse(locator); err == nil {
		id = path.Base(strings.TrimRight(u.Path, "/"))
	}
	r := strings.NewReplacer("{locator}", url.QueryEscape(locator), "{id}", url.PathEscape(id))
	return r.Replace(endpoint)
}
