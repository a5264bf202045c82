package skillboost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/pkg/catalog"
)

// catalogItem is one item as served by the catalog API.
type catalogItem struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Level       string `json:"level"`
	URL         string `json:"content_catalog_url"`
}

type authResponse struct {
	AuthToken string `json:"auth_token"`
}

// itemsResponse accepts either a bare list or an object wrapping it.
type itemsResponse []catalogItem

func (r *itemsResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Items []catalogItem `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		*r = wrapped.Items
		return nil
	}
	var items []catalogItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*r = items
	return nil
}

// FetchCatalog authenticates and downloads the full content catalog in
// source order.
func (c *Client) FetchCatalog(ctx context.Context) ([]catalog.Entry, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/v2/catalogs/%s/items?per_page=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.PathEscape(c.cfg.CatalogID),
		strconv.Itoa(c.cfg.PerPage),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, mapError(EndpointCatalog, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var items itemsResponse
	if err := c.do(req, EndpointCatalog, &items); err != nil {
		return nil, err
	}

	entries := make([]catalog.Entry, len(items))
	for i, it := range items {
		entries[i] = catalog.Entry{
			ContentType: it.ContentType,
			Title:       it.Title,
			Level:       it.Level,
			URL:         it.URL,
		}
	}
	c.logger.Info("catalog downloaded", zap.Int("entries", len(entries)))
	return entries, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("access_key", c.cfg.AccessKey)
	form.Set("secret_key", c.cfg.SecretKey)

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v2/authenticate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return "", mapError(EndpointAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var resp authResponse
	if err := c.do(req, EndpointAuth, &resp); err != nil {
		return "", err
	}
	if resp.AuthToken == "" {
		return "", &UpstreamError{
			Endpoint: EndpointAuth,
			Code:     ErrCodeAuthentication,
			Message:  "no auth token in response",
			Err:      errors.New("empty auth_token"),
		}
	}
	return resp.AuthToken, nil
}
