package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/modules/orders"
)

// HTTPFetcher reads GET <BaseURL>/api/orders/:id/status.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func (f HTTPFetcher) FetchStatus(ctx context.Context, orderID string) (orders.StatusView, error) {
	c := f.Client
	if c == nil {
		c = http.DefaultClient
	}
	u := strings.TrimRight(f.BaseURL, "/") + "/api/orders/" + url.PathEscape(orderID) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return orders.StatusView{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return orders.StatusView{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return orders.StatusView{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var st orders.StatusView
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return orders.StatusView{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
