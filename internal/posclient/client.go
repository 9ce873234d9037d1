package posclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pos-analytics/internal/apperr"
	"pos-analytics/internal/models"
	"pos-analytics/internal/util"

	"go.uber.org/zap"
)

const (
	menusPath      = "/menus/v2/menus"
	ordersBulkPath = "/orders/v2/ordersBulk"

	// restaurantHeader scopes every resource request to one restaurant.
	restaurantHeader = "Toast-Restaurant-External-ID"
)

// Client fetches menus and bulk orders from the POS API, obtaining a
// bearer token from the session manager before each request.
type Client struct {
	baseURL        string
	restaurantGUID string
	session        *SessionManager
	httpClient     *http.Client
	pageSize       int
	maxRetries     int
	backoff        time.Duration
	logger         *zap.Logger
}

// NewClient creates a POS API client.
func NewClient(baseURL, restaurantGUID string, session *SessionManager, httpClient *http.Client, pageSize, maxRetries int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		baseURL:        baseURL,
		restaurantGUID: restaurantGUID,
		session:        session,
		httpClient:     httpClient,
		pageSize:       pageSize,
		maxRetries:     maxRetries,
		backoff:        250 * time.Millisecond,
		logger:         util.GetLogger(),
	}
}

// RestaurantGUID returns the restaurant this client is scoped to.
func (c *Client) RestaurantGUID() string {
	return c.restaurantGUID
}

// FetchMenus retrieves the full menu document for the restaurant.
func (c *Client) FetchMenus(ctx context.Context) (*models.MenuDocument, error) {
	ctx, span := util.StartSpan(ctx, "posclient.FetchMenus")
	defer span.End()

	body, err := c.get(ctx, "menus", menusPath, nil)
	if err != nil {
		return nil, err
	}

	var doc models.MenuDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "malformed menus response")
	}
	return &doc, nil
}

// FetchOrders returns a lazy stream over all raw orders in the window.
// Pages are fetched on demand so downstream stages can start before the
// full page set arrives; the window is complete only once the stream is
// drained to its (nil, nil) end.
func (c *Client) FetchOrders(window models.TimeWindow) *OrderStream {
	return &OrderStream{client: c, window: window, page: 1}
}

// OrderStream is a pull iterator over paginated bulk orders.
type OrderStream struct {
	client *Client
	window models.TimeWindow
	page   int
	buf    []models.Order
	idx    int
	done   bool
	err    error
}

// Next returns the next raw order, fetching the next page when the buffer
// is exhausted. It returns (nil, nil) after the final order. Once an error
// is returned the stream is dead and keeps returning the same error.
func (s *OrderStream) Next(ctx context.Context) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	for s.idx >= len(s.buf) {
		if s.done {
			return nil, nil
		}
		if err := s.fetchPage(ctx); err != nil {
			s.err = err
			return nil, err
		}
	}
	order := &s.buf[s.idx]
	s.idx++
	return order, nil
}

// Drain consumes the rest of the stream into a slice. Callers needing a
// non-partial window use this.
func (s *OrderStream) Drain(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	for {
		order, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return orders, nil
		}
		orders = append(orders, *order)
	}
}

func (s *OrderStream) fetchPage(ctx context.Context) error {
	params := url.Values{}
	params.Set("startDate", s.window.Start.Format(models.APITimeLayout))
	params.Set("endDate", s.window.End.Format(models.APITimeLayout))
	params.Set("page", strconv.Itoa(s.page))
	params.Set("pageSize", strconv.Itoa(s.client.pageSize))

	body, err := s.client.get(ctx, "orders_bulk", ordersBulkPath, params)
	if err != nil {
		return err
	}

	var page []models.Order
	if err := json.Unmarshal(body, &page); err != nil {
		return apperr.Wrap(apperr.KindUpstream, err, "malformed orders page %d", s.page)
	}

	util.OrderPagesFetchedTotal.Inc()
	util.OrdersFetchedTotal.Add(float64(len(page)))

	s.buf = page
	s.idx = 0
	s.page++
	// A short or empty page is the last one.
	if len(page) < s.client.pageSize {
		s.done = true
	}
	return nil
}

// get performs an authorized GET with bounded retries for transient
// failures and a single forced-refresh retry on an expired token.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	authRetried := false
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		token, err := c.session.Token(ctx)
		if err != nil {
			if apperr.Is(err, apperr.KindTransientAuth) {
				lastErr = err
				continue
			}
			return nil, err
		}

		body, status, err := c.do(ctx, endpoint, path, params, token)
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusUnauthorized:
			if authRetried {
				return nil, apperr.New(apperr.KindAuthFailure, "%s rejected refreshed token", endpoint)
			}
			authRetried = true
			c.session.Invalidate(token)
			c.logger.Warn("Token rejected by upstream, forcing refresh",
				zap.String("endpoint", endpoint))
			attempt--
		case status >= 500:
			lastErr = apperr.New(apperr.KindUpstream, "%s returned %d", endpoint, status)
		default:
			return nil, apperr.New(apperr.KindUpstream, "%s returned %d: %s", endpoint, status, truncate(body, 200))
		}
	}

	if lastErr == nil {
		lastErr = apperr.New(apperr.KindUpstream, "%s failed after %d attempts", endpoint, c.maxRetries)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint, path string, params url.Values, token string) ([]byte, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, err, "build %s request", endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(restaurantHeader, c.restaurantGUID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		util.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, 0, apperr.Wrap(apperr.KindUpstream, err, "%s request failed", endpoint)
	}
	defer resp.Body.Close()

	util.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindUpstream, err, "read %s response", endpoint)
	}
	return body, resp.StatusCode, nil
}
