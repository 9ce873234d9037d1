package posclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"pos-analytics/internal/apperr"
	"pos-analytics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWindow = models.NewTimeWindow(
	time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
)

// posServer fakes the auth, menus and bulk orders endpoints. orders is
// served in pages of the requested size.
type posServer struct {
	*httptest.Server
	loginCalls  int64
	pageCalls   int64
	orders      []models.Order
	rejectToken string
}

func newPOSServer(t *testing.T, orders []models.Order) *posServer {
	t.Helper()
	ps := &posServer{orders: orders}

	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&ps.loginCalls, 1)
		resp := map[string]interface{}{
			"token": map[string]interface{}{
				"accessToken": fmt.Sprintf("tok-%d", n),
				"expiresIn":   3600,
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(ordersBulkPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&ps.pageCalls, 1)
		if ps.rejected(w, r) {
			return
		}
		require.Equal(t, "rest-1", r.Header.Get(restaurantHeader))
		require.NotEmpty(t, r.URL.Query().Get("startDate"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		lo := (page - 1) * size
		hi := lo + size
		if lo > len(ps.orders) {
			lo = len(ps.orders)
		}
		if hi > len(ps.orders) {
			hi = len(ps.orders)
		}
		_ = json.NewEncoder(w).Encode(ps.orders[lo:hi])
	})
	mux.HandleFunc(menusPath, func(w http.ResponseWriter, r *http.Request) {
		if ps.rejected(w, r) {
			return
		}
		doc := models.MenuDocument{Menus: []models.Menu{{GUID: "m1", Name: "Cafe"}}}
		_ = json.NewEncoder(w).Encode(doc)
	})

	ps.Server = httptest.NewServer(mux)
	return ps
}

func (ps *posServer) rejected(w http.ResponseWriter, r *http.Request) bool {
	if ps.rejectToken != "" && r.Header.Get("Authorization") == "Bearer "+ps.rejectToken {
		http.Error(w, "token expired", http.StatusUnauthorized)
		return true
	}
	return false
}

func makeOrders(n int) []models.Order {
	orders := make([]models.Order, n)
	for i := range orders {
		orders[i] = models.Order{
			GUID:           fmt.Sprintf("order-%d", i),
			ApprovalStatus: models.ApprovalStatusApproved,
		}
	}
	return orders
}

func newTestClient(srv *posServer, pageSize int) *Client {
	session := NewSessionManager(srv.URL, "id", "secret", time.Minute, srv.Client())
	return NewClient(srv.URL, "rest-1", session, srv.Client(), pageSize, 3)
}

func TestFetchOrdersPaginates(t *testing.T) {
	srv := newPOSServer(t, makeOrders(25))
	defer srv.Close()

	client := newTestClient(srv, 10)
	orders, err := client.FetchOrders(testWindow).Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, orders, 25)
	assert.Equal(t, "order-0", orders[0].GUID)
	assert.Equal(t, "order-24", orders[24].GUID)
	// Pages 1-3; the short third page ends the stream.
	assert.EqualValues(t, 3, atomic.LoadInt64(&srv.pageCalls))
}

func TestFetchOrdersExactPageBoundary(t *testing.T) {
	srv := newPOSServer(t, makeOrders(20))
	defer srv.Close()

	client := newTestClient(srv, 10)
	orders, err := client.FetchOrders(testWindow).Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, orders, 20)
	// A full final page needs one more fetch to observe the empty page.
	assert.EqualValues(t, 3, atomic.LoadInt64(&srv.pageCalls))
}

func TestFetchOrdersIsLazy(t *testing.T) {
	srv := newPOSServer(t, makeOrders(25))
	defer srv.Close()

	client := newTestClient(srv, 10)
	stream := client.FetchOrders(testWindow)

	// Creating the stream fetches nothing.
	assert.EqualValues(t, 0, atomic.LoadInt64(&srv.pageCalls))

	order, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, order)
	// Only the first page has been fetched so far.
	assert.EqualValues(t, 1, atomic.LoadInt64(&srv.pageCalls))
}

func TestFetchOrdersEmptyWindow(t *testing.T) {
	srv := newPOSServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv, 10)
	orders, err := client.FetchOrders(testWindow).Drain(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestExpiredTokenRetriedOnceWithRefresh(t *testing.T) {
	srv := newPOSServer(t, makeOrders(1))
	defer srv.Close()

	client := newTestClient(srv, 10)

	// Seed a token, then make the server reject exactly that token.
	tok, err := client.session.Token(context.Background())
	require.NoError(t, err)
	srv.rejectToken = tok

	orders, err := client.FetchOrders(testWindow).Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	// Seed exchange plus the forced refresh.
	assert.EqualValues(t, 2, atomic.LoadInt64(&srv.loginCalls))
}

func TestPersistentRejectionIsAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	var loginCalls int64
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&loginCalls, 1)
		resp := map[string]interface{}{
			"token": map[string]interface{}{"accessToken": fmt.Sprintf("tok-%d", n), "expiresIn": 3600},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(menusPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSessionManager(srv.URL, "id", "secret", time.Minute, srv.Client())
	client := NewClient(srv.URL, "rest-1", session, srv.Client(), 10, 3)

	_, err := client.FetchMenus(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthFailure))
	assert.EqualValues(t, 2, atomic.LoadInt64(&loginCalls))
}

func TestClientErrorIsUpstream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"token": map[string]interface{}{"accessToken": "tok", "expiresIn": 3600},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(menusPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no menus configured", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSessionManager(srv.URL, "id", "secret", time.Minute, srv.Client())
	client := NewClient(srv.URL, "rest-1", session, srv.Client(), 10, 3)

	_, err := client.FetchMenus(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestServerErrorRetriedThenUpstream(t *testing.T) {
	mux := http.NewServeMux()
	var menuCalls int64
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"token": map[string]interface{}{"accessToken": "tok", "expiresIn": 3600},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(menusPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&menuCalls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSessionManager(srv.URL, "id", "secret", time.Minute, srv.Client())
	client := NewClient(srv.URL, "rest-1", session, srv.Client(), 10, 3)
	client.backoff = time.Millisecond

	_, err := client.FetchMenus(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.EqualValues(t, 3, atomic.LoadInt64(&menuCalls))
}

func TestMalformedBodyIsUpstream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"token": map[string]interface{}{"accessToken": "tok", "expiresIn": 3600},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(menusPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSessionManager(srv.URL, "id", "secret", time.Minute, srv.Client())
	client := NewClient(srv.URL, "rest-1", session, srv.Client(), 10, 3)

	_, err := client.FetchMenus(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
