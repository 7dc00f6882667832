package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shopify-session-storage/internal/application"
	"shopify-session-storage/internal/application/webhook_handlers"
	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/infrastructure/repository"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "hush"
	testAdminKey = "admin-key"
)

type testServer struct {
	router   chi.Router
	sessions *application.SessionService
}

func newTestServer(t *testing.T) *testServer {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	sessions := application.NewSessionService(repository.NewMemorySessionStorage(), logger)
	dispatcher := application.NewWebhookDispatcher(logger)
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, sessions))

	r := chi.NewRouter()
	NewHandlers(sessions, dispatcher, "key", testSecret, testAdminKey, logger).Mount(r)
	return &testServer{router: r, sessions: sessions}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(AdminKeyHeader, testAdminKey)
	return req
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(topic, shop, body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", strings.NewReader(body))
	req.Header.Set("X-Shopify-Topic", topic)
	req.Header.Set("X-Shopify-Shop-Domain", shop)
	req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	return req
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.NoError(t, srv.sessions.Close(context.Background()))
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionRoutes(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := &domain.Session{ID: "offline_shop.myshopify.com", Shop: "shop.myshopify.com", State: "s", Scope: "read_products", AccessToken: "shpat_secret"}
	require.NoError(t, srv.sessions.Store(ctx, session))

	rec := srv.do(adminRequest(http.MethodGet, "/sessions/offline_shop.myshopify.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "shpat_secret")
	assert.NotContains(t, rec.Body.String(), "accessToken")
	var loaded sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, session.Shop, loaded.Shop)
	assert.Equal(t, session.Scope, loaded.Scope)
	assert.True(t, loaded.HasAccessToken)

	rec = srv.do(adminRequest(http.MethodGet, "/shops/shop.myshopify.com/sessions"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "shpat_secret")
	var found []sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	assert.Len(t, found, 1)

	rec = srv.do(adminRequest(http.MethodGet, "/shops/nobody.myshopify.com/sessions"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = srv.do(adminRequest(http.MethodDelete, "/sessions/offline_shop.myshopify.com"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(adminRequest(http.MethodGet, "/sessions/offline_shop.myshopify.com"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRoutesRequireAdminKey(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, srv.sessions.Store(ctx, &domain.Session{ID: "offline_a.myshopify.com", Shop: "a.myshopify.com", AccessToken: "shpat_secret"}))

	requests := map[string]*http.Request{
		"get":    httptest.NewRequest(http.MethodGet, "/sessions/offline_a.myshopify.com", nil),
		"find":   httptest.NewRequest(http.MethodGet, "/shops/a.myshopify.com/sessions", nil),
		"delete": httptest.NewRequest(http.MethodDelete, "/sessions/offline_a.myshopify.com", nil),
	}
	for name, req := range requests {
		t.Run(name+" without key", func(t *testing.T) {
			rec := srv.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotContains(t, rec.Body.String(), "shpat_secret")
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/offline_a.myshopify.com", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, srv.do(req).Code)

	loaded, err := srv.sessions.Load(ctx, "offline_a.myshopify.com")
	require.NoError(t, err)
	assert.NotNil(t, loaded, "unauthorized delete must not remove the session")

	// health stays public
	assert.Equal(t, http.StatusOK, srv.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestSessionRoutesClosedWithoutAdminKey(t *testing.T) {
	logger := zerolog.Nop()
	sessions := application.NewSessionService(repository.NewMemorySessionStorage(), logger)
	r := chi.NewRouter()
	NewHandlers(sessions, application.NewWebhookDispatcher(logger), "", "", "", logger).Mount(r)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/any", nil)
	req.Header.Set(AdminKeyHeader, "")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORS(t *testing.T) {
	newRouter := func(origins []string) chi.Router {
		r := chi.NewRouter()
		r.Use(CORS(origins))
		r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		return r
	}
	request := func(r chi.Router, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/sessions/offline_a", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := request(newRouter(nil), "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	allowed := newRouter([]string{"https://admin.example.com"})
	rec = request(allowed, "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = request(allowed, "https://admin.example.com")
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionRoutesAfterDisconnect(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.sessions.Close(context.Background()))

	rec := srv.do(adminRequest(http.MethodGet, "/sessions/any"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookUninstallPurgesSessions(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, srv.sessions.Store(ctx, &domain.Session{ID: "offline_gone.myshopify.com", Shop: "gone.myshopify.com"}))

	body := `{"id":1,"myshopify_domain":"gone.myshopify.com"}`
	rec := srv.do(webhookRequest(domain.TopicAppUninstalled, "gone.myshopify.com", body, sign(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	found, err := srv.sessions.FindByShop(ctx, "gone.myshopify.com")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)
	body := `{"id":1}`

	rec := srv.do(webhookRequest(domain.TopicAppUninstalled, "shop.myshopify.com", body, sign("tampered")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(webhookRequest("", "shop.myshopify.com", body, sign(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unhandled topics are still acknowledged
	rec = srv.do(webhookRequest("orders/create", "shop.myshopify.com", body, sign(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookWithoutSecret(t *testing.T) {
	logger := zerolog.Nop()
	sessions := application.NewSessionService(repository.NewMemorySessionStorage(), logger)
	r := chi.NewRouter()
	NewHandlers(sessions, application.NewWebhookDispatcher(logger), "", "", testAdminKey, logger).Mount(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, webhookRequest("orders/create", "shop.myshopify.com", "{}", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
