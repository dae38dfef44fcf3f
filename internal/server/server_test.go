package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/karimadel/borsa/internal/app"
	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/models"
	"github.com/karimadel/borsa/internal/storage/memstore"
)

type stubChatService struct {
	lastSession   string
	lastPrincipal models.Principal
	lastRequest   *models.ChatRequest
}

func (s *stubChatService) ProcessMessage(_ context.Context, sessionID string, principal models.Principal, req *models.ChatRequest) *models.ResponseEnvelope {
	s.lastSession = sessionID
	s.lastPrincipal = principal
	s.lastRequest = req
	return &models.ResponseEnvelope{
		Success:     true,
		MessageText: "ok",
		Language:    "en",
		Cards:       []models.Card{},
		Actions:     []models.Action{},
	}
}

func newTestServer(t *testing.T) (*Server, *stubChatService) {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	chat := &stubChatService{}

	a := &app.App{
		Config:      cfg,
		Logger:      logger,
		Storage:     memstore.New(logger),
		ChatService: chat,
		StartupTime: time.Now(),
	}
	return NewServer(a), chat
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", body["status"])
	}
}

func TestHealthRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["version"] == "" {
		t.Error("Expected a version string")
	}
}

func TestConfigEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if body["environment"] != "development" {
		t.Errorf("Expected development environment, got %v", body["environment"])
	}
	if body["guest_message_ceiling"] != float64(5) {
		t.Errorf("Expected ceiling 5, got %v", body["guest_message_ceiling"])
	}
	// The app literal carries no narrator, so narration must report off
	// even though the config enables it.
	if body["narration_enabled"] != false {
		t.Errorf("Expected narration_enabled false, got %v", body["narration_enabled"])
	}
}

func TestChatEndpoint(t *testing.T) {
	srv, chat := newTestServer(t)

	payload, _ := json.Marshal(models.ChatRequest{Message: "COMI price", SessionID: "s1"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Fingerprint", "device-42")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var env models.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to parse envelope: %v", err)
	}
	if !env.Success {
		t.Error("Expected a success envelope")
	}
	if chat.lastSession != "s1" {
		t.Errorf("Expected session s1, got %q", chat.lastSession)
	}
	if chat.lastPrincipal.ID != "device-42" {
		t.Errorf("Expected fingerprint principal, got %q", chat.lastPrincipal.ID)
	}
	if chat.lastPrincipal.Authenticated {
		t.Error("Guest must not be authenticated")
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{"message":"   "}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestChatRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{not json`)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestChatAuthenticatedPrincipal(t *testing.T) {
	srv, chat := newTestServer(t)
	secret := srv.app.Config.Auth.JWTSecret

	payload, _ := json.Marshal(models.ChatRequest{Message: "COMI price"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-7"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if chat.lastPrincipal.ID != "user-7" {
		t.Errorf("Expected principal user-7, got %q", chat.lastPrincipal.ID)
	}
	if !chat.lastPrincipal.Authenticated {
		t.Error("Expected an authenticated principal")
	}
}

func TestChatRejectsInvalidToken(t *testing.T) {
	srv, chat := newTestServer(t)

	payload, _ := json.Marshal(models.ChatRequest{Message: "COMI price"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "user-7"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("Expected a WWW-Authenticate header")
	}
	if chat.lastRequest != nil {
		t.Error("Handler must not run on a rejected token")
	}
}

func TestChatRejectsTokenWithoutSubject(t *testing.T) {
	srv, _ := newTestServer(t)
	secret := srv.app.Config.Auth.JWTSecret

	payload, _ := json.Marshal(models.ChatRequest{Message: "COMI price"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, ""))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS origin header")
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "my-request")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "my-request" {
		t.Errorf("Expected correlation ID my-request, got %q", got)
	}
}

func TestCorrelationIDGenerated(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("Expected a generated correlation ID")
	}
}

func TestShutdownEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	shutdownChan := make(chan struct{}, 1)
	srv.SetShutdownChannel(shutdownChan)

	req := httptest.NewRequest(http.MethodPost, "/api/shutdown", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	select {
	case <-shutdownChan:
	case <-time.After(2 * time.Second):
		t.Error("Expected a shutdown signal")
	}
}

func TestShutdownDisabledInProduction(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.app.Config.Environment = "production"

	req := httptest.NewRequest(http.MethodPost, "/api/shutdown", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := common.NewSilentLogger()
	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestChartImageUnknownSymbol(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chart/XXXX.png", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestChartImageServed(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	store := srv.app.Storage.MarketStore()

	if err := store.SaveInstrument(ctx, &models.Instrument{
		Symbol: "COMI", Market: "EGX", EntityType: models.EntityStock,
		NameEN: "Commercial International Bank", Currency: "EGP", LastPrice: 82.5,
	}); err != nil {
		t.Fatalf("Failed to save instrument: %v", err)
	}
	now := time.Now().UTC()
	points := make([]models.PricePoint, 0, 10)
	for i := 9; i >= 0; i-- {
		points = append(points, models.PricePoint{
			Date: now.AddDate(0, 0, -i), Close: 80 + float64(i), Open: 80, High: 91, Low: 79, Volume: 1000,
		})
	}
	if err := store.SavePricePoints(ctx, "COMI", points); err != nil {
		t.Fatalf("Failed to save prices: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chart/COMI.png?range=1M", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("Expected PNG bytes")
	}
}

func TestChartImageInsufficientHistory(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	store := srv.app.Storage.MarketStore()

	if err := store.SaveInstrument(ctx, &models.Instrument{
		Symbol: "SWDY", Market: "EGX", EntityType: models.EntityStock,
		NameEN: "Elsewedy Electric", Currency: "EGP",
	}); err != nil {
		t.Fatalf("Failed to save instrument: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chart/SWDY.png", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestPathParam(t *testing.T) {
	tests := []struct {
		path, prefix, suffix, want string
	}{
		{"/api/chart/COMI.png", "/api/chart/", ".png", "COMI"},
		{"/api/chart/comi.png", "/api/chart/", ".png", "comi"},
		{"/api/chart/", "/api/chart/", ".png", ""},
		{"/api/chart/COMI", "/api/chart/", ".png", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := PathParam(req, tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("PathParam(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
