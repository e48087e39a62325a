package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agribot/internal/config"
	"agribot/internal/domain"
	"agribot/internal/store"
)

type fakeAdminStore struct {
	stats   store.Stats
	turns   []domain.ConversationTurn
	updated map[string]domain.FarmerUpdate
	query   string
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{updated: make(map[string]domain.FarmerUpdate)}
}

func (s *fakeAdminStore) Stats(_ context.Context) (*store.Stats, error) {
	return &s.stats, nil
}

func (s *fakeAdminStore) SearchTurns(_ context.Context, query string, limit int) ([]domain.ConversationTurn, error) {
	s.query = query
	return s.turns, nil
}

func (s *fakeAdminStore) UpdateFarmer(_ context.Context, phone string, upd domain.FarmerUpdate) error {
	if phone == "+404" {
		return fmt.Errorf("farmer not found: %s", phone)
	}
	s.updated[phone] = upd
	return nil
}

func newTestWeb(st AdminStore, authToken string) *Web {
	return NewWeb(WebChannelConfig{
		Config: config.WebConfig{Host: "127.0.0.1", Port: 0, AuthToken: authToken},
		Store:  st,
		Logger: testLogger(),
	})
}

func TestWeb_Health(t *testing.T) {
	w := newTestWeb(newFakeAdminStore(), "")

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestWeb_Stats(t *testing.T) {
	st := newFakeAdminStore()
	st.stats = store.Stats{Farmers: 12, Turns: 340}
	w := newTestWeb(st, "")

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)

	var got store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Farmers != 12 || got.Turns != 340 {
		t.Errorf("unexpected stats: %+v", got)
	}
}

func TestWeb_Conversations(t *testing.T) {
	st := newFakeAdminStore()
	st.turns = []domain.ConversationTurn{{ID: "01A", UserMessage: "maize question"}}
	w := newTestWeb(st, "")

	req := httptest.NewRequest("GET", "/conversations?q=maize&limit=10", nil)
	rec := httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)

	if st.query != "maize" {
		t.Errorf("query not passed through, got %q", st.query)
	}
	var got []domain.ConversationTurn
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "01A" {
		t.Errorf("unexpected turns: %+v", got)
	}
}

func TestWeb_UpdateFarmer(t *testing.T) {
	st := newFakeAdminStore()
	w := newTestWeb(st, "")

	body := strings.NewReader(`{"location":"Nakuru","crops":["maize"]}`)
	req := httptest.NewRequest("PATCH", "/farmers/+254700000001", body)
	rec := httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", rec.Code, rec.Body.String())
	}
	upd, ok := st.updated["+254700000001"]
	if !ok {
		t.Fatalf("update not applied: %v", st.updated)
	}
	if upd.Location == nil || *upd.Location != "Nakuru" || len(upd.Crops) != 1 {
		t.Errorf("unexpected update: %+v", upd)
	}

	// Unknown farmer maps to 404.
	req = httptest.NewRequest("PATCH", "/farmers/+404", strings.NewReader(`{"name":"x"}`))
	rec = httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown farmer, got %d", rec.Code)
	}
}

func TestWeb_BearerAuth(t *testing.T) {
	w := newTestWeb(newFakeAdminStore(), "secret-token")

	// Admin endpoint without token.
	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	// With token.
	req = httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}

	// Health stays open.
	req = httptest.NewRequest("GET", "/health", nil)
	rec = httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %d", rec.Code)
	}
}

func TestWeb_WhatsAppWebhookMounted(t *testing.T) {
	wa := NewWhatsApp(WhatsAppChannelConfig{
		Config: config.WhatsAppConfig{VerifyToken: "vt"},
		Logger: testLogger(),
	})
	if err := wa.Start(context.Background(), newCaptureBus()); err != nil {
		t.Fatal(err)
	}

	w := NewWeb(WebChannelConfig{
		Config:   config.WebConfig{AuthToken: "secret"},
		Store:    newFakeAdminStore(),
		WhatsApp: wa.Handler(),
		Logger:   testLogger(),
	})

	// Webhook verification works through the shared server without auth.
	req := httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=vt&hub.challenge=7", nil)
	rec := httptest.NewRecorder()
	w.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "7" {
		t.Errorf("webhook not reachable through web server: %d %q", rec.Code, rec.Body.String())
	}
}
