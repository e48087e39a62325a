package vision

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-jpeg-bytes"))
	}))
	t.Cleanup(s.Close)
	return s
}

func TestClassify(t *testing.T) {
	img := imageServer(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer hf-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		// Unsorted on purpose.
		w.Write([]byte(`[
			{"label":"Gray_Leaf_Spot","score":0.05},
			{"label":"Northern_Corn_Leaf_Blight","score":0.91},
			{"label":"healthy","score":0.02},
			{"label":"Common_Rust","score":0.01},
			{"label":"maize_streak","score":0.005},
			{"label":"other","score":0.004}
		]`))
	}))
	defer api.Close()

	h := New(Config{APIURL: api.URL, Token: "hf-token", Logger: testLogger()})
	preds, err := h.Classify(context.Background(), img.URL)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(preds) != 5 {
		t.Fatalf("expected top 5, got %d", len(preds))
	}
	if preds[0].Label != "Northern_Corn_Leaf_Blight" || preds[0].Score != 0.91 {
		t.Errorf("expected highest score first, got %+v", preds[0])
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].Score > preds[i-1].Score {
			t.Errorf("predictions not sorted descending: %+v", preds)
		}
	}
}

func TestClassify_ModelLoading(t *testing.T) {
	img := imageServer(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer api.Close()

	h := New(Config{APIURL: api.URL, Logger: testLogger()})
	preds, err := h.Classify(context.Background(), img.URL)
	if err != nil {
		t.Fatalf("cold model should not be an error: %v", err)
	}
	if len(preds) != 1 || preds[0].Label != loadingLabel || preds[0].Note == "" {
		t.Errorf("expected loading sentinel, got %+v", preds)
	}
}

func TestClassify_APIError(t *testing.T) {
	img := imageServer(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer api.Close()

	h := New(Config{APIURL: api.URL, Logger: testLogger()})
	if _, err := h.Classify(context.Background(), img.URL); err == nil {
		t.Error("expected error on 400")
	}
}

func TestClassify_ImageFetchFails(t *testing.T) {
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer img.Close()

	h := New(Config{APIURL: "http://unused.invalid", Logger: testLogger()})
	if _, err := h.Classify(context.Background(), img.URL); err == nil {
		t.Error("expected error when image cannot be downloaded")
	}
}
