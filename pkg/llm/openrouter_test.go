package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCostTestProvider(t *testing.T, handler http.HandlerFunc) *OpenRouterProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewOpenRouterProvider(ProviderConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider() error = %v", err)
	}
	p.generationURL = srv.URL + "/generation"
	return p
}

func TestFetchGenerationCost_OK(t *testing.T) {
	var gotAuth, gotID string
	p := newCostTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.URL.Query().Get("id")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data": {"total_cost": 0.00325}}`))
	})

	cost, err := p.FetchGenerationCost(context.Background(), "gen-123")
	if err != nil {
		t.Fatalf("FetchGenerationCost() error = %v", err)
	}
	if cost != 0.00325 {
		t.Errorf("cost = %v, want 0.00325", cost)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer credential", gotAuth)
	}
	if gotID != "gen-123" {
		t.Errorf("id = %q, want gen-123", gotID)
	}
}

func TestFetchGenerationCost_NotReady(t *testing.T) {
	p := newCostTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := p.FetchGenerationCost(context.Background(), "gen-404")
	if !errors.Is(err, ErrCostNotReady) {
		t.Errorf("error = %v, want ErrCostNotReady", err)
	}
}

func TestFetchGenerationCost_ServerError(t *testing.T) {
	p := newCostTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.FetchGenerationCost(context.Background(), "gen-500")
	if err == nil {
		t.Fatal("FetchGenerationCost() error = nil, want error")
	}
	if errors.Is(err, ErrCostNotReady) {
		t.Error("500 should not classify as ErrCostNotReady")
	}
}

func TestFetchGenerationCost_EmptyID(t *testing.T) {
	p := newCostTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be issued for an empty generation ID")
	})

	if _, err := p.FetchGenerationCost(context.Background(), ""); err == nil {
		t.Fatal("FetchGenerationCost() error = nil, want error")
	}
}

func TestNewOpenRouterProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenRouterProvider(ProviderConfig{}); err == nil {
		t.Fatal("NewOpenRouterProvider() error = nil, want error")
	}
}

func TestOpenRouterProvider_CostTrackingScope(t *testing.T) {
	p, err := NewOpenRouterProvider(ProviderConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider() error = %v", err)
	}
	if !p.SupportsGenerationCost() {
		t.Error("default endpoint should support generation cost lookup")
	}

	custom, err := NewOpenRouterProvider(ProviderConfig{APIKey: "k", BaseURL: "https://api.openai.com/v1"})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider() error = %v", err)
	}
	if custom.SupportsGenerationCost() {
		t.Error("custom base URL should not support generation cost lookup")
	}
}
