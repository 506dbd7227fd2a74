package docs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/THuebbe/yardsign/internal/app"
	"github.com/THuebbe/yardsign/internal/domain"
)

func snapshot() app.OrderSnapshot {
	return app.OrderSnapshot{
		Tenant: domain.Tenant{Name: "Sunny Signs", Abbreviation: "SUN"},
		Order: domain.Order{
			OrderNumber:    "SUN0042",
			InternalNumber: "SUN-42",
			TotalCents:     4500,
			Customer: domain.Customer{
				Name:      "Pat Jones",
				EventDate: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
			},
		},
		Items: []domain.OrderItem{{ItemID: "item-1", Quantity: 3}},
	}
}

func TestClientGenerate(t *testing.T) {
	generated := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Kind != string(domain.DocPickTicket) {
			t.Errorf("kind = %s", req.Kind)
		}
		if req.Order.OrderNumber != "SUN0042" || req.Tenant.Abbreviation != "SUN" {
			t.Errorf("unexpected payload: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(generateResponse{
			URL:         "https://files.example.com/SUN0042-pick.pdf",
			Filename:    "SUN0042-pick.pdf",
			GeneratedAt: generated,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	doc, err := client.Generate(context.Background(), domain.DocPickTicket, snapshot())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Kind != domain.DocPickTicket {
		t.Errorf("kind = %s", doc.Kind)
	}
	if doc.URL != "https://files.example.com/SUN0042-pick.pdf" || doc.Filename != "SUN0042-pick.pdf" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if !doc.GeneratedAt.Equal(generated) {
		t.Errorf("generated at = %v", doc.GeneratedAt)
	}
}

func TestClientGenerateUpstreamFailures(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "render queue full", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Generate(context.Background(), domain.DocOrderSummary, snapshot())
		if !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := NewClient(srv.URL).Generate(context.Background(), domain.DocOrderSummary, snapshot())
		if !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"url":`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Generate(context.Background(), domain.DocOrderSummary, snapshot())
		if !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	})
}
