package nexus

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/nexus/invoices/5" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		user, _, ok := r.BasicAuth()
		if !ok || user != "nexus-key" {
			t.Fatalf("expected basic auth with api key, got %q", user)
		}
		_, _ = w.Write([]byte(`{"id":5,"title":"Invoice","status":"pending","total":{"currency":"USD","amount":"19.99"},"viewUrl":"https://nexus.example/invoices/5","checkoutUrl":"https://nexus.example/checkout"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "nexus-key"})
	invoice, err := client.GetInvoice(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invoice.ID != 5 || invoice.Total == nil || invoice.Total.Amount != "19.99" {
		t.Fatalf("unexpected invoice: %+v", invoice)
	}
	if invoice.ViewURL != "https://nexus.example/invoices/5" {
		t.Fatalf("unexpected view url %q", invoice.ViewURL)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "nexus-key"})
	_, err := client.GetTransaction(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApproveTransaction(t *testing.T) {
	var gotMethod, gotBody, gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "nexus-key"})
	if err := client.ApproveTransaction(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotBody != "status=okay" {
		t.Fatalf("unexpected form body %q", gotBody)
	}
}

func TestRefundTransaction(t *testing.T) {
	var gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "nexus-key"})
	if err := client.RefundTransaction(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody != "status=rfnd" {
		t.Fatalf("unexpected form body %q", gotBody)
	}
}

func TestRequestFailsWithoutBaseURL(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.GetInvoice(context.Background(), 5); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestRequestSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream broke"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "nexus-key"})
	err := client.ApproveTransaction(context.Background(), 42)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a request error, got %v", err)
	}
}
