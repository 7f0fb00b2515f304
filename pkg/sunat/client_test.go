package sunat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/fiscalflow/platform/pkg/common/config"
	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{
		GatewayBaseURL:     baseURL,
		GatewayStaticToken: "test-token",
		CreateTimeout:      5 * time.Second,
		QueryTimeout:       5 * time.Second,
	})
}

func TestCreateDocumentAsyncResponse(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/documents" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticket_id":"tk-1","accepted":false,"links":{"pdf_url":"","xml_url":"","cdr_url":""}}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).CreateDocument(context.Background(), &models.SubmissionPayload{
		DocumentType: "01", Series: "F001", Number: 42,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if resp.TicketID != "tk-1" {
		t.Fatalf("expected ticket, got %q", resp.TicketID)
	}
	if resp.Links.Complete() {
		t.Fatal("expected incomplete links")
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
}

func TestCreateDocumentRejection(t *testing.T) {
	body := `{"code":"2017","message":"numero de serie invalido"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(body))
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateDocument(context.Background(), &models.SubmissionPayload{})
	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rejection.Body != body {
		t.Fatalf("expected verbatim error body, got %q", rejection.Body)
	}
}

func TestCreateDocumentServerErrorIsNotRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateDocument(context.Background(), &models.SubmissionPayload{})
	if err == nil {
		t.Fatal("expected error on 502")
	}
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		t.Fatal("a 5xx is a transport failure, not a rejection")
	}
}

func TestQueryDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/01/F001/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true,"rejected":false,"links":{"pdf_url":"p","xml_url":"x","cdr_url":"c"}}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).QueryDocument(context.Background(), models.CorrelationPayload{
		DocumentType: "01", Series: "F001", Number: 42,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !resp.Accepted || !resp.Links.Complete() {
		t.Fatalf("unexpected response %+v", resp)
	}
}
