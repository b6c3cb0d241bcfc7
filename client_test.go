package patstat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const tokenPath = "/oauth2/aus3up3nz0N133c0V417/v1/token"

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if config.BaseURL != "https://publication-bdds.apps.epo.org" {
		t.Errorf("Expected BaseURL to be https://publication-bdds.apps.epo.org, got %s", config.BaseURL)
	}
	if config.TokenURL != "https://login.epo.org"+tokenPath {
		t.Errorf("Unexpected TokenURL %s", config.TokenURL)
	}
	if config.API != APIBDDS {
		t.Errorf("Expected API bdds, got %s", config.API)
	}
	if config.Timeout != 0 {
		t.Errorf("Expected no timeout by default, got %d", config.Timeout)
	}
}

// TestNewClient_WithoutCredentials tests that NewClient works without credentials
func TestNewClient_WithoutCredentials(t *testing.T) {
	client, err := NewClient(&Config{})
	if err != nil {
		t.Errorf("Expected no error when creating client without credentials, got: %v", err)
	}
	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.config.BaseURL != defaultBaseURL {
		t.Errorf("Expected default BaseURL, got %s", client.config.BaseURL)
	}
}

// TestNewCatalog tests variant selection
func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(&Config{API: APIBDDS})
	if err != nil {
		t.Fatalf("NewCatalog(bdds) failed: %v", err)
	}
	if _, ok := c.(*Client); !ok {
		t.Errorf("Expected *Client, got %T", c)
	}

	c, err = NewCatalog(&Config{API: APILegacy})
	if err != nil {
		t.Fatalf("NewCatalog(legacy) failed: %v", err)
	}
	if _, ok := c.(*LegacyClient); !ok {
		t.Errorf("Expected *LegacyClient, got %T", c)
	}

	if _, err := NewCatalog(&Config{API: "soap"}); err == nil {
		t.Error("Expected error for unknown variant")
	}
}

// mockBDDS serves the token endpoint and the BDDS API from one server.
type mockBDDS struct {
	server    *httptest.Server
	tokenHits int
	downloads []string
	authz     []string
	tokenCode int
}

func newMockBDDS(t *testing.T) *mockBDDS {
	m := &mockBDDS{tokenCode: http.StatusOK}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			m.tokenHits++
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST to token endpoint, got %s", r.Method)
			}
			if got := r.Header.Get("Authorization"); got != "Basic "+clientID {
				t.Errorf("Unexpected client authorization %q", got)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm: %v", err)
			}
			if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("scope") != "openid" {
				t.Errorf("Unexpected token form %v", r.PostForm)
			}
			w.Header().Set("Content-Type", "application/json")
			if m.tokenCode != http.StatusOK || r.PostForm.Get("password") != "test-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"The credentials provided were invalid."}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "test-token-12345",
				"token_type":   "Bearer",
				"expires_in":   3600,
				"scope":        "openid",
				"id_token":     "test-id-token",
			})
			return
		}

		// Check auth header
		auth := r.Header.Get("Authorization")
		m.authz = append(m.authz, auth)
		if auth != "Bearer test-token-12345" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/bdds/bdds-bff-service/prod/api/products/":
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{
					"id":          3,
					"name":        "EP DocDB front file",
					"description": "EP DocDB front file - bibliographic data",
				},
				{
					"id":          17,
					"name":        "PATSTAT Global",
					"description": "Worldwide patent statistical database",
				},
			})

		case strings.HasSuffix(r.URL.Path, "/download"):
			// File download - check this before products/{id}
			m.downloads = append(m.downloads, r.URL.Path)
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Length", "17")
			w.Write([]byte("test-file-content"))

		case r.URL.Path == "/bdds/bdds-bff-service/prod/api/products/17":
			// Older delivery listed first: selection must not depend on order
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":          17,
				"name":        "PATSTAT Global",
				"description": "Worldwide patent statistical database",
				"deliveries": []map[string]interface{}{
					{
						"deliveryId":                  500,
						"deliveryName":                "PATSTAT Global 2024 Spring",
						"deliveryPublicationDatetime": "2024-04-10T08:00:00Z",
						"deliveryExpiryDatetime":      nil,
						"files": []map[string]interface{}{
							{
								"fileId":                  5001,
								"fileName":                "data_PATSTAT_Global_20240410_01.zip",
								"fileSize":                "9.8 GB",
								"fileChecksum":            "b2c3d4e5f6a1",
								"filePublicationDatetime": "2024-04-10T08:00:00Z",
							},
						},
					},
					{
						"deliveryId":                  600,
						"deliveryName":                "PATSTAT Global 2024 Autumn",
						"deliveryPublicationDatetime": "2024-10-15T10:30:00Z",
						"deliveryExpiryDatetime":      "2025-10-15T10:30:00Z",
						"files": []map[string]interface{}{
							{
								"fileId":                  6001,
								"fileName":                "data_PATSTAT_Global_20241015_01.zip",
								"fileSize":                "10.1 GB",
								"fileChecksum":            "a1b2c3d4e5f6",
								"filePublicationDatetime": "2024-10-15T10:30:00Z",
							},
							{
								"fileId":                  6002,
								"fileName":                "data_PATSTAT_Global_20241015_02.zip",
								"fileSize":                "10.4 GB",
								"fileChecksum":            "f6e5d4c3b2a1",
								"filePublicationDatetime": "2024-10-15T10:30:00Z",
							},
						},
					},
				},
			})

		case r.URL.Path == "/bdds/bdds-bff-service/prod/api/products/18":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id": 18, "name": "Empty", "description": "", "deliveries": []interface{}{},
			})

		case r.URL.Path == "/bdds/bdds-bff-service/prod/api/products/429":
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)

		case r.URL.Path == "/bdds/bdds-bff-service/prod/api/products/500":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom"}`))

		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockBDDS) client(t *testing.T, password string) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		Username:  "test-user",
		Password:  password,
		BaseURL:   m.server.URL,
		TokenURL:  m.server.URL + tokenPath,
		UserAgent: "Test/1.0",
		Timeout:   10,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

// TestClientWithMockServer tests all client methods with mock server
func TestClientWithMockServer(t *testing.T) {
	mock := newMockBDDS(t)
	client := mock.client(t, "test-pass")
	ctx := context.Background()

	if err := client.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	t.Run("ListProducts", func(t *testing.T) {
		products, err := client.ListProducts(ctx)
		if err != nil {
			t.Fatalf("ListProducts failed: %v", err)
		}
		if len(products) != 2 {
			t.Fatalf("Expected 2 products, got %d", len(products))
		}
		if products[0].ID != "3" {
			t.Errorf("Expected first product ID to be 3, got %s", products[0].ID)
		}
		if products[1].Name != "PATSTAT Global" {
			t.Errorf("Expected product name 'PATSTAT Global', got %s", products[1].Name)
		}
	})

	t.Run("GetProduct", func(t *testing.T) {
		product, err := client.GetProduct(ctx, 17)
		if err != nil {
			t.Fatalf("GetProduct failed: %v", err)
		}
		if product.ID != "17" {
			t.Errorf("Expected product ID 17, got %s", product.ID)
		}
		if len(product.Deliveries) != 2 {
			t.Fatalf("Expected 2 deliveries, got %d", len(product.Deliveries))
		}
		d := product.Deliveries[1]
		if d.ID != "600" || d.ProductID != "17" {
			t.Errorf("Unexpected delivery ids %s/%s", d.ProductID, d.ID)
		}
		if d.Version != "2024_Autumn" {
			t.Errorf("Expected version 2024_Autumn, got %s", d.Version)
		}
		if d.ExpiryDatetime == nil {
			t.Error("Expected expiry datetime")
		}
		if len(d.Files) != 2 {
			t.Fatalf("Expected 2 files, got %d", len(d.Files))
		}
		f := d.Files[0]
		if f.ID != "6001" || f.DeliveryID != "600" || f.ProductID != "17" {
			t.Errorf("Unexpected file ids %s/%s/%s", f.ProductID, f.DeliveryID, f.ID)
		}
		if f.Checksum != "a1b2c3d4e5f6" {
			t.Errorf("Expected checksum to be carried, got %q", f.Checksum)
		}
	})

	t.Run("GetProduct_NotFound", func(t *testing.T) {
		_, err := client.GetProduct(ctx, 999)
		if err == nil {
			t.Fatal("Expected error for non-existent product")
		}
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("Expected NotFoundError, got %T: %v", err, err)
		}
	})

	t.Run("GetProduct_RateLimited", func(t *testing.T) {
		_, err := client.GetProduct(ctx, 429)
		var rl *RateLimitError
		if !errors.As(err, &rl) {
			t.Fatalf("Expected RateLimitError, got %T: %v", err, err)
		}
		if rl.RetryAfter != 60 {
			t.Errorf("Expected RetryAfter 60, got %d", rl.RetryAfter)
		}
	})

	t.Run("GetProduct_ServerError", func(t *testing.T) {
		_, err := client.GetProduct(ctx, 500)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected APIError, got %T: %v", err, err)
		}
		if apiErr.Action != "get product" || apiErr.StatusCode != 500 {
			t.Errorf("Unexpected APIError %+v", apiErr)
		}
		if !strings.Contains(PrettyBody(apiErr.Body), `"message": "boom"`) {
			t.Errorf("Expected pretty body, got %q", PrettyBody(apiErr.Body))
		}
	})

	t.Run("GetLatestDelivery", func(t *testing.T) {
		delivery, err := client.GetLatestDelivery(ctx, &Product{ID: "17", Name: "PATSTAT Global"})
		if err != nil {
			t.Fatalf("GetLatestDelivery failed: %v", err)
		}
		if delivery.ID != "600" {
			t.Errorf("Expected latest delivery ID 600, got %s", delivery.ID)
		}
		if delivery.Name != "PATSTAT Global 2024 Autumn" {
			t.Errorf("Expected latest delivery name PATSTAT Global 2024 Autumn, got %s", delivery.Name)
		}
	})

	t.Run("GetLatestDelivery_NoDeliveries", func(t *testing.T) {
		_, err := client.GetLatestDelivery(ctx, &Product{ID: "18"})
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("Expected NotFoundError, got %T: %v", err, err)
		}
	})

	t.Run("DownloadFile", func(t *testing.T) {
		var buf bytes.Buffer
		file := &DeliveryFile{ID: "6001", ProductID: "17", DeliveryID: "600", Name: "a.zip"}
		if err := client.DownloadFile(ctx, file, &buf, nil); err != nil {
			t.Fatalf("DownloadFile failed: %v", err)
		}
		if buf.String() != "test-file-content" {
			t.Errorf("Expected content 'test-file-content', got '%s'", buf.String())
		}
		want := "/bdds/bdds-bff-service/prod/api/products/17/delivery/600/file/6001/download"
		if got := mock.downloads[len(mock.downloads)-1]; got != want {
			t.Errorf("Expected download path %s, got %s", want, got)
		}
	})

	t.Run("DownloadFileWithProgress", func(t *testing.T) {
		var buf bytes.Buffer
		progressCalled := false
		file := &DeliveryFile{ID: "6002", ProductID: "17", DeliveryID: "600", Name: "b.zip"}
		err := client.DownloadFile(ctx, file, &buf, func(current, total int64) {
			progressCalled = true
			if total != 17 {
				t.Errorf("Expected total bytes 17, got %d", total)
			}
		})
		if err != nil {
			t.Fatalf("DownloadFile failed: %v", err)
		}
		if !progressCalled {
			t.Error("Progress callback was not called")
		}
	})

	t.Run("DownloadFile_InvalidIDs", func(t *testing.T) {
		err := client.DownloadFile(ctx, &DeliveryFile{ID: "x", ProductID: "17", DeliveryID: "600"}, io.Discard, nil)
		if err == nil {
			t.Error("Expected error for non-numeric file id")
		}
	})

	if mock.tokenHits != 1 {
		t.Errorf("Expected exactly one token request, got %d", mock.tokenHits)
	}
	for _, a := range mock.authz {
		if a != "Bearer test-token-12345" {
			t.Errorf("Unexpected Authorization header %q", a)
		}
	}
}

// TestAuthenticate_Failure tests that a non-200 token response is reported
func TestAuthenticate_Failure(t *testing.T) {
	mock := newMockBDDS(t)
	client := mock.client(t, "wrong")

	err := client.Authenticate(context.Background())
	if err == nil {
		t.Fatal("Expected authentication error")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %T", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", authErr.StatusCode)
	}
	if authErr.Action != "get access token" {
		t.Errorf("Expected action 'get access token', got %q", authErr.Action)
	}
	if !strings.Contains(err.Error(), "get access token") || !strings.Contains(err.Error(), "401") {
		t.Errorf("Expected action and status in message, got %q", err.Error())
	}
	if Code(err) != CodeUnauthorized {
		t.Errorf("Expected code UNAUTHORIZED, got %s", Code(err))
	}
	if !strings.Contains(PrettyBody(ResponseBody(err)), `"error": "invalid_grant"`) {
		t.Errorf("Expected pretty JSON body, got %q", PrettyBody(ResponseBody(err)))
	}
}

// TestAuthenticate_Lazy tests that the first API call authenticates
func TestAuthenticate_Lazy(t *testing.T) {
	mock := newMockBDDS(t)
	client := mock.client(t, "test-pass")

	if _, err := client.ListProducts(context.Background()); err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if mock.tokenHits != 1 {
		t.Errorf("Expected one token request, got %d", mock.tokenHits)
	}
}

// TestClose tests that Close drops the token
func TestClose(t *testing.T) {
	mock := newMockBDDS(t)
	client := mock.client(t, "test-pass")
	ctx := context.Background()

	if err := client.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if err := client.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if client.token != "" {
		t.Error("Expected token to be cleared")
	}
}

// TestLatestDelivery tests selection of the newest delivery
func TestLatestDelivery(t *testing.T) {
	t1 := time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	newer := &Delivery{ID: "new", PublicationDatetime: t1}
	older := &Delivery{ID: "old", PublicationDatetime: t2}

	if got := latestDelivery([]*Delivery{older, newer}); got != newer {
		t.Errorf("Expected newer delivery, got %s", got.ID)
	}
	if got := latestDelivery([]*Delivery{newer, older}); got != newer {
		t.Errorf("Expected newer delivery, got %s", got.ID)
	}

	input := []*Delivery{older, newer}
	latestDelivery(input)
	if input[0] != older {
		t.Error("latestDelivery must not reorder its input")
	}

	tieA := &Delivery{ID: "a", PublicationDatetime: t1}
	tieB := &Delivery{ID: "b", PublicationDatetime: t1}
	if got := latestDelivery([]*Delivery{tieA, tieB}); got != tieA {
		t.Errorf("Expected listed order on ties, got %s", got.ID)
	}

	if latestDelivery(nil) != nil {
		t.Error("Expected nil for no deliveries")
	}
}

// TestEditionFromName tests version directory naming
func TestEditionFromName(t *testing.T) {
	tests := map[string]string{
		"PATSTAT Global 2024 Autumn": "2024_Autumn",
		"2023 Spring":                "2023_Spring",
		"2022":                       "2022",
		"  PATSTAT  2021  Autumn ":   "2021_Autumn",
	}
	for in, want := range tests {
		if got := editionFromName(in); got != want {
			t.Errorf("editionFromName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := normalizeVersion(" 2021 Spring Edition "); got != "2021_Spring_Edition" {
		t.Errorf("normalizeVersion = %q", got)
	}
}

// TestFindProduct tests product selection by substring
func TestFindProduct(t *testing.T) {
	products := []*Product{
		{ID: "3", Name: "EP DocDB front file"},
		{ID: "17", Name: "PATSTAT Global"},
		{ID: "18", Name: "PATSTAT Global (back file)"},
	}

	p, err := FindProduct(products, "PATSTAT Global")
	if err != nil {
		t.Fatalf("FindProduct failed: %v", err)
	}
	if p.ID != "18" {
		t.Errorf("Expected last match 18, got %s", p.ID)
	}

	// A sample product listed before the real one is not selected
	p, err = FindProduct([]*Product{
		{ID: "1", Name: "PATSTAT Global Sample"},
		{ID: "2", Name: "PATSTAT Global"},
	}, "PATSTAT Global")
	if err != nil {
		t.Fatalf("FindProduct failed: %v", err)
	}
	if p.ID != "2" {
		t.Errorf("Expected 2, got %s (%s)", p.ID, p.Name)
	}

	_, err = FindProduct(products[:1], "PATSTAT Global")
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("Expected ForbiddenError, got %T", err)
	}
	if err.Error() != "these credentials do not allow access to PATSTAT Global" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

// TestErrorTypes tests custom error types
func TestErrorTypes(t *testing.T) {
	t.Run("AuthError", func(t *testing.T) {
		err := &AuthError{Action: "connect", StatusCode: 401, Message: "invalid credentials"}
		if err.Error() != "connect: authentication failed (status 401): invalid credentials" {
			t.Errorf("Unexpected error message: %s", err.Error())
		}
	})

	t.Run("NotFoundError", func(t *testing.T) {
		err := &NotFoundError{Resource: "product", ID: "123"}
		if err.Error() != "product not found: 123" {
			t.Errorf("Unexpected error message: %s", err.Error())
		}
	})

	t.Run("RateLimitError", func(t *testing.T) {
		err := &RateLimitError{RetryAfter: 60}
		if err.Error() != "rate limited, retry after 60 seconds" {
			t.Errorf("Unexpected error message: %s", err.Error())
		}
	})

	t.Run("Code", func(t *testing.T) {
		if Code(nil) != "" {
			t.Error("Expected empty code for nil")
		}
		if Code(errors.New("plain")) != CodeUnknown {
			t.Error("Expected UNKNOWN for plain errors")
		}
		wrapped := errors.Join(errors.New("context"), &ForbiddenError{Product: "x"})
		if Code(wrapped) != CodeForbidden {
			t.Errorf("Expected FORBIDDEN through wrapping, got %s", Code(wrapped))
		}
	})

	t.Run("PrettyBody", func(t *testing.T) {
		if PrettyBody([]byte("<html/>")) != "" {
			t.Error("Expected empty string for non-JSON body")
		}
	})
}

// TestProgressReader tests the progress reader
func TestProgressReader(t *testing.T) {
	data := []byte("test content for progress tracking")
	reader := bytes.NewReader(data)

	var progressCalls int
	var lastCurrent, lastTotal int64

	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		progressFn: func(current, total int64) {
			progressCalls++
			lastCurrent = current
			lastTotal = total
		},
	}

	// Read all data
	buf, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}

	if string(buf) != string(data) {
		t.Error("Data mismatch")
	}

	if progressCalls == 0 {
		t.Error("Progress function was not called")
	}

	if lastCurrent != int64(len(data)) {
		t.Errorf("Expected final current %d, got %d", len(data), lastCurrent)
	}

	if lastTotal != int64(len(data)) {
		t.Errorf("Expected final total %d, got %d", len(data), lastTotal)
	}
}
