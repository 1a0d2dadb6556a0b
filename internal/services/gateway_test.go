package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewGatewayClientRequiresToken(t *testing.T) {
	if _, err := NewGatewayClient("https://gateway.test", "  ", time.Second); err == nil {
		t.Fatal("NewGatewayClient with blank token should fail")
	}
	if _, err := NewGatewayClient("https://gateway.test", "TEST-token", time.Second); err != nil {
		t.Fatalf("NewGatewayClient returned error: %v", err)
	}
}

func TestGatewayClientGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/payments/123456" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer TEST-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":123456,"status":"approved","status_detail":"accredited","external_reference":"{\"userId\":\"u1\",\"courseId\":\"c1\"}","transaction_amount":1500.5,"currency_id":"BRL"}`)
	}))
	defer srv.Close()

	client, err := NewGatewayClient(srv.URL+"/", "TEST-token", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	payment, err := client.GetPayment(context.Background(), "123456")
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if payment.ID != "123456" || payment.Status != GatewayStatusApproved || payment.StatusDetail != "accredited" {
		t.Errorf("unexpected payment %+v", payment)
	}
	if payment.ExternalReference != `{"userId":"u1","courseId":"c1"}` {
		t.Errorf("ExternalReference = %q", payment.ExternalReference)
	}
	if !payment.Amount.Equal(decimal.RequireFromString("1500.5")) {
		t.Errorf("Amount = %s", payment.Amount)
	}
	if !json.Valid(payment.Raw) {
		t.Error("Raw should hold the response body")
	}
}

func TestGatewayClientCreatePreference(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"pref-1","init_point":"https://gateway.test/checkout?pref_id=pref-1","sandbox_init_point":"https://sandbox.gateway.test/checkout?pref_id=pref-1"}`)
	}))
	defer srv.Close()

	client, _ := NewGatewayClient(srv.URL, "TEST-token", time.Second)
	pref, err := client.CreatePreference(context.Background(), PreferenceInput{
		Item: PreferenceItem{
			ID:         "c1",
			Title:      "Go for Backend Engineers",
			UnitPrice:  decimal.RequireFromString("1500.00"),
			CurrencyID: "BRL",
		},
		BackURLs:          BackURLs{Success: "https://app.test/ok", Failure: "https://app.test/fail", Pending: "https://app.test/wait"},
		ExternalReference: `{"userId":"u1","courseId":"c1"}`,
		NotificationURL:   "https://api.test/payments/webhook",
	})
	if err != nil {
		t.Fatalf("CreatePreference returned error: %v", err)
	}
	if pref.ID != "pref-1" || pref.CheckoutURL != "https://gateway.test/checkout?pref_id=pref-1" {
		t.Errorf("unexpected preference %+v", pref)
	}

	items, _ := received["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items = %v; want one item", received["items"])
	}
	item := items[0].(map[string]interface{})
	if item["unit_price"] != 1500.0 || item["quantity"] != 1.0 || item["currency_id"] != "BRL" {
		t.Errorf("unexpected item %v", item)
	}
	if received["auto_return"] != "approved" || received["notification_url"] != "https://api.test/payments/webhook" {
		t.Errorf("unexpected body %v", received)
	}
}

func TestGatewayClientErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{name: "not found with message", status: http.StatusNotFound, body: `{"message":"Payment not found","error":"not_found","status":404}`, wantMessage: "Payment not found"},
		{name: "unauthorized with error only", status: http.StatusUnauthorized, body: `{"error":"unauthorized"}`, wantMessage: "unauthorized"},
		{name: "empty body", status: http.StatusBadGateway, body: ``, wantMessage: "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client, _ := NewGatewayClient(srv.URL, "TEST-token", time.Second)
			_, err := client.GetPayment(context.Background(), "42")

			var gwErr *GatewayError
			if !errors.As(err, &gwErr) {
				t.Fatalf("error = %v; want *GatewayError", err)
			}
			if gwErr.StatusCode != tt.status || gwErr.Message != tt.wantMessage {
				t.Errorf("GatewayError = %+v; want status %d message %q", gwErr, tt.status, tt.wantMessage)
			}
		})
	}
}

func TestGatewayClientUnusableSuccessBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(*GatewayClient) error
	}{
		{
			name: "preference not json",
			body: `<html>maintenance</html>`,
			call: func(c *GatewayClient) error {
				_, err := c.CreatePreference(context.Background(), PreferenceInput{})
				return err
			},
		},
		{
			name: "preference without id",
			body: `{"init_point":"https://gateway.test/checkout"}`,
			call: func(c *GatewayClient) error {
				_, err := c.CreatePreference(context.Background(), PreferenceInput{})
				return err
			},
		},
		{
			name: "payment not json",
			body: `{"id":`,
			call: func(c *GatewayClient) error {
				_, err := c.GetPayment(context.Background(), "42")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client, _ := NewGatewayClient(srv.URL, "TEST-token", time.Second)
			err := tt.call(client)

			var gwErr *GatewayError
			if !errors.As(err, &gwErr) {
				t.Fatalf("error = %v; want *GatewayError", err)
			}
			if gwErr.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d; want %d", gwErr.StatusCode, http.StatusOK)
			}
		})
	}
}

func TestGatewayClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client, _ := NewGatewayClient(srv.URL, "TEST-token", 20*time.Millisecond)
	_, err := client.GetPayment(context.Background(), "42")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("error = %v; want *GatewayError", err)
	}
	if gwErr.StatusCode != 0 || gwErr.Err == nil {
		t.Errorf("timeout should be a transport GatewayError, got %+v", gwErr)
	}
}
