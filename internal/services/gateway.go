package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayStatusApproved is the only payment status the reconciler acts on.
const GatewayStatusApproved = "approved"

// GatewayError is returned when the payment gateway answers with a non-2xx status,
// an unusable 2xx body, or cannot be reached. StatusCode is 0 for transport failures and timeouts.
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway request failed: %s", e.Message)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// PaymentFetcher fetches the authoritative state of a gateway payment.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, externalID string) (*GatewayPayment, error)
}

// PreferenceCreator creates hosted checkout pages.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, input PreferenceInput) (*Preference, error)
}

type PreferenceItem struct {
	ID          string
	Title       string
	Description string
	UnitPrice   decimal.Decimal
	CurrencyID  string
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceInput struct {
	Item              PreferenceItem
	BackURLs          BackURLs
	ExternalReference string
	NotificationURL   string
}

type Preference struct {
	ID                 string `json:"id"`
	CheckoutURL        string `json:"init_point"`
	SandboxCheckoutURL string `json:"sandbox_init_point"`
}

// GatewayPayment is the subset of a gateway payment the reconciler needs.
// Raw holds the full response body for auditing.
type GatewayPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            decimal.Decimal
	CurrencyID        string
	Raw               json.RawMessage
}

type preferenceItemBody struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

type preferenceBody struct {
	Items             []preferenceItemBody `json:"items"`
	BackURLs          BackURLs             `json:"back_urls"`
	AutoReturn        string               `json:"auto_return"`
	ExternalReference string               `json:"external_reference"`
	NotificationURL   string               `json:"notification_url,omitempty"`
}

type paymentBody struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
}

// GatewayClient talks to a MercadoPago-compatible checkout API.
type GatewayClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewGatewayClient fails fast when no access token is configured.
func NewGatewayClient(baseURL, accessToken string, timeout time.Duration) (*GatewayClient, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("gateway access token is not configured")
	}
	if baseURL == "" {
		return nil, errors.New("gateway base URL is not configured")
	}
	return &GatewayClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// CreatePreference creates a hosted checkout page for a single item.
func (g *GatewayClient) CreatePreference(ctx context.Context, input PreferenceInput) (*Preference, error) {
	body := preferenceBody{
		Items: []preferenceItemBody{{
			ID:          input.Item.ID,
			Title:       input.Item.Title,
			Description: input.Item.Description,
			Quantity:    1,
			UnitPrice:   input.Item.UnitPrice.InexactFloat64(),
			CurrencyID:  input.Item.CurrencyID,
		}},
		BackURLs:          input.BackURLs,
		AutoReturn:        "approved",
		ExternalReference: input.ExternalReference,
		NotificationURL:   input.NotificationURL,
	}

	raw, status, err := g.do(ctx, http.MethodPost, "/checkout/preferences", body)
	if err != nil {
		return nil, err
	}

	var pref Preference
	if err := json.Unmarshal(raw, &pref); err != nil {
		return nil, &GatewayError{StatusCode: status, Message: "failed to decode preference", Err: err}
	}
	if pref.ID == "" {
		return nil, &GatewayError{StatusCode: status, Message: "preference without id"}
	}
	return &pref, nil
}

// GetPayment fetches a payment by its gateway id.
func (g *GatewayClient) GetPayment(ctx context.Context, externalID string) (*GatewayPayment, error) {
	if externalID == "" {
		return nil, errors.New("payment id is required")
	}

	raw, status, err := g.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, err
	}

	var body paymentBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &GatewayError{StatusCode: status, Message: "failed to decode payment " + externalID, Err: err}
	}

	id := body.ID.String()
	if id == "" {
		id = externalID
	}
	return &GatewayPayment{
		ID:                id,
		Status:            body.Status,
		StatusDetail:      body.StatusDetail,
		ExternalReference: body.ExternalReference,
		Amount:            body.TransactionAmount,
		CurrencyID:        body.CurrencyID,
		Raw:               json.RawMessage(raw),
	}, nil
}

// do sends one request and returns the body and status of a 2xx answer.
func (g *GatewayClient) do(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, &GatewayError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Message: gatewayErrorMessage(resp.StatusCode, data)}
	}
	return data, resp.StatusCode, nil
}

func gatewayErrorMessage(status int, body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		return text
	}
	return http.StatusText(status)
}
