// Package invoicing talks to the external invoicing/compliance gateway and
// owns the retry and idempotency rules for pushing a quote there.
package invoicing

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
	"unicode/utf8"

	"quote_pipeline_backend/platform/config"
)

const (
	httpHeaderAuthorization  = "Authorization"
	httpHeaderContentType    = "Content-Type"
	httpHeaderAccept         = "Accept"
	httpHeaderIdempotencyKey = "Idempotency-Key"
	authorizationBearer      = "Bearer "
	mimeApplicationJSON      = "application/json"

	maxResponseSize = 2 << 20
	maxDetailLength = 500
)

// PayloadClient is the client identity sent with a quote.
type PayloadClient struct {
	Name    string  `json:"name"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
}

// PayloadItem is one line of the quote as the gateway expects it.
type PayloadItem struct {
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price"`
}

// Payload is the canonical quote document pushed to the gateway.
type Payload struct {
	Reference           string        `json:"reference"`
	Client              PayloadClient `json:"client"`
	Items               []PayloadItem `json:"items"`
	TaxRate             float64       `json:"tax_rate"`
	DiscountRate        float64       `json:"discount_rate"`
	SubtotalCents       int64         `json:"subtotal"`
	TaxAmountCents      int64         `json:"tax_amount"`
	DiscountAmountCents int64         `json:"discount_amount"`
	TotalCents          int64         `json:"total"`
	ValidUntil          *time.Time    `json:"valid_until,omitempty"`
	Notes               string        `json:"notes,omitempty"`
}

// CreateResult is the gateway's answer to createQuote.
type CreateResult struct {
	ID  string
	Raw json.RawMessage
}

// SendResult is the gateway's answer to send.
type SendResult struct {
	Status string
	Raw    json.RawMessage
}

// Gateway is the external invoicing service. idempotencyKey lets a gateway
// that supports it deduplicate creates on its side too.
type Gateway interface {
	CreateQuote(ctx context.Context, idempotencyKey string, payload Payload) (CreateResult, error)
	Send(ctx context.Context, externalID string) (SendResult, error)
}

// HTTPGateway is the JSON-over-HTTPS Gateway client. Timeouts come from the
// caller's context; the retry loop gives each attempt its own deadline.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway builds a client for the configured gateway.
func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.GetGatewayURL(), "/"),
		apiKey:  cfg.GetGatewayAPIKey(),
		client:  &http.Client{},
	}
}

type createResponse struct {
	ID string `json:"id"`
}

type sendResponse struct {
	Status string `json:"status"`
}

// CreateQuote calls POST /quotes.
func (g *HTTPGateway) CreateQuote(ctx context.Context, idempotencyKey string, payload Payload) (CreateResult, error) {
	raw, err := g.post(ctx, "/quotes", idempotencyKey, payload)
	if err != nil {
		return CreateResult{}, err
	}

	var resp createResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return CreateResult{}, fmt.Errorf("decode gateway create response: %w", err)
	}
	if resp.ID == "" {
		return CreateResult{}, &RejectedError{StatusCode: http.StatusOK, Detail: "gateway quote id missing in response"}
	}
	return CreateResult{ID: resp.ID, Raw: raw}, nil
}

// Send calls POST /quotes/{id}/send.
func (g *HTTPGateway) Send(ctx context.Context, externalID string) (SendResult, error) {
	raw, err := g.post(ctx, "/quotes/"+url.PathEscape(externalID)+"/send", "", nil)
	if err != nil {
		return SendResult{}, err
	}

	var resp sendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			return SendResult{}, fmt.Errorf("decode gateway send response: %w", err)
		}
	}
	return SendResult{Status: resp.Status, Raw: raw}, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, body interface{}) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		rawBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set(httpHeaderAuthorization, authorizationBearer+g.apiKey)
	req.Header.Set(httpHeaderAccept, mimeApplicationJSON)
	req.Header.Set(httpHeaderContentType, mimeApplicationJSON)
	if idempotencyKey != "" {
		req.Header.Set(httpHeaderIdempotencyKey, idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, err
		}
		return nil, NewTransientError(fmt.Errorf("gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read gateway response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// truncateDetail cuts s to at most maxDetailLength bytes without splitting a
// UTF-8 sequence.
func truncateDetail(s string) string {
	if len(s) <= maxDetailLength {
		return s
	}
	cut := maxDetailLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// classifyStatus maps a non-2xx answer onto a transient or rejected error.
func classifyStatus(statusCode int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	detail = truncateDetail(detail)

	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return NewTransientError(fmt.Errorf("gateway status %d: %s", statusCode, detail))
	default:
		return &RejectedError{StatusCode: statusCode, Detail: detail}
	}
}

// Unconfigured is used when no gateway URL is set. Every push is rejected,
// so quotes stay in draft rather than being marked sent without a reference.
type Unconfigured struct{}

func (Unconfigured) CreateQuote(context.Context, string, Payload) (CreateResult, error) {
	return CreateResult{}, &RejectedError{Detail: "invoicing gateway is not configured"}
}

func (Unconfigured) Send(context.Context, string) (SendResult, error) {
	return SendResult{}, &RejectedError{Detail: "invoicing gateway is not configured"}
}
