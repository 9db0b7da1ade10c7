package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// QuoteItemRequest is the input for a single line item
type QuoteItemRequest struct {
	Description    string  `json:"description" validate:"required,max=1000"`
	Quantity       float64 `json:"quantity" validate:"gte=0,lte=999999999"`
	UnitPriceCents int64   `json:"unitPriceCents" validate:"gte=0,lte=100000000000"`
}

// CreateQuoteRequest is the request body for creating a new quote
type CreateQuoteRequest struct {
	ClientID     uuid.UUID          `json:"clientId" validate:"required"`
	TaxRate      *float64           `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	DiscountRate *float64           `json:"discountRate" validate:"omitempty,gte=0,lte=100"`
	ExpiresAt    *time.Time         `json:"expiresAt"`
	Notes        string             `json:"notes" validate:"max=5000"`
	Items        []QuoteItemRequest `json:"items" validate:"omitempty,max=200,dive"`
}

// UpdateQuoteRequest is the request body for patching a quote header
type UpdateQuoteRequest struct {
	TaxRate      *float64   `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	DiscountRate *float64   `json:"discountRate" validate:"omitempty,gte=0,lte=100"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	Notes        *string    `json:"notes" validate:"omitempty,max=5000"`
}

// ReplaceItemsRequest is the request body for replacing all line items
type ReplaceItemsRequest struct {
	Items []QuoteItemRequest `json:"items" validate:"max=200,dive"`
}

// UpdateQuoteStatusRequest is the request body for moving a quote along its lifecycle.
// Expiry is left to the scheduler and reopening has its own endpoint.
type UpdateQuoteStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=sent viewed accepted refused"`
}

// ReopenQuoteRequest is the request body for the admin reopen action
type ReopenQuoteRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// QuoteCalculationRequest is the request body for the preview calculation endpoint
type QuoteCalculationRequest struct {
	Items        []QuoteItemRequest `json:"items" validate:"required,max=200,dive"`
	TaxRate      *float64           `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	DiscountRate *float64           `json:"discountRate" validate:"omitempty,gte=0,lte=100"`
}

// ListQuotesRequest defines the query parameters for listing quotes
type ListQuotesRequest struct {
	ClientID      string `form:"clientId" validate:"omitempty,uuid"`
	Status        string `form:"status" validate:"omitempty,oneof=draft sent viewed accepted refused expired"`
	Search        string `form:"search" validate:"max=200"`
	CreatedAtFrom string `form:"createdAtFrom" validate:"omitempty,datetime=2006-01-02"`
	CreatedAtTo   string `form:"createdAtTo" validate:"omitempty,datetime=2006-01-02"`
	SortBy        string `form:"sortBy" validate:"omitempty,oneof=quoteNumber status total expiresAt createdAt updatedAt"`
	SortOrder     string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page          int    `form:"page" validate:"omitempty,min=1"`
	PageSize      int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// QuoteItemResponse is the response for a single line item
type QuoteItemResponse struct {
	ID             uuid.UUID `json:"id"`
	Description    string    `json:"description"`
	Quantity       float64   `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	Position       int       `json:"position"`
	LineTotalCents int64     `json:"lineTotalCents"`
}

// QuoteResponse is the response for a single quote
type QuoteResponse struct {
	ID                  uuid.UUID           `json:"id"`
	ClientID            uuid.UUID           `json:"clientId"`
	QuoteNumber         string              `json:"quoteNumber"`
	Status              string              `json:"status"`
	SubtotalCents       int64               `json:"subtotalCents"`
	TaxRate             float64             `json:"taxRate"`
	TaxAmountCents      int64               `json:"taxAmountCents"`
	DiscountRate        float64             `json:"discountRate"`
	DiscountAmountCents int64               `json:"discountAmountCents"`
	TotalCents          int64               `json:"totalCents"`
	Notes               *string             `json:"notes,omitempty"`
	ExternalInvoiceID   *string             `json:"externalInvoiceId,omitempty"`
	CreatedBy           uuid.UUID           `json:"createdBy"`
	SentAt              *time.Time          `json:"sentAt,omitempty"`
	ViewedAt            *time.Time          `json:"viewedAt,omitempty"`
	AcceptedAt          *time.Time          `json:"acceptedAt,omitempty"`
	RefusedAt           *time.Time          `json:"refusedAt,omitempty"`
	ExpiredAt           *time.Time          `json:"expiredAt,omitempty"`
	ExpiresAt           *time.Time          `json:"expiresAt,omitempty"`
	Items               []QuoteItemResponse `json:"items,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// QuoteListResponse is the paginated list of quotes
type QuoteListResponse struct {
	Items      []QuoteResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// QuoteCalculationResponse is the result of a pricing preview
type QuoteCalculationResponse struct {
	Lines               []CalculatedLineItem `json:"lines"`
	SubtotalCents       int64                `json:"subtotalCents"`
	TaxRate             float64              `json:"taxRate"`
	TaxAmountCents      int64                `json:"taxAmountCents"`
	DiscountRate        float64              `json:"discountRate"`
	DiscountAmountCents int64                `json:"discountAmountCents"`
	TotalCents          int64                `json:"totalCents"`
}

// CalculatedLineItem is one priced line of a preview
type CalculatedLineItem struct {
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents"`
	LineTotalCents int64   `json:"lineTotalCents"`
}

// SendQuoteResponse is returned by the send action. Gateway holds the raw
// gateway response so staff can see what the invoicing service answered.
type SendQuoteResponse struct {
	Success           bool            `json:"success"`
	Status            string          `json:"status"`
	ExternalInvoiceID *string         `json:"externalInvoiceId,omitempty"`
	Gateway           json.RawMessage `json:"gateway,omitempty"`
	Error             string          `json:"error,omitempty"`
	Details           interface{}     `json:"details,omitempty"`
	Quote             *QuoteResponse  `json:"quote,omitempty"`
}

// ActivityResponse is one audit trail entry
type ActivityResponse struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   *uuid.UUID     `json:"actorId,omitempty"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PDFResponse points at the archived PDF when object storage is configured
type PDFResponse struct {
	FileKey string `json:"fileKey"`
	URL     string `json:"url"`
}
