package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/logger"
	"quote_pipeline_backend/platform/monitoring"

	"github.com/google/uuid"
)

// Sync ledger states.
const (
	SyncStateCreated = "created"
	SyncStateSent    = "sent"
)

// SyncRecord remembers the upstream id for a quote as soon as the gateway
// hands it out, so a retry after a failed send never creates a second record.
type SyncRecord struct {
	QuoteID    uuid.UUID
	ExternalID string
	State      string
	LastError  *string
	UpdatedAt  time.Time
}

// Ledger persists sync progress per quote.
type Ledger interface {
	// GetSyncRecord returns nil without error when the quote was never pushed.
	GetSyncRecord(ctx context.Context, quoteID uuid.UUID) (*SyncRecord, error)
	RecordSyncCreate(ctx context.Context, quoteID uuid.UUID, externalID string) error
	MarkSyncSent(ctx context.Context, quoteID uuid.UUID) error
	RecordSyncError(ctx context.Context, quoteID uuid.UUID, message string) error
}

// PushRequest is one quote to synchronise.
type PushRequest struct {
	QuoteID uuid.UUID
	// ExternalInvoiceID is the reference already stored on the quote, if any.
	ExternalInvoiceID *string
	Payload           Payload
}

// PushResult is what the caller commits together with the status change.
type PushResult struct {
	ExternalID string          `json:"externalId"`
	Status     string          `json:"status"`
	Created    bool            `json:"created"`
	Response   json.RawMessage `json:"response,omitempty"`
}

// Adapter pushes quotes to the gateway: create (once), then send.
type Adapter struct {
	gateway Gateway
	ledger  Ledger
	retry   retrier
	log     *logger.Logger
}

// NewAdapter wires the adapter. A nil logger discards output and nil metrics
// are skipped.
func NewAdapter(gateway Gateway, ledger Ledger, cfg RetryConfig, log *logger.Logger, metrics *monitoring.Metrics) *Adapter {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("invoicing")
	return &Adapter{
		gateway: gateway,
		ledger:  ledger,
		retry:   retrier{cfg: cfg, log: log, metrics: metrics},
		log:     log,
	}
}

// Push creates the quote upstream unless an external id already exists, then
// transmits it. It never writes the quote row itself: the caller stores the
// status and the returned reference in one write, so an aborted push leaves
// the quote untouched.
func (a *Adapter) Push(ctx context.Context, req PushRequest) (PushResult, error) {
	externalID, err := a.existingExternalID(ctx, req)
	if err != nil {
		return PushResult{}, err
	}

	result := PushResult{ExternalID: externalID}
	if externalID == "" {
		var created CreateResult
		err := a.retry.do(ctx, "create_quote", func(ctx context.Context) error {
			var callErr error
			created, callErr = a.gateway.CreateQuote(ctx, req.QuoteID.String(), req.Payload)
			return callErr
		})
		if err != nil {
			return PushResult{}, a.fail(ctx, req.QuoteID, "create", err)
		}

		// The upstream record exists now; keep its id even if the caller has
		// gone away, otherwise the next attempt would create a duplicate.
		if err := a.ledger.RecordSyncCreate(context.WithoutCancel(ctx), req.QuoteID, created.ID); err != nil {
			return PushResult{}, fmt.Errorf("record gateway id: %w", err)
		}
		result.ExternalID = created.ID
		result.Created = true
		result.Response = created.Raw
	}

	var sent SendResult
	err = a.retry.do(ctx, "send_quote", func(ctx context.Context) error {
		var callErr error
		sent, callErr = a.gateway.Send(ctx, result.ExternalID)
		return callErr
	})
	if err != nil {
		return PushResult{}, a.fail(ctx, req.QuoteID, "send", err)
	}

	if err := a.ledger.MarkSyncSent(context.WithoutCancel(ctx), req.QuoteID); err != nil {
		return PushResult{}, fmt.Errorf("mark gateway send: %w", err)
	}

	result.Status = sent.Status
	if len(sent.Raw) > 0 {
		result.Response = sent.Raw
	}
	return result, nil
}

func (a *Adapter) existingExternalID(ctx context.Context, req PushRequest) (string, error) {
	if req.ExternalInvoiceID != nil && *req.ExternalInvoiceID != "" {
		return *req.ExternalInvoiceID, nil
	}
	rec, err := a.ledger.GetSyncRecord(ctx, req.QuoteID)
	if err != nil {
		return "", fmt.Errorf("load sync record: %w", err)
	}
	if rec == nil {
		return "", nil
	}
	return rec.ExternalID, nil
}

// fail records the error for staff and converts it to the domain taxonomy.
func (a *Adapter) fail(ctx context.Context, quoteID uuid.UUID, step string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if ledgerErr := a.ledger.RecordSyncError(context.WithoutCancel(ctx), quoteID, err.Error()); ledgerErr != nil {
		a.log.WithContext(ctx).Warn("failed to record sync error", "quote_id", quoteID, "error", ledgerErr)
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return apperr.SyncRejected(fmt.Sprintf("gateway rejected quote at %s step", step), err).
			WithOp("invoicing.push").
			WithDetails(map[string]interface{}{
				"step":   step,
				"status": rejected.StatusCode,
				"detail": rejected.Detail,
			})
	}
	return apperr.SyncTransient(fmt.Sprintf("gateway unavailable at %s step", step), err).
		WithOp("invoicing.push").
		WithDetails(map[string]interface{}{"step": step, "detail": err.Error()})
}
