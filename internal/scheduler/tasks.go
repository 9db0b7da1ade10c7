package scheduler

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskQuoteExpire moves one sent quote to expired once its validity has passed.
const TaskQuoteExpire = "quotes.expire"

type QuoteExpirePayload struct {
	QuoteID string `json:"quoteId"`
}

func NewQuoteExpireTask(quoteID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(QuoteExpirePayload{QuoteID: quoteID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpire, data), nil
}

func ParseQuoteExpirePayload(task *asynq.Task) (QuoteExpirePayload, error) {
	var payload QuoteExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return QuoteExpirePayload{}, err
	}
	return payload, nil
}

// quoteExpireTaskID dedupes expiry tasks per quote and deadline, so a resend
// after reopen queues a fresh task.
func quoteExpireTaskID(quoteID uuid.UUID, unix int64) string {
	return "quote-expire:" + quoteID.String() + ":" + strconv.FormatInt(unix, 10)
}
