package adapters

import (
	"context"

	clientsrepo "quote_pipeline_backend/internal/clients/repository"
	"quote_pipeline_backend/internal/quotes/service"

	"github.com/google/uuid"
)

// ClientSource is the clients-module lookup the adapter reads from.
type ClientSource interface {
	GetClient(ctx context.Context, id uuid.UUID) (*clientsrepo.Client, error)
}

// ClientReaderAdapter implements service.ClientReader on top of the clients module.
type ClientReaderAdapter struct {
	src ClientSource
}

func NewClientReaderAdapter(src ClientSource) *ClientReaderAdapter {
	return &ClientReaderAdapter{src: src}
}

func (a *ClientReaderAdapter) GetClientInfo(ctx context.Context, id uuid.UUID) (*service.ClientInfo, error) {
	c, err := a.src.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	return &service.ClientInfo{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Company: c.Company,
	}, nil
}

var _ service.ClientReader = (*ClientReaderAdapter)(nil)
