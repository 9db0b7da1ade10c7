package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateClientRequest is the request body for creating a client
type CreateClientRequest struct {
	Name       string  `json:"name" validate:"required,min=1,max=200"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Company    *string `json:"company,omitempty" validate:"omitempty,max=200"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	LeadSource *string `json:"leadSource,omitempty" validate:"omitempty,max=100"`
}

// UpdateClientRequest is the request body for patching a client
type UpdateClientRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Company    *string `json:"company,omitempty" validate:"omitempty,max=200"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
	LeadSource *string `json:"leadSource,omitempty" validate:"omitempty,max=100"`
}

// UpdateStageRequest is the request body for a manual pipeline override
type UpdateStageRequest struct {
	Stage string `json:"stage" validate:"required,pipeline_stage"`
}

// ListClientsRequest defines the query parameters for listing clients
type ListClientsRequest struct {
	Stage     string `form:"stage" validate:"omitempty,pipeline_stage"`
	Search    string `form:"search" validate:"max=200"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=name company stage createdAt updatedAt"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// ClientResponse is the response body for a client
type ClientResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	Company       *string   `json:"company,omitempty"`
	PipelineStage string    `json:"pipelineStage"`
	Notes         *string   `json:"notes,omitempty"`
	LeadSource    *string   `json:"leadSource,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ClientListResponse is the paginated list of clients
type ClientListResponse struct {
	Items      []ClientResponse `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
