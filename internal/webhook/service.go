package webhook

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/clients/transport"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	duplicateWindow   = 60 * time.Second
	leadSourcePrefix  = "webhook"
	placeholderClient = "Onbekend (webformulier)"
)

// ClientCreator creates clients. Satisfied by the clients service.
type ClientCreator interface {
	Create(ctx context.Context, actor authz.Actor, req transport.CreateClientRequest) (*transport.ClientResponse, error)
}

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, name, keyHash, keyPrefix string, allowedDomains []string) (APIKey, error)
	List(ctx context.Context) ([]APIKey, error)
	Revoke(ctx context.Context, keyID uuid.UUID) error
	FindRecentDuplicateClient(ctx context.Context, email, phone string, within time.Duration) (*uuid.UUID, error)
}

// FormSubmission represents an inbound form submission via the webhook.
type FormSubmission struct {
	Fields       map[string]string
	SourceDomain string
	APIKeyID     uuid.UUID
}

// FormSubmissionResponse is returned to the caller on success.
type FormSubmissionResponse struct {
	ClientID     uuid.UUID         `json:"clientId"`
	IsIncomplete bool              `json:"isIncomplete"`
	Extracted    map[string]string `json:"extractedFields"`
	Message      string            `json:"message"`
}

// Service handles inbound form submissions and API key management.
type Service struct {
	store   Store
	clients ClientCreator
	log     *logger.Logger
}

// NewService creates a new webhook service.
func NewService(store Store, clients ClientCreator, log *logger.Logger) *Service {
	return &Service{store: store, clients: clients, log: log.WithComponent("webhook")}
}

// ProcessFormSubmission extracts contact fields and creates a prospect client.
// A repeat of the same contact within a minute returns the earlier client.
func (s *Service) ProcessFormSubmission(ctx context.Context, sub FormSubmission) (FormSubmissionResponse, error) {
	extracted := ExtractFields(sub.Fields)
	isIncomplete := extracted.IsIncomplete()
	extractedMap := buildExtractedMap(extracted)

	dupID, err := s.store.FindRecentDuplicateClient(ctx, extracted.Email, extracted.Phone, duplicateWindow)
	if err != nil {
		// Better a duplicate client than a lost lead.
		s.log.Error("webhook: failed to check for duplicate client", "error", err, "domain", sub.SourceDomain)
	} else if dupID != nil {
		s.log.Info("webhook: duplicate submission ignored", "client_id", *dupID, "domain", sub.SourceDomain)
		return FormSubmissionResponse{
			ClientID:     *dupID,
			IsIncomplete: isIncomplete,
			Extracted:    extractedMap,
			Message:      "Duplicate submission ignored",
		}, nil
	}

	client, err := s.clients.Create(ctx, authz.SystemActor(), buildCreateClientRequest(extracted, sub))
	if err != nil {
		s.log.Error("webhook: failed to create client from form submission", "error", err, "domain", sub.SourceDomain)
		return FormSubmissionResponse{}, err
	}

	s.log.Info("webhook: client captured", "client_id", client.ID, "domain", sub.SourceDomain, "incomplete", isIncomplete)
	return FormSubmissionResponse{
		ClientID:     client.ID,
		IsIncomplete: isIncomplete,
		Extracted:    extractedMap,
		Message:      "Submission received",
	}, nil
}

func buildCreateClientRequest(e ExtractedFields, sub FormSubmission) transport.CreateClientRequest {
	name := e.Name()
	if name == "" {
		name = placeholderClient
	}
	source := leadSourcePrefix
	if sub.SourceDomain != "" {
		source += ":" + sub.SourceDomain
	}

	req := transport.CreateClientRequest{
		Name:       name,
		Email:      optional(e.Email),
		Phone:      optional(e.Phone),
		Company:    optional(e.Company),
		LeadSource: &source,
	}
	if notes := formNotes(e.Message, sub.Fields); notes != "" {
		req.Notes = &notes
	}
	return req
}

// formNotes keeps the visitor's message and the raw submission so nothing the
// extractor did not recognise is lost.
func formNotes(message string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(message)
	if len(keys) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Formulier:")
		for _, k := range keys {
			b.WriteString("\n" + k + ": " + fields[k])
		}
	}
	return b.String()
}

func buildExtractedMap(e ExtractedFields) map[string]string {
	out := map[string]string{}
	for k, v := range map[string]string{
		"name":    e.Name(),
		"email":   e.Email,
		"phone":   e.Phone,
		"company": e.Company,
		"message": e.Message,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// CreateAPIKey issues a new key. The plaintext is returned only here.
func (s *Service) CreateAPIKey(ctx context.Context, actor authz.Actor, name string, domains []string) (APIKey, string, error) {
	if err := requireAdmin(actor); err != nil {
		return APIKey{}, "", err
	}
	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		return APIKey{}, "", apperr.Internal("failed to generate API key").WithDetails(err.Error())
	}
	if domains == nil {
		domains = []string{}
	}
	key, err := s.store.Create(ctx, strings.TrimSpace(name), hash, prefix, domains)
	if err != nil {
		return APIKey{}, "", err
	}
	return key, plaintext, nil
}

// ListAPIKeys returns all keys without their secrets.
func (s *Service) ListAPIKeys(ctx context.Context, actor authz.Actor) ([]APIKey, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// RevokeAPIKey deactivates a key.
func (s *Service) RevokeAPIKey(ctx context.Context, actor authz.Actor, keyID uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.store.Revoke(ctx, keyID)
}

func requireAdmin(actor authz.Actor) error {
	if slices.Contains(actor.Roles, string(authz.RoleAdmin)) || slices.Contains(actor.Roles, string(authz.RoleSuperAdmin)) {
		return nil
	}
	return apperr.Forbidden("only admins can manage webhook keys")
}
