package service

import (
	"context"
	"strings"
	"time"

	"quote_pipeline_backend/internal/appointments/repository"
	"quote_pipeline_backend/internal/appointments/transport"
	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository is the storage the appointments service needs.
type Repository interface {
	Create(ctx context.Context, appt *repository.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error)
	Update(ctx context.Context, appt *repository.Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListForDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]repository.Appointment, error)
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
}

// Service provides business logic for appointments
type Service struct {
	repo   Repository
	policy *authz.Policy
}

// New creates a new appointments service
func New(repo Repository, policy *authz.Policy) *Service {
	return &Service{repo: repo, policy: policy}
}

// Create books an appointment for the acting user
func (s *Service) Create(ctx context.Context, actor authz.Actor, req transport.CreateAppointmentRequest) (*transport.AppointmentResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceAppointments, authz.ActionCreate); err != nil {
		return nil, err
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, apperr.Validation("end time must be after start time")
	}
	if err := s.checkTimeConflict(ctx, actor.ID, req.StartTime, req.EndTime, uuid.Nil); err != nil {
		return nil, err
	}

	now := time.Now()
	appt := repository.Appointment{
		ID:          uuid.New(),
		ClientID:    req.ClientID,
		UserID:      actor.ID,
		Title:       sanitize.Text(req.Title),
		Description: sanitize.TextPtr(nilIfEmpty(req.Description)),
		Location:    sanitize.TextPtr(nilIfEmpty(req.Location)),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      string(transport.AppointmentStatusScheduled),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, &appt); err != nil {
		return nil, err
	}

	resp := appt.ToResponse()
	return &resp, nil
}

// GetByID returns an appointment the actor may see
func (s *Service) GetByID(ctx context.Context, actor authz.Actor, id uuid.UUID) (*transport.AppointmentResponse, error) {
	appt, err := s.owned(ctx, actor, id, authz.ActionView)
	if err != nil {
		return nil, err
	}
	resp := appt.ToResponse()
	return &resp, nil
}

// Update patches an appointment. The new time window must stay valid and free.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req transport.UpdateAppointmentRequest) (*transport.AppointmentResponse, error) {
	appt, err := s.owned(ctx, actor, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	timeChanged := req.StartTime != nil || req.EndTime != nil
	applyAppointmentUpdates(appt, req)
	if !appt.EndTime.After(appt.StartTime) {
		return nil, apperr.Validation("end time must be after start time")
	}
	if timeChanged {
		if err := s.checkTimeConflict(ctx, appt.UserID, appt.StartTime, appt.EndTime, appt.ID); err != nil {
			return nil, err
		}
	}
	appt.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}
	resp := appt.ToResponse()
	return &resp, nil
}

// UpdateStatus updates the status of an appointment
func (s *Service) UpdateStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, req transport.UpdateAppointmentStatusRequest) (*transport.AppointmentResponse, error) {
	appt, err := s.owned(ctx, actor, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if appt.Status != string(req.Status) {
		if err := s.repo.UpdateStatus(ctx, id, string(req.Status)); err != nil {
			return nil, err
		}
		appt, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	resp := appt.ToResponse()
	return &resp, nil
}

// Delete removes an appointment
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id, authz.ActionDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns appointments. Staff only see their own; managers and above
// may filter by any user.
func (s *Service) List(ctx context.Context, actor authz.Actor, req transport.ListAppointmentsRequest) (*transport.AppointmentListResponse, error) {
	if err := s.policy.Require(actor, authz.ResourceAppointments, authz.ActionList); err != nil {
		return nil, err
	}

	params, err := buildListParams(actor, req)
	if err != nil {
		return nil, err
	}
	result, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]transport.AppointmentResponse, len(result.Items))
	for i, a := range result.Items {
		items[i] = a.ToResponse()
	}
	return &transport.AppointmentListResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// owned loads an appointment and checks both the capability and ownership.
func (s *Service) owned(ctx context.Context, actor authz.Actor, id uuid.UUID, action authz.Action) (*repository.Appointment, error) {
	if err := s.policy.Require(actor, authz.ResourceAppointments, action); err != nil {
		return nil, err
	}
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !managesAll(actor) && appt.UserID != actor.ID {
		return nil, apperr.Forbidden("not authorized to access this appointment")
	}
	return appt, nil
}

// checkTimeConflict checks for overlapping appointments, excluding excludeID if non-nil.
func (s *Service) checkTimeConflict(ctx context.Context, userID uuid.UUID, startTime, endTime time.Time, excludeID uuid.UUID) error {
	existing, err := s.repo.ListForDateRange(ctx, userID, startTime, endTime)
	if err != nil {
		return err
	}
	for _, appt := range existing {
		if excludeID != uuid.Nil && appt.ID == excludeID {
			continue
		}
		if startTime.Before(appt.EndTime) && endTime.After(appt.StartTime) {
			return apperr.Conflict("timeslot already booked")
		}
	}
	return nil
}

// applyAppointmentUpdates applies partial updates from the request to the appointment.
func applyAppointmentUpdates(appt *repository.Appointment, req transport.UpdateAppointmentRequest) {
	if req.ClientID != nil {
		appt.ClientID = req.ClientID
	}
	if req.Title != nil {
		appt.Title = sanitize.Text(*req.Title)
	}
	if req.Description != nil {
		appt.Description = sanitize.TextPtr(req.Description)
	}
	if req.Location != nil {
		appt.Location = sanitize.TextPtr(req.Location)
	}
	if req.StartTime != nil {
		appt.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		appt.EndTime = *req.EndTime
	}
}

func buildListParams(actor authz.Actor, req transport.ListAppointmentsRequest) (repository.ListParams, error) {
	params := repository.ListParams{
		Search:    strings.TrimSpace(req.Search),
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Page:      req.Page,
		PageSize:  clampPageSize(req.PageSize),
	}
	if params.Page < 1 {
		params.Page = 1
	}

	switch {
	case !managesAll(actor):
		own := actor.ID
		params.UserID = &own
	case req.UserID != "":
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return params, apperr.BadRequest("invalid userId")
		}
		params.UserID = &id
	}
	if req.ClientID != "" {
		id, err := uuid.Parse(req.ClientID)
		if err != nil {
			return params, apperr.BadRequest("invalid clientId")
		}
		params.ClientID = &id
	}
	if req.Status != "" {
		status := req.Status
		params.Status = &status
	}
	if req.StartFrom != "" {
		from, err := time.Parse("2006-01-02", req.StartFrom)
		if err != nil {
			return params, apperr.BadRequest("invalid startFrom")
		}
		params.StartFrom = &from
	}
	if req.StartTo != "" {
		to, err := time.Parse("2006-01-02", req.StartTo)
		if err != nil {
			return params, apperr.BadRequest("invalid startTo")
		}
		end := to.AddDate(0, 0, 1)
		params.StartTo = &end
	}
	return params, nil
}

func managesAll(actor authz.Actor) bool {
	for _, r := range actor.Roles {
		switch authz.Role(r) {
		case authz.RoleSuperAdmin, authz.RoleAdmin, authz.RoleManager:
			return true
		}
	}
	return false
}

func clampPageSize(size int) int {
	if size < 1 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
