package service

import (
	"context"
	"testing"
	"time"

	"quote_pipeline_backend/internal/appointments/repository"
	"quote_pipeline_backend/internal/appointments/transport"
	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items map[uuid.UUID]repository.Appointment
}

func (r *memoryRepo) Create(_ context.Context, a *repository.Appointment) error {
	r.items[a.ID] = *a
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.Appointment, error) {
	a, ok := r.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	return &a, nil
}

func (r *memoryRepo) Update(_ context.Context, a *repository.Appointment) error {
	r.items[a.ID] = *a
	return nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	a := r.items[id]
	a.Status = status
	r.items[id] = a
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) ListForDateRange(_ context.Context, userID uuid.UUID, from, to time.Time) ([]repository.Appointment, error) {
	var out []repository.Appointment
	for _, a := range r.items {
		if a.UserID == userID && a.Status != "cancelled" && a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(_ context.Context, p repository.ListParams) (*repository.ListResult, error) {
	var out []repository.Appointment
	for _, a := range r.items {
		if p.UserID == nil || a.UserID == *p.UserID {
			out = append(out, a)
		}
	}
	return &repository.ListResult{Items: out, Total: len(out), Page: p.Page, PageSize: p.PageSize, TotalPages: 1}, nil
}

var start = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func newService() *Service {
	return New(&memoryRepo{items: make(map[uuid.UUID]repository.Appointment)}, authz.New(nil))
}

func book(t *testing.T, svc *Service, actor authz.Actor, from time.Time) *transport.AppointmentResponse {
	t.Helper()
	appt, err := svc.Create(context.Background(), actor, transport.CreateAppointmentRequest{
		Title:     "Inmeten keuken",
		StartTime: from,
		EndTime:   from.Add(time.Hour),
	})
	require.NoError(t, err)
	return appt
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc := newService()
	staff := authz.Actor{ID: uuid.New(), Roles: []string{"staff"}}
	book(t, svc, staff, start)

	_, err := svc.Create(context.Background(), staff, transport.CreateAppointmentRequest{
		Title: "Dubbel", StartTime: start.Add(30 * time.Minute), EndTime: start.Add(90 * time.Minute),
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// back to back is fine
	book(t, svc, staff, start.Add(time.Hour))
}

func TestUpdateValidatesWindow(t *testing.T) {
	svc := newService()
	staff := authz.Actor{ID: uuid.New(), Roles: []string{"staff"}}
	appt := book(t, svc, staff, start)

	earlier := start.Add(-time.Hour)
	_, err := svc.Update(context.Background(), staff, appt.ID, transport.UpdateAppointmentRequest{EndTime: &earlier})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStaffOnlySeeOwnAppointments(t *testing.T) {
	svc := newService()
	alice := authz.Actor{ID: uuid.New(), Roles: []string{"staff"}}
	bob := authz.Actor{ID: uuid.New(), Roles: []string{"staff"}}
	manager := authz.Actor{ID: uuid.New(), Roles: []string{"manager"}}
	appt := book(t, svc, alice, start)
	book(t, svc, bob, start)

	_, err := svc.GetByID(context.Background(), bob, appt.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	got, err := svc.UpdateStatus(context.Background(), manager, appt.ID, transport.UpdateAppointmentStatusRequest{Status: transport.AppointmentStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, transport.AppointmentStatusCompleted, got.Status)

	list, err := svc.List(context.Background(), alice, transport.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	list, err = svc.List(context.Background(), manager, transport.ListAppointmentsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}
