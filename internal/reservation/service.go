package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/pkg/logger"
	"github.com/nekogravitycat/driving-school-backend/internal/resource"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

type CreateRequest struct {
	VehicleID    string
	InstructorID *string
	Date         string
	StartTime    string
	EndTime      string
	Purpose      string
}

type UpdateRequest struct {
	VehicleID    *string
	InstructorID *string // Empty string clears the instructor
	Date         *string
	StartTime    *string
	EndTime      *string
	Purpose      *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Reservation, error)
	Delete(ctx context.Context, id string) error
	Window(ctx context.Context, vehicleID, date string) ([]conflict.Booking, error)
}

// Invalidator drops cached windows after writes.
type Invalidator interface {
	Invalidate(ctx context.Context, resourceID string)
}

type service struct {
	repo        Repository
	resService  resource.Service
	loader      window.Loader
	invalidator Invalidator
	rounding    conflict.RoundingMode
	log         *logger.Logger
}

func NewService(
	repo Repository,
	resService resource.Service,
	loader window.Loader,
	invalidator Invalidator,
	rounding conflict.RoundingMode,
	log *logger.Logger,
) Service {
	if log == nil {
		log = logger.Nop()
	}
	return &service{
		repo:        repo,
		resService:  resService,
		loader:      loader,
		invalidator: invalidator,
		rounding:    rounding,
		log:         log,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	res := &Reservation{
		VehicleID:    req.VehicleID,
		InstructorID: normalizeInstructor(req.InstructorID),
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Purpose:      req.Purpose,
	}

	if err := s.prepare(res); err != nil {
		return nil, err
	}
	if err := s.requireVehicle(ctx, res.VehicleID); err != nil {
		return nil, err
	}
	if err := s.requireInstructor(ctx, res.InstructorID); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, res); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	s.invalidate(ctx, res.VehicleID)

	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fillHours(res)
	return res, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for _, res := range items {
		s.fillHours(res)
	}
	return items, total, nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevVehicle := res.VehicleID
	slotChanged := false

	if req.VehicleID != nil && *req.VehicleID != res.VehicleID {
		res.VehicleID = *req.VehicleID
		slotChanged = true
	}
	if req.Date != nil && *req.Date != res.Date {
		res.Date = *req.Date
		slotChanged = true
	}
	if req.StartTime != nil && *req.StartTime != res.StartTime {
		res.StartTime = *req.StartTime
		slotChanged = true
	}
	if req.EndTime != nil && *req.EndTime != res.EndTime {
		res.EndTime = *req.EndTime
		slotChanged = true
	}
	if req.InstructorID != nil {
		res.InstructorID = normalizeInstructor(req.InstructorID)
		if err := s.requireInstructor(ctx, res.InstructorID); err != nil {
			return nil, err
		}
	}
	if req.Purpose != nil {
		res.Purpose = *req.Purpose
	}

	if err := s.prepare(res); err != nil {
		return nil, err
	}
	if res.VehicleID != prevVehicle {
		if err := s.requireVehicle(ctx, res.VehicleID); err != nil {
			return nil, err
		}
	}
	if slotChanged {
		if err := s.checkConflicts(ctx, res); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}

	s.invalidate(ctx, prevVehicle)
	if res.VehicleID != prevVehicle {
		s.invalidate(ctx, res.VehicleID)
	}

	return res, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, res.VehicleID)
	return nil
}

func (s *service) Window(ctx context.Context, vehicleID, date string) ([]conflict.Booking, error) {
	if _, err := s.resService.GetByID(ctx, resource.KindVehicle, vehicleID); err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	bookings, err := s.loader.Load(ctx, vehicleID, date)
	if err != nil {
		return nil, s.mapLoadError(err)
	}
	return bookings, nil
}

// prepare validates the date and time range and derives the display hours.
func (s *service) prepare(res *Reservation) error {
	if _, err := window.ParseDate(res.Date); err != nil {
		return err
	}
	hours, err := conflict.ComputeDuration(res.StartTime, res.EndTime, s.rounding)
	if err != nil {
		return err
	}
	res.Hours = hours
	return nil
}

// fillHours sets display hours on stored rows, leaving zero for rows the
// calculator rejects.
func (s *service) fillHours(res *Reservation) {
	if hours, err := conflict.ComputeDuration(res.StartTime, res.EndTime, s.rounding); err == nil {
		res.Hours = hours
	}
}

func (s *service) checkConflicts(ctx context.Context, res *Reservation) error {
	result, err := window.Check(ctx, s.loader, conflict.Reservations, conflict.Candidate{
		ResourceID: res.VehicleID,
		Date:       res.Date,
		StartTime:  res.StartTime,
		EndTime:    res.EndTime,
		ExcludeID:  res.ID,
	})
	if err != nil {
		return s.mapLoadError(err)
	}
	if result.HasConflict {
		return &conflict.Error{Err: ErrTimeConflict, Conflicts: result.Conflicts}
	}
	return nil
}

func (s *service) mapLoadError(err error) error {
	if errors.Is(err, window.ErrFetchFailure) {
		s.log.Error("vehicle window load failed", "error", err)
		return fmt.Errorf("%w: %w", ErrConflictUnknown, err)
	}
	return err
}

func (s *service) requireVehicle(ctx context.Context, vehicleID string) error {
	err := s.resService.RequireActive(ctx, resource.KindVehicle, vehicleID)
	switch {
	case errors.Is(err, resource.ErrNotFound):
		return ErrVehicleNotFound
	case errors.Is(err, resource.ErrInactive):
		return ErrVehicleInactive
	default:
		return err
	}
}

func (s *service) requireInstructor(ctx context.Context, instructorID *string) error {
	if instructorID == nil {
		return nil
	}
	_, err := s.resService.GetByID(ctx, resource.KindInstructor, *instructorID)
	if errors.Is(err, resource.ErrNotFound) {
		return ErrInstructorNotFound
	}
	return err
}

func (s *service) invalidate(ctx context.Context, vehicleID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, vehicleID)
	}
}

func normalizeInstructor(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	v := *id
	return &v
}
