package lesson

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
	StudentID    string
	InstructorID string
	Date         string
	StartTime    string
	EndTime      string
	Notes        string
}

type UpdateRequest struct {
	InstructorID *string
	Date         *string
	StartTime    *string
	EndTime      *string
	Status       *string
	Notes        *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Lesson, error)
	GetByID(ctx context.Context, id string) (*Lesson, error)
	List(ctx context.Context, filter Filter) ([]*Lesson, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Lesson, error)
	Delete(ctx context.Context, id string) error
	// Window returns the instructor's lessons in the three month window around date.
	Window(ctx context.Context, instructorID, date string) ([]conflict.Booking, error)
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

// NewService wires the lesson service. loader supplies instructor windows for
// conflict checks and should read through to the database; invalidator drops
// the cached windows served to drafts and may be nil.
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

func (s *service) Create(ctx context.Context, req CreateRequest) (*Lesson, error) {
	l := &Lesson{
		StudentID:    req.StudentID,
		InstructorID: req.InstructorID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Status:       StatusScheduled,
		Notes:        req.Notes,
	}

	// 1. Validate date and time range, derive hours
	if err := s.prepare(l); err != nil {
		return nil, err
	}

	// 2. Instructor must be able to take lessons
	if err := s.requireInstructor(ctx, l.InstructorID); err != nil {
		return nil, err
	}

	// 3. Check for overlaps
	if err := s.checkConflicts(ctx, l); err != nil {
		return nil, err
	}

	// 4. Persist
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	s.invalidate(ctx, l.InstructorID)

	return l, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Lesson, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Lesson, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Lesson, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevInstructor := l.InstructorID
	prevStatus := l.Status
	slotChanged := false

	if req.InstructorID != nil && *req.InstructorID != l.InstructorID {
		l.InstructorID = *req.InstructorID
		slotChanged = true
	}
	if req.Date != nil && *req.Date != l.Date {
		l.Date = *req.Date
		slotChanged = true
	}
	if req.StartTime != nil && *req.StartTime != l.StartTime {
		l.StartTime = *req.StartTime
		slotChanged = true
	}
	if req.EndTime != nil && *req.EndTime != l.EndTime {
		l.EndTime = *req.EndTime
		slotChanged = true
	}
	if req.Notes != nil {
		l.Notes = *req.Notes
	}
	if req.Status != nil {
		st := Status(*req.Status)
		if !validStatus(st) {
			return nil, ErrInvalidStatus
		}
		l.Status = st
	}

	// A lesson coming back from cancellation reclaims its slot.
	reactivated := prevStatus == StatusCancelled && l.Status != StatusCancelled

	if slotChanged {
		if err := s.prepare(l); err != nil {
			return nil, err
		}
	}
	if l.InstructorID != prevInstructor {
		if err := s.requireInstructor(ctx, l.InstructorID); err != nil {
			return nil, err
		}
	}
	if (slotChanged || reactivated) && l.Status != StatusCancelled {
		if err := s.checkConflicts(ctx, l); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, l); err != nil {
		return nil, err
	}

	s.invalidate(ctx, prevInstructor)
	if l.InstructorID != prevInstructor {
		s.invalidate(ctx, l.InstructorID)
	}

	return l, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, l.InstructorID)
	return nil
}

func (s *service) Window(ctx context.Context, instructorID, date string) ([]conflict.Booking, error) {
	if err := s.requireInstructorExists(ctx, instructorID); err != nil {
		return nil, err
	}
	bookings, err := s.loader.Load(ctx, instructorID, date)
	if err != nil {
		return nil, s.mapLoadError(err)
	}
	return bookings, nil
}

// prepare validates the date and time range and derives the lesson hours.
func (s *service) prepare(l *Lesson) error {
	if _, err := window.ParseDate(l.Date); err != nil {
		return err
	}
	hours, err := conflict.ComputeDuration(l.StartTime, l.EndTime, s.rounding)
	if err != nil {
		return err
	}
	l.Hours = hours
	return nil
}

func (s *service) checkConflicts(ctx context.Context, l *Lesson) error {
	res, err := window.Check(ctx, s.loader, conflict.Lessons, conflict.Candidate{
		ResourceID: l.InstructorID,
		Date:       l.Date,
		StartTime:  l.StartTime,
		EndTime:    l.EndTime,
		ExcludeID:  l.ID,
	})
	if err != nil {
		return s.mapLoadError(err)
	}
	if res.HasConflict {
		return &conflict.Error{Err: ErrTimeConflict, Conflicts: res.Conflicts}
	}
	return nil
}

func (s *service) mapLoadError(err error) error {
	if errors.Is(err, window.ErrFetchFailure) {
		s.log.Error("lesson window load failed", "error", err)
		return fmt.Errorf("%w: %w", ErrConflictUnknown, err)
	}
	return err
}

func (s *service) requireInstructor(ctx context.Context, instructorID string) error {
	err := s.resService.RequireActive(ctx, resource.KindInstructor, instructorID)
	switch {
	case errors.Is(err, resource.ErrNotFound):
		return ErrInstructorNotFound
	case errors.Is(err, resource.ErrInactive):
		return ErrInstructorInactive
	default:
		return err
	}
}

func (s *service) requireInstructorExists(ctx context.Context, instructorID string) error {
	_, err := s.resService.GetByID(ctx, resource.KindInstructor, instructorID)
	if errors.Is(err, resource.ErrNotFound) {
		return ErrInstructorNotFound
	}
	return err
}

func (s *service) invalidate(ctx context.Context, instructorID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, instructorID)
	}
}
