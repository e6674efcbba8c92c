package resource

import (
	"context"
)

type Service interface {
	GetByID(ctx context.Context, kind Kind, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	// RequireActive returns ErrNotFound or ErrInactive unless the resource can take new bookings.
	RequireActive(ctx context.Context, kind Kind, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetByID(ctx context.Context, kind Kind, id string) (*Resource, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	return s.repo.GetByID(ctx, kind, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	if !filter.Kind.Valid() {
		return nil, 0, ErrInvalidKind
	}
	return s.repo.List(ctx, filter)
}

func (s *service) RequireActive(ctx context.Context, kind Kind, id string) error {
	res, err := s.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if !res.IsActive {
		return ErrInactive
	}
	return nil
}
