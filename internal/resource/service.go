package resource

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
)

type CreateRequest struct {
	Kind        Kind
	Name        string
	Description string
	Quantity    int
}

type UpdateRequest struct {
	Name        *string
	Description *string
	Quantity    *int
}

// UnitPool keeps the physical units of an item in step with its quantity.
type UnitPool interface {
	Provision(ctx context.Context, itemID string, count int) error
	Deprovision(ctx context.Context, itemID string, count int) error
	Purge(ctx context.Context, itemID string) error
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	GetByID(ctx context.Context, kind Kind, id string) (*Resource, error)
	GetForUpdate(ctx context.Context, kind Kind, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, kind Kind, id string, req UpdateRequest) (*Resource, error)
	Delete(ctx context.Context, kind Kind, id string) error
}

type service struct {
	repo  Repository
	units UnitPool
	tx    db.Transactor
}

func NewService(repo Repository, units UnitPool, tx db.Transactor) Service {
	return &service{
		repo:  repo,
		units: units,
		tx:    tx,
	}
}

// Create inserts the resource. Items get one unit per slot of quantity in the same transaction.
func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	if !req.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	res := &Resource{
		Kind:        req.Kind,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Quantity:    req.Quantity,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, res); err != nil {
			return err
		}
		if res.Kind.TracksUnits() {
			return s.units.Provision(ctx, res.ID, res.Quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("resource created",
		zap.String("kind", string(res.Kind)),
		zap.String("id", res.ID),
		zap.Int("quantity", res.Quantity),
	)
	return res, nil
}

func (s *service) GetByID(ctx context.Context, kind Kind, id string) (*Resource, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	return s.repo.GetByID(ctx, kind, id)
}

func (s *service) GetForUpdate(ctx context.Context, kind Kind, id string) (*Resource, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	return s.repo.GetForUpdate(ctx, kind, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	if !filter.Kind.Valid() {
		return nil, 0, ErrInvalidKind
	}
	return s.repo.List(ctx, filter)
}

// Update applies the changes under the resource row lock. Resizing an item provisions
// or deprovisions units so the pool always matches the new quantity.
func (s *service) Update(ctx context.Context, kind Kind, id string, req UpdateRequest) (*Resource, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	var res *Resource
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.repo.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}

		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return ErrEmptyName
			}
			res.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			res.Description = *req.Description
		}

		if req.Quantity != nil && *req.Quantity != res.Quantity {
			if *req.Quantity < 1 {
				return ErrInvalidQuantity
			}
			if kind.TracksUnits() {
				diff := *req.Quantity - res.Quantity
				if diff > 0 {
					err = s.units.Provision(ctx, res.ID, diff)
				} else {
					err = s.units.Deprovision(ctx, res.ID, -diff)
				}
				if err != nil {
					return err
				}
			}
			res.Quantity = *req.Quantity
		}

		return s.repo.Update(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes the resource unless a request still holds capacity on it.
func (s *service) Delete(ctx context.Context, kind Kind, id string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetForUpdate(ctx, kind, id); err != nil {
			return err
		}

		open, err := s.repo.HasOpenRequests(ctx, kind, id)
		if err != nil {
			return err
		}
		if open {
			return ErrInUse
		}

		if kind.TracksUnits() {
			if err := s.units.Purge(ctx, id); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, kind, id)
	})
}
