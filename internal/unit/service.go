package unit

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/storage"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
)

// maxProvisionAttempts bounds the regenerate-on-collision loop.
const maxProvisionAttempts = 5

// Renderer turns a unit code into a printable label image.
type Renderer interface {
	Render(payload string) (io.Reader, error)
}

// ItemReader looks up the item a unit belongs to.
type ItemReader interface {
	GetByID(ctx context.Context, kind resource.Kind, id string) (*resource.Resource, error)
}

type Service interface {
	Provision(ctx context.Context, itemID string, count int) error
	Deprovision(ctx context.Context, itemID string, count int) error
	Purge(ctx context.Context, itemID string) error

	Claim(ctx context.Context, itemID string, slot schedule.Slot) (*Unit, error)
	Allocate(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status) (*Unit, error)

	GetByID(ctx context.Context, id string) (*Unit, error)
	ListByItem(ctx context.Context, itemID string) ([]*Unit, Counts, error)
	Scan(ctx context.Context, code string) (*Unit, *resource.Resource, error)
	OpenQR(ctx context.Context, id string) (io.ReadCloser, error)
	WriteQRArchive(ctx context.Context, itemID string, w io.Writer) error
}

type service struct {
	repo     Repository
	items    ItemReader
	storage  storage.Storage
	renderer Renderer
	tx       db.Transactor
	newCode  func() string
}

func NewService(repo Repository, items ItemReader, store storage.Storage, renderer Renderer, tx db.Transactor) Service {
	return &service{
		repo:     repo,
		items:    items,
		storage:  store,
		renderer: renderer,
		tx:       tx,
		newCode:  uuid.NewString,
	}
}

// Provision creates count available units with fresh codes and stores a QR label for each.
// Codes that collide with existing ones are regenerated.
func (s *service) Provision(ctx context.Context, itemID string, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		remaining := count
		for attempt := 0; attempt < maxProvisionAttempts && remaining > 0; attempt++ {
			codes := make([]string, remaining)
			for i := range codes {
				codes[i] = s.newCode()
			}

			inserted, err := s.repo.InsertBatch(ctx, itemID, codes)
			if err != nil {
				return err
			}

			// Only codes that were actually inserted get a label.
			paths, err := s.saveLabels(ctx, inserted)
			if err != nil {
				return err
			}
			db.OnRollback(ctx, func() { s.deleteLabels(context.WithoutCancel(ctx), paths) })

			remaining -= len(inserted)
		}

		if remaining > 0 {
			return fmt.Errorf("provision units for item %s: %d codes still colliding after %d attempts", itemID, remaining, maxProvisionAttempts)
		}
		return nil
	})
}

func (s *service) saveLabels(ctx context.Context, units []*Unit) ([]string, error) {
	saved := make([]string, 0, len(units))
	for _, u := range units {
		path, err := s.saveLabel(ctx, u.ItemID, u.Code)
		if err != nil {
			s.deleteLabels(ctx, saved)
			return nil, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

func (s *service) saveLabel(ctx context.Context, itemID, code string) (string, error) {
	img, err := s.renderer.Render(code)
	if err != nil {
		return "", err
	}
	path := qrPath(itemID, code)
	if err := s.storage.Save(ctx, path, img); err != nil {
		return "", fmt.Errorf("failed to save qr label: %w", err)
	}
	return path, nil
}

func (s *service) deleteLabels(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.storage.Delete(ctx, p); err != nil {
			zap.L().Warn("failed to delete qr label", zap.String("path", p), zap.Error(err))
		}
	}
}

// Deprovision removes count available units, oldest first. Borrowed units are never
// removed: if fewer than count are available nothing changes. Labels are deleted
// once the enclosing transaction commits.
func (s *service) Deprovision(ctx context.Context, itemID string, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		removed, err := s.repo.DeleteAvailable(ctx, itemID, count)
		if err != nil {
			return err
		}
		if len(removed) < count {
			return ErrInsufficientAvailableUnits
		}
		s.deleteLabelsAfterCommit(ctx, removed)
		return nil
	})
}

// Purge deletes every unit of the item together with its labels.
func (s *service) Purge(ctx context.Context, itemID string) error {
	removed, err := s.repo.DeleteByItem(ctx, itemID)
	if err != nil {
		return err
	}
	s.deleteLabelsAfterCommit(ctx, removed)
	return nil
}

func (s *service) deleteLabelsAfterCommit(ctx context.Context, units []*Unit) {
	paths := labelPaths(units)
	db.AfterCommit(ctx, func() { s.deleteLabels(context.WithoutCancel(ctx), paths) })
}

func labelPaths(units []*Unit) []string {
	paths := make([]string, 0, len(units))
	for _, u := range units {
		if u.QRPath != "" {
			paths = append(paths, u.QRPath)
		}
	}
	return paths
}

func (s *service) Claim(ctx context.Context, itemID string, slot schedule.Slot) (*Unit, error) {
	return s.repo.Claim(ctx, itemID, slot)
}

// Allocate marks an available unit as borrowed.
func (s *service) Allocate(ctx context.Context, id string) error {
	ok, err := s.repo.Transition(ctx, id, StatusAvailable, StatusBorrowed)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.repo.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrUnitNotAvailable
	}
	return nil
}

// Release returns a borrowed unit to the pool. Releasing an available unit is a no-op.
func (s *service) Release(ctx context.Context, id string) error {
	ok, err := s.repo.Transition(ctx, id, StatusBorrowed, StatusAvailable)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Status == StatusMaintenance {
		zap.L().Warn("released unit is under maintenance", zap.String("unit_id", id))
	}
	return nil
}

// SetStatus moves a unit between available and maintenance. Borrowed units are refused.
func (s *service) SetStatus(ctx context.Context, id string, status Status) (*Unit, error) {
	if status != StatusAvailable && status != StatusMaintenance {
		return nil, ErrInvalidStatus
	}
	return s.repo.SetStatus(ctx, id, status)
}

func (s *service) GetByID(ctx context.Context, id string) (*Unit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByItem(ctx context.Context, itemID string) ([]*Unit, Counts, error) {
	if _, err := s.items.GetByID(ctx, resource.KindItem, itemID); err != nil {
		return nil, Counts{}, err
	}

	units, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, Counts{}, err
	}
	counts, err := s.repo.Counts(ctx, itemID)
	if err != nil {
		return nil, Counts{}, err
	}
	return units, counts, nil
}

// Scan resolves a printed unit code to the unit and its item.
func (s *service) Scan(ctx context.Context, code string) (*Unit, *resource.Resource, error) {
	u, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.items.GetByID(ctx, resource.KindItem, u.ItemID)
	if err != nil {
		return nil, nil, err
	}
	return u, item, nil
}

// OpenQR streams the unit's label, rendering it again if the stored file is missing.
func (s *service) OpenQR(ctx context.Context, id string) (io.ReadCloser, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.openLabel(ctx, u)
}

func (s *service) openLabel(ctx context.Context, u *Unit) (io.ReadCloser, error) {
	path := u.QRPath
	if path == "" {
		path = qrPath(u.ItemID, u.Code)
	}

	rc, err := s.storage.Get(ctx, path)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	zap.L().Info("re-rendering missing qr label", zap.String("unit_id", u.ID))
	if _, err := s.saveLabel(ctx, u.ItemID, u.Code); err != nil {
		return nil, err
	}
	return s.storage.Get(ctx, path)
}

// WriteQRArchive writes a ZIP of every label of the item to w, one <code>.png per unit.
func (s *service) WriteQRArchive(ctx context.Context, itemID string, w io.Writer) error {
	if _, err := s.items.GetByID(ctx, resource.KindItem, itemID); err != nil {
		return err
	}
	units, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, u := range units {
		if err := s.addLabel(ctx, zw, u); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (s *service) addLabel(ctx context.Context, zw *zip.Writer, u *Unit) error {
	rc, err := s.openLabel(ctx, u)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := zw.Create(u.Code + ".png")
	if err != nil {
		return fmt.Errorf("failed to add qr label %s: %w", u.Code, err)
	}
	_, err = io.Copy(f, rc)
	return err
}
