package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
	"github.com/nekogravitycat/campus-borrow-backend/internal/notification"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
	"github.com/nekogravitycat/campus-borrow-backend/internal/sms"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

// roomCourseMax is tighter than the column limit used for item requests.
const roomCourseMax = 100

// Form is the borrower-supplied part of a request.
type Form struct {
	Name       string `json:"name" binding:"required,max=255"`
	BorrowerID string `json:"borrower_id" binding:"required,max=255"`
	Year       string `json:"year" binding:"required,max=50"`
	Department string `json:"department" binding:"required,max=50"`
	Course     string `json:"course" binding:"required,max=255"`
	Email      string `json:"email" binding:"omitempty,email,max=255"`
	Mobile     string `json:"mobile" binding:"omitempty,max=20"`
	Date       string `json:"date" binding:"required,ymd"`
	TimeIn     string `json:"time_in" binding:"required,hhmm"`
	TimeOut    string `json:"time_out" binding:"required,hhmm"`
}

type SubmitRequest struct {
	Kind       resource.Kind
	ResourceID string
	Form       Form
	// SessionEmail, when set, replaces Form.Email.
	SessionEmail string
}

// ResourceStore reads resources, optionally locking the row.
type ResourceStore interface {
	GetByID(ctx context.Context, kind resource.Kind, id string) (*resource.Resource, error)
	GetForUpdate(ctx context.Context, kind resource.Kind, id string) (*resource.Resource, error)
}

// UnitPool hands out and takes back the physical units of an item.
type UnitPool interface {
	Claim(ctx context.Context, itemID string, slot schedule.Slot) (*unit.Unit, error)
	Release(ctx context.Context, id string) error
}

type Notifier interface {
	Notify(ctx context.Context, n *notification.Notification) error
	NotifyOnce(ctx context.Context, n *notification.Notification) (bool, error)
}

type Options struct {
	NotifyOnCreate bool
	// StrictUnitAllocation rejects item requests when no unit is free instead of
	// admitting them without one.
	StrictUnitAllocation bool
	Location             *time.Location
	SMSWorkers           int
}

type Service interface {
	CheckAvailability(ctx context.Context, kind resource.Kind, resourceID string, slot schedule.Slot) (*Availability, error)
	Submit(ctx context.Context, req SubmitRequest) (*Request, error)

	GetByID(ctx context.Context, kind resource.Kind, id string) (*Request, error)
	List(ctx context.Context, filter Filter) ([]*Request, int, error)

	MarkReturned(ctx context.Context, kind resource.Kind, id string) (*Request, error)
	// MarkOverdue reports whether a new overdue notification was created.
	MarkOverdue(ctx context.Context, kind resource.Kind, id string) (*Request, bool, error)
	UpdateStatus(ctx context.Context, kind resource.Kind, id string, status Status) (*Request, error)
	Cancel(ctx context.Context, kind resource.Kind, id string) error

	ScanOverdue(ctx context.Context) (ScanReport, error)
}

type service struct {
	repo      Repository
	resources ResourceStore
	units     UnitPool
	notifier  Notifier
	sms       sms.Sender
	tx        db.Transactor
	opts      Options
	now       func() time.Time
}

// NewService wires the booking engine. sender may be nil, which disables overdue SMS.
func NewService(repo Repository, resources ResourceStore, units UnitPool, notifier Notifier, sender sms.Sender, tx db.Transactor, opts Options) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SMSWorkers < 1 {
		opts.SMSWorkers = 1
	}
	return &service{
		repo:      repo,
		resources: resources,
		units:     units,
		notifier:  notifier,
		sms:       sender,
		tx:        tx,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *service) CheckAvailability(ctx context.Context, kind resource.Kind, resourceID string, slot schedule.Slot) (*Availability, error) {
	if !kind.Valid() {
		return nil, resource.ErrInvalidKind
	}
	if err := slot.Validate(); err != nil {
		return nil, SlotError(err)
	}

	res, err := s.resources.GetByID(ctx, kind, resourceID)
	if err != nil {
		return nil, err
	}

	overlap, err := s.repo.CountOverlapping(ctx, kind, resourceID, slot, "")
	if err != nil {
		return nil, err
	}

	return &Availability{
		Available: overlap < res.Quantity,
		Remaining: max(0, res.Quantity-overlap),
		Total:     res.Quantity,
	}, nil
}

// Submit admits a request if the resource still has capacity for the slot.
// The resource row stays locked from the count until the insert commits, so two
// submissions for the last slot cannot both pass.
func (s *service) Submit(ctx context.Context, req SubmitRequest) (*Request, error) {
	if !req.Kind.Valid() {
		return nil, resource.ErrInvalidKind
	}
	if strings.TrimSpace(req.SessionEmail) != "" {
		req.Form.Email = req.SessionEmail
	}

	slot, err := validateForm(req.Kind, &req.Form)
	if err != nil {
		return nil, err
	}

	r := &Request{
		Kind:       req.Kind,
		ResourceID: req.ResourceID,
		Name:       req.Form.Name,
		BorrowerID: req.Form.BorrowerID,
		Year:       req.Form.Year,
		Department: req.Form.Department,
		Course:     req.Form.Course,
		Email:      optional(req.Form.Email),
		Mobile:     optional(req.Form.Mobile),
		Slot:       slot,
	}
	if req.Kind == resource.KindRoom {
		r.Status = StatusPending
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		r.UnitID, r.Unit = nil, nil

		res, err := s.resources.GetForUpdate(ctx, req.Kind, req.ResourceID)
		if err != nil {
			return err
		}
		r.Resource = res

		overlap, err := s.repo.CountOverlapping(ctx, req.Kind, req.ResourceID, slot, "")
		if err != nil {
			return err
		}
		if overlap >= res.Quantity {
			return capacityExceeded(res)
		}

		if req.Kind.TracksUnits() {
			u, err := s.units.Claim(ctx, req.ResourceID, slot)
			if err != nil {
				return err
			}
			switch {
			case u != nil:
				r.UnitID, r.Unit = &u.ID, u
			case s.opts.StrictUnitAllocation:
				return capacityExceeded(res)
			default:
				zap.L().Warn("no free unit, admitting request without one",
					zap.String("item_id", req.ResourceID),
					zap.String("date", slot.Date.Format(schedule.DateLayout)),
					zap.Stringer("time_in", slot.TimeIn),
					zap.Stringer("time_out", slot.TimeOut),
				)
			}
		}

		return s.repo.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	if s.opts.NotifyOnCreate && r.Email != nil {
		n := notification.RequestSubmitted(*r.Email, r.Kind, r.resourceName(), r.ID)
		if err := s.notifier.Notify(ctx, n); err != nil {
			zap.L().Warn("submit notification failed", zap.String("request_id", r.ID), zap.Error(err))
		}
	}

	return r, nil
}

// validateForm trims the form in place and returns its slot.
func validateForm(kind resource.Kind, f *Form) (schedule.Slot, error) {
	for _, field := range []*string{&f.Name, &f.BorrowerID, &f.Year, &f.Department, &f.Course, &f.Email, &f.Mobile, &f.Date, &f.TimeIn, &f.TimeOut} {
		*field = strings.TrimSpace(*field)
	}

	if err := request.Validate(f); err != nil {
		return schedule.Slot{}, err
	}

	fields := apperror.FieldErrors{}
	if kind == resource.KindRoom && utf8.RuneCountInString(f.Course) > roomCourseMax {
		fields.Add("course", fmt.Sprintf("The course field must not be greater than %d characters.", roomCourseMax))
	}
	slot, err := schedule.NewSlot(f.Date, f.TimeIn, f.TimeOut)
	if err != nil {
		fields.Add(slotField(err), slotMessage(err))
	}
	if err := fields.Err(); err != nil {
		return schedule.Slot{}, err
	}
	return slot, nil
}

func slotField(err error) string {
	switch {
	case errors.Is(err, schedule.ErrInvalidDate):
		return "date"
	case errors.Is(err, schedule.ErrInvalidClock):
		return "time_in"
	default:
		return "time_out"
	}
}

func slotMessage(err error) string {
	if errors.Is(err, schedule.ErrEmptySlot) {
		return "The time_out field must be a time after time_in."
	}
	return err.Error()
}

// SlotError reports an invalid slot as a field validation error.
func SlotError(err error) error {
	fields := apperror.FieldErrors{}
	fields.Add(slotField(err), slotMessage(err))
	return fields.Err()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *service) GetByID(ctx context.Context, kind resource.Kind, id string) (*Request, error) {
	if !kind.Valid() {
		return nil, resource.ErrInvalidKind
	}
	return s.repo.GetByID(ctx, kind, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Request, int, error) {
	if !filter.Kind.Valid() {
		return nil, 0, resource.ErrInvalidKind
	}
	return s.repo.List(ctx, filter)
}

// MarkReturned closes the request and puts its unit back in the pool.
// Returning a request twice is a no-op.
func (s *service) MarkReturned(ctx context.Context, kind resource.Kind, id string) (*Request, error) {
	var (
		r        *Request
		released bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if r.Returned {
			released = false
			return nil
		}

		at := s.now()
		if err := s.repo.MarkReturned(ctx, kind, id, at); err != nil {
			return err
		}
		if err := s.releaseUnit(ctx, r); err != nil {
			return err
		}

		r.Returned, r.ReturnedAt = true, &at
		released = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !released {
		return r, nil
	}

	if r.Email == nil {
		zap.L().Warn("returned request has no email, skipping notification", zap.String("request_id", r.ID))
		return r, nil
	}
	n := notification.RequestReturned(*r.Email, r.Kind, r.resourceName(), r.ID)
	if err := s.notifier.Notify(ctx, n); err != nil {
		zap.L().Warn("return notification failed", zap.String("request_id", r.ID), zap.Error(err))
	}
	return r, nil
}

// releaseUnit frees the unit held by an open item request. A unit that has since been
// deleted is ignored.
func (s *service) releaseUnit(ctx context.Context, r *Request) error {
	if r.UnitID == nil || r.Returned {
		return nil
	}
	if err := s.units.Release(ctx, *r.UnitID); err != nil && !errors.Is(err, unit.ErrNotFound) {
		return err
	}
	if r.Unit != nil {
		r.Unit.Status = unit.StatusAvailable
	}
	return nil
}

func (s *service) MarkOverdue(ctx context.Context, kind resource.Kind, id string) (*Request, bool, error) {
	r, err := s.GetByID(ctx, kind, id)
	if err != nil {
		return nil, false, err
	}
	if !r.IsOverdue(s.now(), s.opts.Location) {
		return nil, false, ErrNotOverdue
	}
	if r.Email == nil {
		return nil, false, ErrNoEmail
	}

	created, err := s.notifier.NotifyOnce(ctx, notification.RequestOverdue(*r.Email, r.Kind, r.resourceName(), r.ID))
	if err != nil {
		return nil, false, err
	}
	return r, created, nil
}

// UpdateStatus moves a room request between approval states. Moving a request back
// into pending or approved re-checks capacity under the resource lock.
func (s *service) UpdateStatus(ctx context.Context, kind resource.Kind, id string, status Status) (*Request, error) {
	if kind != resource.KindRoom {
		return nil, ErrStatusNotSupported
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	var r *Request
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		// Resource before request, the same order Submit takes.
		res, err := s.resources.GetForUpdate(ctx, kind, current.ResourceID)
		if err != nil {
			return err
		}
		r, err = s.repo.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if r.Returned {
			return ErrAlreadyReturned
		}
		if r.Status == status {
			return nil
		}

		if status.Occupies() && !r.Status.Occupies() {
			overlap, err := s.repo.CountOverlapping(ctx, kind, r.ResourceID, r.Slot, r.ID)
			if err != nil {
				return err
			}
			if overlap >= res.Quantity {
				return capacityExceeded(res)
			}
		}

		if err := s.repo.UpdateStatus(ctx, kind, id, status); err != nil {
			return err
		}
		r.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Cancel releases the request's unit and deletes the request.
func (s *service) Cancel(ctx context.Context, kind resource.Kind, id string) error {
	var r *Request
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := s.releaseUnit(ctx, r); err != nil {
			return err
		}
		return s.repo.Delete(ctx, kind, id)
	})
	if err != nil {
		return err
	}

	if r.Email != nil {
		n := notification.RequestCancelled(*r.Email, r.Kind, r.resourceName(), r.ID)
		if err := s.notifier.Notify(ctx, n); err != nil {
			zap.L().Warn("cancel notification failed", zap.String("request_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

// ScanOverdue makes sure every overdue request has its notification and, when a
// mobile number is on file, one SMS. It is safe to run repeatedly and concurrently.
func (s *service) ScanOverdue(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	now := s.now()
	localNow := now.In(s.opts.Location)

	var pending []*Request
	for _, kind := range []resource.Kind{resource.KindItem, resource.KindRoom} {
		overdue, err := s.repo.ListOverdue(ctx, kind, localNow)
		if err != nil {
			return report, err
		}
		for _, r := range overdue {
			report.Overdue++

			if r.Email != nil {
				created, err := s.notifier.NotifyOnce(ctx, notification.RequestOverdue(*r.Email, r.Kind, r.resourceName(), r.ID))
				if err != nil {
					zap.L().Warn("overdue notification failed", zap.String("request_id", r.ID), zap.Error(err))
				} else if created {
					report.Notified++
				}
			}

			if r.Mobile != nil && r.OverdueSMSSentAt == nil && s.sms != nil {
				pending = append(pending, r)
			}
		}
	}

	if len(pending) > 0 {
		sent, failed, err := s.sendOverdueSMS(ctx, pending, now)
		if err != nil {
			return report, err
		}
		report.SMSSent, report.SMSFailed = sent, failed
	}

	zap.L().Info("overdue scan finished",
		zap.Int("overdue", report.Overdue),
		zap.Int("notified", report.Notified),
		zap.Int("sms_sent", report.SMSSent),
		zap.Int("sms_failed", report.SMSFailed),
	)
	return report, nil
}

// sendOverdueSMS fans the reminders out over a bounded worker pool. Each request is
// claimed before sending; a failed send clears the claim so a later scan retries it.
func (s *service) sendOverdueSMS(ctx context.Context, reqs []*Request, now time.Time) (int, int, error) {
	pool, err := ants.NewPool(s.opts.SMSWorkers)
	if err != nil {
		return 0, 0, fmt.Errorf("create sms pool failed: %w", err)
	}
	defer pool.Release()

	var (
		wg           sync.WaitGroup
		sent, failed atomic.Int32
	)
	for _, r := range reqs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			ok, err := s.sendOverdueReminder(ctx, r, now)
			switch {
			case err != nil:
				failed.Add(1)
				zap.L().Warn("overdue sms failed", zap.String("request_id", r.ID), zap.Error(err))
			case ok:
				sent.Add(1)
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			failed.Add(1)
			zap.L().Warn("overdue sms not scheduled", zap.String("request_id", r.ID), zap.Error(err))
		}
	}
	wg.Wait()

	return int(sent.Load()), int(failed.Load()), nil
}

// sendOverdueReminder reports false without error when another scan already claimed r.
func (s *service) sendOverdueReminder(ctx context.Context, r *Request, now time.Time) (bool, error) {
	claimed, err := s.repo.ClaimOverdueSMS(ctx, r.Kind, r.ID, now)
	if err != nil || !claimed {
		return false, err
	}

	if err := s.sms.Send(ctx, *r.Mobile, overdueMessage(r)); err != nil {
		if rerr := s.repo.ResetOverdueSMS(ctx, r.Kind, r.ID); rerr != nil {
			zap.L().Error("reset overdue sms claim failed", zap.String("request_id", r.ID), zap.Error(rerr))
		}
		return false, err
	}
	return true, nil
}

func overdueMessage(r *Request) string {
	date := r.Slot.Date.Format(schedule.DateLayout)
	if r.Kind == resource.KindRoom {
		return fmt.Sprintf(
			"Reminder: your reservation of %s on %s from %s to %s has ended. Please vacate the room.",
			r.resourceName(), date, r.Slot.TimeIn, r.Slot.TimeOut,
		)
	}
	return fmt.Sprintf(
		"Reminder: %s borrowed on %s from %s to %s is overdue. Please return it immediately.",
		r.resourceName(), date, r.Slot.TimeIn, r.Slot.TimeOut,
	)
}
