package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/campus-borrow-backend/internal/notification"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

// lockingTx serializes transactions the way the resource row lock does.
type lockingTx struct{ mu sync.Mutex }

func (t *lockingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

type memRepo struct {
	mu     sync.Mutex
	rows   map[string]*Request
	nextID int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]*Request{}}
}

func (r *memRepo) Create(ctx context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	req.ID = fmt.Sprintf("req-%d", r.nextID)
	cp := *req
	r.rows[req.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, kind resource.Kind, id string) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok || req.Kind != kind {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, kind resource.Kind, id string) (*Request, error) {
	return r.GetByID(ctx, kind, id)
}

func (r *memRepo) List(ctx context.Context, filter Filter) ([]*Request, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Request
	for _, req := range r.rows {
		if req.Kind != filter.Kind {
			continue
		}
		if filter.Email != "" && (req.Email == nil || *req.Email != filter.Email) {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *memRepo) Delete(ctx context.Context, kind resource.Kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) CountOverlapping(ctx context.Context, kind resource.Kind, resourceID string, slot schedule.Slot, excludeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.rows {
		if req.Kind == kind && req.ResourceID == resourceID && req.ID != excludeID &&
			req.Occupies() && schedule.Overlaps(req.Slot, slot) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) MarkReturned(ctx context.Context, kind resource.Kind, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	req.Returned, req.ReturnedAt = true, &at
	return nil
}

func (r *memRepo) UpdateStatus(ctx context.Context, kind resource.Kind, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	return nil
}

func (r *memRepo) ListOverdue(ctx context.Context, kind resource.Kind, localNow time.Time) ([]*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Request
	for _, req := range r.rows {
		if req.Kind == kind && req.IsOverdue(localNow, localNow.Location()) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ClaimOverdueSMS(ctx context.Context, kind resource.Kind, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok || req.OverdueSMSSentAt != nil || req.Returned {
		return false, nil
	}
	req.OverdueSMSSentAt = &at
	return true, nil
}

func (r *memRepo) ResetOverdueSMS(ctx context.Context, kind resource.Kind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.rows[id]; ok {
		req.OverdueSMSSentAt = nil
	}
	return nil
}

type resourceStub map[string]*resource.Resource

func (s resourceStub) GetByID(ctx context.Context, kind resource.Kind, id string) (*resource.Resource, error) {
	res, ok := s[id]
	if !ok || res.Kind != kind {
		return nil, resource.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (s resourceStub) GetForUpdate(ctx context.Context, kind resource.Kind, id string) (*resource.Resource, error) {
	return s.GetByID(ctx, kind, id)
}

type memUnits struct {
	mu    sync.Mutex
	units []*unit.Unit
}

func (p *memUnits) add(itemID string, codes ...string) {
	for _, code := range codes {
		p.units = append(p.units, &unit.Unit{ID: code, ItemID: itemID, Code: code, Status: unit.StatusAvailable})
	}
}

func (p *memUnits) status(id string) unit.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.units {
		if u.ID == id {
			return u.Status
		}
	}
	return ""
}

func (p *memUnits) Claim(ctx context.Context, itemID string, slot schedule.Slot) (*unit.Unit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.units {
		if u.ItemID == itemID && u.Status == unit.StatusAvailable {
			u.Status = unit.StatusBorrowed
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *memUnits) Release(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.units {
		if u.ID == id {
			if u.Status == unit.StatusBorrowed {
				u.Status = unit.StatusAvailable
			}
			return nil
		}
	}
	return unit.ErrNotFound
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notification.Notification
	seen map[string]bool
}

func (n *recordingNotifier) Notify(ctx context.Context, note *notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) NotifyOnce(ctx context.Context, note *notification.Notification) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seen == nil {
		n.seen = map[string]bool{}
	}
	k := note.UserEmail + "|" + note.ActionType + "|" + *note.RelatedID
	if n.seen[k] {
		return false, nil
	}
	n.seen[k] = true
	n.sent = append(n.sent, note)
	return true, nil
}

func (n *recordingNotifier) actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, note := range n.sent {
		out[i] = note.ActionType
	}
	return out
}

type fakeSMS struct {
	mu   sync.Mutex
	fail bool
	sent []string
}

func (f *fakeSMS) Send(ctx context.Context, number, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("gateway down")
	}
	f.sent = append(f.sent, number+": "+message)
	return nil
}

type fixture struct {
	svc      *service
	repo     *memRepo
	units    *memUnits
	notifier *recordingNotifier
	sms      *fakeSMS
}

const (
	roomID = "room-r"
	itemID = "item-i"
)

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	resources := resourceStub{
		roomID: {ID: roomID, Kind: resource.KindRoom, Name: "Room R", Quantity: 1},
		itemID: {ID: itemID, Kind: resource.KindItem, Name: "Projector", Quantity: 2},
	}
	units := &memUnits{}
	units.add(itemID, "U1", "U2")

	f := &fixture{
		repo:     newMemRepo(),
		units:    units,
		notifier: &recordingNotifier{},
		sms:      &fakeSMS{},
	}
	opts.Location = time.UTC
	f.svc = NewService(f.repo, resources, units, f.notifier, f.sms, &lockingTx{}, opts).(*service)
	f.svc.now = func() time.Time { return time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

func form(borrower, date, in, out string) Form {
	return Form{
		Name:       "Juan Dela Cruz",
		BorrowerID: borrower,
		Year:       "3",
		Department: "CCS",
		Course:     "BSIT",
		Email:      borrower + "@campus.edu",
		Mobile:     "09171234567",
		Date:       date,
		TimeIn:     in,
		TimeOut:    out,
	}
}

func submit(f *fixture, kind resource.Kind, id string, fm Form) (*Request, error) {
	return f.svc.Submit(context.Background(), SubmitRequest{Kind: kind, ResourceID: id, Form: fm})
}

func TestRoomCapacityScenario(t *testing.T) {
	f := newFixture(t, Options{})

	a, err := submit(f, resource.KindRoom, roomID, form("a", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)

	_, err = submit(f, resource.KindRoom, roomID, form("b", "2025-10-04", "09:30", "10:30"))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
	assert.Equal(t, "Room R is fully booked for the selected time range.", appErr.Message)

	_, err = submit(f, resource.KindRoom, roomID, form("c", "2025-10-04", "10:00", "11:00"))
	require.NoError(t, err)
}

func TestRejectedRoomRequestFreesCapacity(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	a, err := submit(f, resource.KindRoom, roomID, form("a", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, resource.KindRoom, a.ID, StatusRejected)
	require.NoError(t, err)

	b, err := submit(f, resource.KindRoom, roomID, form("b", "2025-10-04", "09:30", "10:30"))
	require.NoError(t, err)

	// A cannot come back while B holds the only slot
	_, err = f.svc.UpdateStatus(ctx, resource.KindRoom, a.ID, StatusApproved)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// B moving between occupying states does not count itself
	got, err := f.svc.UpdateStatus(ctx, resource.KindRoom, b.ID, StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	x, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, resource.KindItem, x.ID, StatusApproved)
	assert.ErrorIs(t, err, ErrStatusNotSupported)

	a, err := submit(f, resource.KindRoom, roomID, form("a", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, resource.KindRoom, a.ID, Status("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.MarkReturned(ctx, resource.KindRoom, a.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, resource.KindRoom, a.ID, StatusApproved)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
}

func TestUnitAllocationScenario(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	x, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	require.NotNil(t, x.UnitID)
	assert.Equal(t, "U1", *x.UnitID)

	y, err := submit(f, resource.KindItem, itemID, form("y", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	require.NotNil(t, y.UnitID)
	assert.Equal(t, "U2", *y.UnitID)

	_, err = submit(f, resource.KindItem, itemID, form("z", "2025-10-04", "09:00", "10:00"))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "already fully booked during the selected time slot")

	// Returning X frees U1 and the slot
	returned, err := f.svc.MarkReturned(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	assert.True(t, returned.Returned)
	assert.Equal(t, unit.StatusAvailable, f.units.status("U1"))

	w, err := submit(f, resource.KindItem, itemID, form("w", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	require.NotNil(t, w.UnitID)
	assert.Equal(t, "U1", *w.UnitID)
}

func TestDegradedAndStrictUnitAllocation(t *testing.T) {
	for _, strict := range []bool{false, true} {
		t.Run(fmt.Sprintf("strict=%v", strict), func(t *testing.T) {
			f := newFixture(t, Options{StrictUnitAllocation: strict})
			// U2 is in maintenance, so only one unit can be handed out
			f.units.units[1].Status = unit.StatusMaintenance

			_, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
			require.NoError(t, err)

			y, err := submit(f, resource.KindItem, itemID, form("y", "2025-10-04", "09:00", "10:00"))
			if strict {
				assert.ErrorIs(t, err, ErrCapacityExceeded)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, y.UnitID)
		})
	}
}

func TestConcurrentSubmissionsRespectCapacity(t *testing.T) {
	f := newFixture(t, Options{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := submit(f, resource.KindItem, itemID, form(fmt.Sprintf("s%d", i), "2025-10-04", "09:00", "10:00"))
			if err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, admitted)
	assert.Equal(t, unit.StatusBorrowed, f.units.status("U1"))
	assert.Equal(t, unit.StatusBorrowed, f.units.status("U2"))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name  string
		kind  resource.Kind
		edit  func(*Form)
		field string
	}{
		{"missing name", resource.KindItem, func(fm *Form) { fm.Name = "  " }, "name"},
		{"bad email", resource.KindItem, func(fm *Form) { fm.Email = "nope" }, "email"},
		{"bad clock", resource.KindItem, func(fm *Form) { fm.TimeIn = "9:00" }, "time_in"},
		{"bad date", resource.KindItem, func(fm *Form) { fm.Date = "04/10/2025" }, "date"},
		{"empty slot", resource.KindItem, func(fm *Form) { fm.TimeOut = fm.TimeIn }, "time_out"},
		{"inverted slot", resource.KindRoom, func(fm *Form) { fm.TimeIn, fm.TimeOut = "11:00", "10:00" }, "time_out"},
		{"long room course", resource.KindRoom, func(fm *Form) { fm.Course = strings.Repeat("a", 101) }, "course"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fm := form("v", "2025-10-04", "09:00", "10:00")
			tc.edit(&fm)
			id := itemID
			if tc.kind == resource.KindRoom {
				id = roomID
			}

			_, err := submit(f, tc.kind, id, fm)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
			assert.Contains(t, appErr.Fields, tc.field)
		})
	}
}

func TestRoomCourseLimitCountsCharacters(t *testing.T) {
	f := newFixture(t, Options{})

	fm := form("u", "2025-10-04", "09:00", "10:00")
	fm.Course = strings.Repeat("é", 60)
	_, err := submit(f, resource.KindRoom, roomID, fm)
	require.NoError(t, err)

	fm = form("v", "2025-10-04", "11:00", "12:00")
	fm.Course = strings.Repeat("é", 101)
	_, err = submit(f, resource.KindRoom, roomID, fm)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "course")
}

func TestSubmitUnknownResource(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := submit(f, resource.KindItem, roomID, form("x", "2025-10-04", "09:00", "10:00"))
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestSessionEmailOverridesForm(t *testing.T) {
	f := newFixture(t, Options{NotifyOnCreate: true})

	fm := form("x", "2025-10-04", "09:00", "10:00")
	fm.Email = "typed@elsewhere.com"
	r, err := f.svc.Submit(context.Background(), SubmitRequest{
		Kind: resource.KindItem, ResourceID: itemID, Form: fm, SessionEmail: "session@campus.edu",
	})
	require.NoError(t, err)
	require.NotNil(t, r.Email)
	assert.Equal(t, "session@campus.edu", *r.Email)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "session@campus.edu", f.notifier.sent[0].UserEmail)
	assert.Equal(t, notification.ActionItemRequest, f.notifier.sent[0].ActionType)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	slot, err := schedule.NewSlot("2025-10-04", "09:00", "10:00")
	require.NoError(t, err)

	a, err := f.svc.CheckAvailability(ctx, resource.KindItem, itemID, slot)
	require.NoError(t, err)
	assert.Equal(t, Availability{Available: true, Remaining: 2, Total: 2}, *a)

	for _, b := range []string{"x", "y"} {
		_, err := submit(f, resource.KindItem, itemID, form(b, "2025-10-04", "09:30", "10:30"))
		require.NoError(t, err)
	}

	a, err = f.svc.CheckAvailability(ctx, resource.KindItem, itemID, slot)
	require.NoError(t, err)
	assert.Equal(t, Availability{Available: false, Remaining: 0, Total: 2}, *a)

	adjacent, err := schedule.NewSlot("2025-10-04", "10:30", "11:00")
	require.NoError(t, err)
	a, err = f.svc.CheckAvailability(ctx, resource.KindItem, itemID, adjacent)
	require.NoError(t, err)
	assert.True(t, a.Available)
}

func TestMarkReturnedIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	x, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.MarkReturned(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	again, err := f.svc.MarkReturned(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	assert.True(t, again.Returned)

	assert.Equal(t, []string{notification.ActionItemReturned}, f.notifier.actions())
}

func TestCancelReleasesUnit(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	x, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, unit.StatusBorrowed, f.units.status("U1"))

	require.NoError(t, f.svc.Cancel(ctx, resource.KindItem, x.ID))
	assert.Equal(t, unit.StatusAvailable, f.units.status("U1"))

	_, err = f.svc.GetByID(ctx, resource.KindItem, x.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{notification.ActionCancelItem}, f.notifier.actions())

	assert.ErrorIs(t, f.svc.Cancel(ctx, resource.KindItem, x.ID), ErrNotFound)
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	x, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)

	// Exactly at time_out is not overdue yet
	f.svc.now = func() time.Time { return time.Date(2025, 10, 4, 10, 0, 0, 0, time.UTC) }
	_, _, err = f.svc.MarkOverdue(ctx, resource.KindItem, x.ID)
	assert.ErrorIs(t, err, ErrNotOverdue)

	f.svc.now = func() time.Time { return time.Date(2025, 10, 4, 10, 1, 0, 0, time.UTC) }
	_, created, err := f.svc.MarkOverdue(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = f.svc.MarkOverdue(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{notification.ActionOverdueItem}, f.notifier.actions())

	_, err = f.svc.MarkReturned(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	_, _, err = f.svc.MarkOverdue(ctx, resource.KindItem, x.ID)
	assert.ErrorIs(t, err, ErrNotOverdue)
}

func TestMarkOverdueWithoutEmail(t *testing.T) {
	f := newFixture(t, Options{})

	fm := form("x", "2025-10-04", "09:00", "10:00")
	fm.Email = ""
	x, err := submit(f, resource.KindItem, itemID, fm)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC) }
	_, _, err = f.svc.MarkOverdue(context.Background(), resource.KindItem, x.ID)
	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestScanOverdueNotifiesAndTextsOnce(t *testing.T) {
	f := newFixture(t, Options{SMSWorkers: 2})
	ctx := context.Background()

	_, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	_, err = submit(f, resource.KindRoom, roomID, form("a", "2025-10-04", "13:00", "14:00"))
	require.NoError(t, err)
	later, err := submit(f, resource.KindItem, itemID, form("y", "2025-10-04", "15:00", "16:00"))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Date(2025, 10, 4, 14, 30, 0, 0, time.UTC) }

	report, err := f.svc.ScanOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Overdue: 2, Notified: 2, SMSSent: 2}, report)
	assert.Len(t, f.sms.sent, 2)

	report, err = f.svc.ScanOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Overdue: 2}, report)
	assert.Len(t, f.sms.sent, 2)

	got, err := f.svc.GetByID(ctx, resource.KindItem, later.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OverdueSMSSentAt)
}

func TestScanOverdueRetriesFailedSMS(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	x, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	f.svc.now = func() time.Time { return time.Date(2025, 10, 4, 11, 0, 0, 0, time.UTC) }

	f.sms.fail = true
	report, err := f.svc.ScanOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SMSFailed)

	got, err := f.svc.GetByID(ctx, resource.KindItem, x.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OverdueSMSSentAt)

	f.sms.fail = false
	report, err = f.svc.ScanOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SMSSent)
	require.Len(t, f.sms.sent, 1)
	assert.Contains(t, f.sms.sent[0], "Reminder: Projector borrowed on 2025-10-04 from 09:00 to 10:00 is overdue.")
}

func TestScanOverdueWithoutSender(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.sms = nil

	_, err := submit(f, resource.KindItem, itemID, form("x", "2025-10-04", "09:00", "10:00"))
	require.NoError(t, err)
	f.svc.now = func() time.Time { return time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC) }

	report, err := f.svc.ScanOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Overdue: 1, Notified: 1}, report)
}
