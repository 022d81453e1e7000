package resource

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{ calls int }

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeRepo struct {
	rows    map[string]*Resource
	open    map[string]bool
	nextID  int
	updates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*Resource{}, open: map[string]bool{}}
}

func (r *fakeRepo) Create(ctx context.Context, res *Resource) error {
	r.nextID++
	res.ID = fmt.Sprintf("res-%d", r.nextID)
	cp := *res
	r.rows[res.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, kind Kind, id string) (*Resource, error) {
	res, ok := r.rows[id]
	if !ok || res.Kind != kind {
		return nil, ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, kind Kind, id string) (*Resource, error) {
	return r.GetByID(ctx, kind, id)
}

func (r *fakeRepo) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	var out []*Resource
	for _, res := range r.rows {
		if res.Kind == filter.Kind {
			out = append(out, res)
		}
	}
	return out, len(out), nil
}

func (r *fakeRepo) Update(ctx context.Context, res *Resource) error {
	r.updates++
	cp := *res
	r.rows[res.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, kind Kind, id string) error {
	delete(r.rows, id)
	return nil
}

func (r *fakeRepo) HasOpenRequests(ctx context.Context, kind Kind, id string) (bool, error) {
	return r.open[id], nil
}

var errShrinkBlocked = errors.New("not enough available units")

type fakeUnits struct {
	count     map[string]int
	available map[string]int
	purged    []string
}

func newFakeUnits() *fakeUnits {
	return &fakeUnits{count: map[string]int{}, available: map[string]int{}}
}

func (u *fakeUnits) Provision(ctx context.Context, itemID string, n int) error {
	u.count[itemID] += n
	u.available[itemID] += n
	return nil
}

func (u *fakeUnits) Deprovision(ctx context.Context, itemID string, n int) error {
	if u.available[itemID] < n {
		return errShrinkBlocked
	}
	u.count[itemID] -= n
	u.available[itemID] -= n
	return nil
}

func (u *fakeUnits) Purge(ctx context.Context, itemID string) error {
	u.purged = append(u.purged, itemID)
	delete(u.count, itemID)
	delete(u.available, itemID)
	return nil
}

func setup() (*fakeRepo, *fakeUnits, Service) {
	repo := newFakeRepo()
	units := newFakeUnits()
	return repo, units, NewService(repo, units, &fakeTx{})
}

func intPtr(v int) *int { return &v }

func TestCreateItemProvisionsUnits(t *testing.T) {
	ctx := context.Background()
	_, units, svc := setup()

	item, err := svc.Create(ctx, CreateRequest{Kind: KindItem, Name: "  Projector ", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "Projector", item.Name)
	assert.Equal(t, 3, units.count[item.ID])

	room, err := svc.Create(ctx, CreateRequest{Kind: KindRoom, Name: "AVR", Quantity: 1})
	require.NoError(t, err)
	assert.Zero(t, units.count[room.ID], "rooms have no physical units")
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	_, _, svc := setup()

	_, err := svc.Create(ctx, CreateRequest{Kind: "desk", Name: "x", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = svc.Create(ctx, CreateRequest{Kind: KindItem, Name: "   ", Quantity: 1})
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = svc.Create(ctx, CreateRequest{Kind: KindItem, Name: "Mic", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateResizesUnitPool(t *testing.T) {
	ctx := context.Background()
	_, units, svc := setup()

	item, err := svc.Create(ctx, CreateRequest{Kind: KindItem, Name: "Camera", Quantity: 2})
	require.NoError(t, err)

	item, err = svc.Update(ctx, KindItem, item.ID, UpdateRequest{Quantity: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, 5, units.count[item.ID])

	item, err = svc.Update(ctx, KindItem, item.ID, UpdateRequest{Quantity: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, 1, units.count[item.ID])
}

func TestUpdateShrinkBlockedLeavesQuantity(t *testing.T) {
	ctx := context.Background()
	repo, units, svc := setup()

	item, err := svc.Create(ctx, CreateRequest{Kind: KindItem, Name: "Tripod", Quantity: 3})
	require.NoError(t, err)
	units.available[item.ID] = 1 // two are out on loan

	_, err = svc.Update(ctx, KindItem, item.ID, UpdateRequest{Quantity: intPtr(1)})
	assert.ErrorIs(t, err, errShrinkBlocked)

	stored, err := repo.GetByID(ctx, KindItem, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Quantity)
	assert.Zero(t, repo.updates)
}

func TestUpdateRoomQuantityDoesNotTouchUnits(t *testing.T) {
	ctx := context.Background()
	_, units, svc := setup()

	room, err := svc.Create(ctx, CreateRequest{Kind: KindRoom, Name: "Lab 2", Quantity: 1})
	require.NoError(t, err)

	room, err = svc.Update(ctx, KindRoom, room.ID, UpdateRequest{Quantity: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, room.Quantity)
	assert.Empty(t, units.count)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo, units, svc := setup()

	item, err := svc.Create(ctx, CreateRequest{Kind: KindItem, Name: "Speaker", Quantity: 2})
	require.NoError(t, err)

	repo.open[item.ID] = true
	assert.ErrorIs(t, svc.Delete(ctx, KindItem, item.ID), ErrInUse)
	assert.Empty(t, units.purged)

	repo.open[item.ID] = false
	require.NoError(t, svc.Delete(ctx, KindItem, item.ID))
	assert.Equal(t, []string{item.ID}, units.purged)

	_, err = svc.GetByID(ctx, KindItem, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, KindRoom, "missing"), ErrNotFound)
}
