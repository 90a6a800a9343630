package handler

import (
	"context"
	"sync"

	"github.com/altamontana/booking-api/internal/checkout"
	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/reconcile"
	"github.com/altamontana/booking-api/internal/repository"
	"github.com/altamontana/booking-api/internal/webpay"
)

type fakeCheckout struct {
	mu          sync.Mutex
	initiateRes checkout.InitiateResult
	initiateErr error
	initiated   []checkout.InitiateRequest
	commitRes   webpay.CommitResult
	commitErr   error
	commits     []string
	cancels     [][2]string
}

func (f *fakeCheckout) Initiate(_ context.Context, req checkout.InitiateRequest) (checkout.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, req)
	return f.initiateRes, f.initiateErr
}

func (f *fakeCheckout) Commit(_ context.Context, token string) (webpay.CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, token)
	return f.commitRes, f.commitErr
}

func (f *fakeCheckout) Cancel(_ context.Context, buyOrder, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, [2]string{buyOrder, token})
}

type fakeReconciler struct {
	got reconcile.Params
	out reconcile.Outcome
}

func (f *fakeReconciler) Reconcile(_ context.Context, p reconcile.Params) reconcile.Outcome {
	f.got = p
	return f.out
}

type fakeConfirmations struct {
	byBuyOrder map[string]*model.ConfirmedBooking
}

func (f *fakeConfirmations) Confirmation(_ context.Context, buyOrder string) (*model.ConfirmedBooking, error) {
	if c, ok := f.byBuyOrder[buyOrder]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

type fakeExperiences struct {
	items     map[uint64]model.Experience
	deleteErr error
	updated   []model.Experience
}

func (f *fakeExperiences) List(context.Context) ([]model.Experience, error) {
	out := make([]model.Experience, 0, len(f.items))
	for _, e := range f.items {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeExperiences) GetByID(_ context.Context, id uint64) (*model.Experience, error) {
	e, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (f *fakeExperiences) Create(_ context.Context, e *model.Experience) error {
	e.ID = uint64(len(f.items) + 1)
	f.items[e.ID] = *e
	return nil
}

func (f *fakeExperiences) Update(_ context.Context, e *model.Experience) error {
	if _, ok := f.items[e.ID]; !ok {
		return repository.ErrNotFound
	}
	f.items[e.ID] = *e
	f.updated = append(f.updated, *e)
	return nil
}

func (f *fakeExperiences) Delete(_ context.Context, id uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeBookings struct {
	created []model.Booking
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	b.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, *b)
	return nil
}

func (f *fakeBookings) List(context.Context) ([]model.Booking, error) {
	return f.created, nil
}

type fakeUsers struct {
	byID       map[uint64]model.User
	takenNames map[string]bool
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (model.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, u model.User) error {
	if f.takenNames[u.Username] {
		return repository.ErrUsernameTaken
	}
	f.byID[u.ID] = u
	return nil
}
