package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/repository"
	"github.com/altamontana/booking-api/internal/webpay"
)

type fakeGateway struct {
	createCalls int32
	commitCalls int32

	handle    webpay.TransactionHandle
	createErr error
	lastReq   webpay.CreateRequest

	result    webpay.CommitResult
	commitErr error
	gate      chan struct{}
	started   chan struct{}
}

func (g *fakeGateway) Create(_ context.Context, req webpay.CreateRequest) (webpay.TransactionHandle, error) {
	atomic.AddInt32(&g.createCalls, 1)
	g.lastReq = req
	return g.handle, g.createErr
}

func (g *fakeGateway) Commit(_ context.Context, token string) (webpay.CommitResult, error) {
	atomic.AddInt32(&g.commitCalls, 1)
	if g.started != nil {
		close(g.started)
		g.started = nil
	}
	if g.gate != nil {
		<-g.gate
	}
	return g.result, g.commitErr
}

type fakeExperiences map[uint64]model.Experience

func (f fakeExperiences) GetByID(_ context.Context, id uint64) (*model.Experience, error) {
	e, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

type fakePayments struct {
	mu      sync.Mutex
	byOrder map[string]*model.Payment

	// storeErrs are returned, in order, by the next StoreCommit calls.
	storeErrs  []error
	storeCalls int
}

func newFakePayments() *fakePayments {
	return &fakePayments{byOrder: map[string]*model.Payment{}}
}

func (f *fakePayments) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byOrder[p.BuyOrder]; ok {
		return repository.ErrConflict
	}
	p.ID = uint64(len(f.byOrder) + 1)
	cp := *p
	f.byOrder[p.BuyOrder] = &cp
	return nil
}

func (f *fakePayments) SetToken(_ context.Context, buyOrder, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byOrder[buyOrder]
	if !ok {
		return repository.ErrNotFound
	}
	p.Token = token
	p.Status = model.PaymentRedirected
	return nil
}

func (f *fakePayments) find(token string) *model.Payment {
	for _, p := range f.byOrder {
		if p.Token == token {
			return p
		}
	}
	return nil
}

func (f *fakePayments) GetByToken(_ context.Context, token string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.find(token)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) StoreCommit(_ context.Context, rec *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storeCalls++
	if len(f.storeErrs) > 0 {
		err := f.storeErrs[0]
		f.storeErrs = f.storeErrs[1:]
		if err != nil {
			return err
		}
	}
	p := f.find(rec.Token)
	if p == nil || p.Status.Committed() {
		return repository.ErrConflict
	}
	p.Status = rec.Status
	p.Amount = rec.Amount
	p.ResponseCode = rec.ResponseCode
	p.AuthorizationCode = rec.AuthorizationCode
	p.CardLast4 = rec.CardLast4
	p.RawCommit = rec.RawCommit
	return nil
}

func (f *fakePayments) SetStatus(_ context.Context, buyOrder string, status model.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byOrder[buyOrder]; ok && (p.Status == model.PaymentPending || p.Status == model.PaymentRedirected) {
		p.Status = status
	}
	return nil
}

func (f *fakePayments) SetStatusByToken(_ context.Context, token string, status model.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.find(token); p != nil && (p.Status == model.PaymentPending || p.Status == model.PaymentRedirected) {
		p.Status = status
	}
	return nil
}

func (f *fakePayments) status(buyOrder string) model.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byOrder[buyOrder]; ok {
		return p.Status
	}
	return ""
}

type fakeBookings struct {
	created   []model.Booking
	cancelled []string
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	b.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, *b)
	return nil
}

func (f *fakeBookings) Cancel(_ context.Context, buyOrder string) error {
	f.cancelled = append(f.cancelled, buyOrder)
	return nil
}

type fakePending struct {
	saved []model.PendingBooking
}

func (f *fakePending) Save(_ context.Context, pb model.PendingBooking) error {
	f.saved = append(f.saved, pb)
	return nil
}
