package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hsafari99/bell/internal/commerce"
	"github.com/hsafari99/bell/internal/domain"
	"github.com/hsafari99/bell/internal/sequencer"
	"github.com/hsafari99/bell/internal/store"
	"github.com/hsafari99/bell/internal/tax"
)

// mockProvider implements commerce.Provider for testing. It delegates
// to a real in-memory provider and lets tests inject failures, tamper
// with session reads, and gate or count checkout calls.
type mockProvider struct {
	mu    sync.Mutex
	inner *commerce.MemoryProvider

	createErr   error
	addErr      error
	removeErr   error
	getErr      error
	validateErr error
	checkoutErr error

	checkoutOutcome *commerce.CheckoutOutcome // overrides the real outcome when set
	tamperItems     []domain.LineItem         // replaces GetSession items when set
	checkoutGate    chan struct{}             // Checkout blocks on this when set

	checkoutCalls int
}

func newMockProvider() *mockProvider {
	return &mockProvider{inner: commerce.NewMemoryProvider(time.Hour)}
}

func (m *mockProvider) setErr(field *error, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field = err
}

func (m *mockProvider) CheckoutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkoutCalls
}

func (m *mockProvider) CreateSession(ctx context.Context, userID string, items []domain.LineItem) (*commerce.Session, error) {
	m.mu.Lock()
	err := m.createErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.CreateSession(ctx, userID, items)
}

func (m *mockProvider) AddItem(ctx context.Context, sessionID string, item domain.LineItem) error {
	m.mu.Lock()
	err := m.addErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.AddItem(ctx, sessionID, item)
}

func (m *mockProvider) RemoveItem(ctx context.Context, sessionID string, productID int64) error {
	m.mu.Lock()
	err := m.removeErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.RemoveItem(ctx, sessionID, productID)
}

func (m *mockProvider) GetSession(ctx context.Context, sessionID string) (*commerce.Session, error) {
	m.mu.Lock()
	err := m.getErr
	tamper := m.tamperItems
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	session, errGet := m.inner.GetSession(ctx, sessionID)
	if errGet != nil {
		return nil, errGet
	}
	if tamper != nil {
		session.Items = tamper
	}
	return session, nil
}

func (m *mockProvider) ValidateSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	err := m.validateErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.ValidateSession(ctx, sessionID)
}

func (m *mockProvider) Checkout(ctx context.Context, sessionID string) (*commerce.CheckoutOutcome, error) {
	m.mu.Lock()
	m.checkoutCalls++
	err := m.checkoutErr
	override := m.checkoutOutcome
	gate := m.checkoutGate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if override != nil {
		return override, nil
	}
	return m.inner.Checkout(ctx, sessionID)
}

// flakyCartStore wraps a CartStore and lets tests fail writes/deletes
type flakyCartStore struct {
	store.CartStore
	mu        sync.Mutex
	deleteErr error
}

func (f *flakyCartStore) setDeleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

func (f *flakyCartStore) Delete(ctx context.Context, cartID string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.CartStore.Delete(ctx, cartID)
}

// testRig is a fully wired CartService over real in-memory stores with
// the mock provider in front of the commerce backend.
type testRig struct {
	svc      *CartService
	carts    *store.MemoryCartStore
	flaky    *flakyCartStore
	sessions *store.MemorySessionStore
	provider *mockProvider
}

func setupService(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	rig := &testRig{
		carts:    store.NewMemoryCartStore(),
		sessions: store.NewMemorySessionStore(),
		provider: newMockProvider(),
	}
	rig.flaky = &flakyCartStore{CartStore: rig.carts}
	rig.svc = NewCartService(
		sequencer.New(),
		rig.flaky,
		rig.sessions,
		rig.provider,
		tax.NewScheduleCalculator(),
		opts...,
	)
	return rig
}
