package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/fjod/go_cart/shopping-cart/internal/cache"
	"github.com/fjod/go_cart/shopping-cart/internal/domain"
	"github.com/fjod/go_cart/shopping-cart/internal/repository"
)

type mockRepository struct {
	m      sync.Mutex
	lines  []domain.CartLine
	nextID int
	saves  int
	err    error
}

func (m *mockRepository) FindByUsername(_ context.Context, username string) ([]domain.CartLine, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.CartLine, 0)
	for _, l := range m.lines {
		if l.Username == username {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockRepository) Save(_ context.Context, line *domain.CartLine, expected int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++

	if line.ID == "" {
		for _, l := range m.lines {
			if l.Username == line.Username && domain.ProductKey(l.ProductName) == domain.ProductKey(line.ProductName) {
				return repository.ErrConcurrentUpdate
			}
		}
		m.nextID++
		line.ID = strconv.Itoa(m.nextID)
		m.lines = append(m.lines, *line)
		return nil
	}

	for i := range m.lines {
		if m.lines[i].ID == line.ID {
			if m.lines[i].Quantity != expected {
				return repository.ErrConcurrentUpdate
			}
			m.lines[i] = *line
			return nil
		}
	}
	return repository.ErrConcurrentUpdate
}

func (m *mockRepository) DeleteByID(_ context.Context, id string) (*domain.CartLine, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i, l := range m.lines {
		if l.ID == id {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			return &l, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) DeleteByUsername(_ context.Context, username string) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	kept := m.lines[:0]
	var deleted int64
	for _, l := range m.lines {
		if l.Username == username {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	m.lines = kept
	return deleted, nil
}

func (m *mockRepository) Close(context.Context) error { return nil }

func (m *mockRepository) seed(lines ...domain.CartLine) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, l := range lines {
		m.nextID++
		l.ID = strconv.Itoa(m.nextID)
		m.lines = append(m.lines, l)
	}
}

type mockCache struct {
	m       sync.Mutex
	data    map[string][]domain.CartLine
	gets    int
	deletes []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]domain.CartLine)}
}

func (c *mockCache) Get(_ context.Context, username string) ([]domain.CartLine, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.gets++
	lines, ok := c.data[username]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return lines, nil
}

func (c *mockCache) Set(_ context.Context, username string, lines []domain.CartLine) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.data[username] = lines
	return nil
}

func (c *mockCache) Delete(_ context.Context, username string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.data, username)
	c.deletes = append(c.deletes, username)
	return nil
}

type mockValidator struct {
	userErr    error
	productErr error
	products   map[string]domain.ValidatedProduct
	userCalls  int
	prodCalls  int
}

func (v *mockValidator) ValidateUser(context.Context, string, string) error {
	v.userCalls++
	return v.userErr
}

func (v *mockValidator) ValidateProduct(_ context.Context, productName, _ string) (domain.ValidatedProduct, error) {
	v.prodCalls++
	if v.productErr != nil {
		return domain.ValidatedProduct{}, v.productErr
	}
	for name, p := range v.products {
		if strings.EqualFold(name, productName) {
			return p, nil
		}
	}
	return domain.ValidatedProduct{}, domain.ErrProductNotFound
}

type mockPublisher struct {
	m      sync.Mutex
	orders []domain.CheckoutOrder
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, order domain.CheckoutOrder) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return p.err
	}
	p.orders = append(p.orders, order)
	return nil
}

// pausingRepository snapshots storage on the first FindByUsername, then
// holds it until release is closed. Later calls pass straight through.
type pausingRepository struct {
	*mockRepository
	once     sync.Once
	entered  chan struct{}
	release  chan struct{}
	observed chan error
}

func newPausingRepository(repo *mockRepository) *pausingRepository {
	return &pausingRepository{
		mockRepository: repo,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
		observed:       make(chan error, 1),
	}
}

func (p *pausingRepository) FindByUsername(ctx context.Context, username string) ([]domain.CartLine, error) {
	first := false
	p.once.Do(func() { first = true })
	if !first {
		return p.mockRepository.FindByUsername(ctx, username)
	}

	lines, err := p.mockRepository.FindByUsername(ctx, username)
	close(p.entered)
	<-p.release
	p.observed <- ctx.Err()
	return lines, err
}
