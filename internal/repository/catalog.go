package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/kvstore"

	log "github.com/sirupsen/logrus"
)

const ProductsKey = "b3tr_products"

var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedCatalog = errors.New("malformed catalog data")
)

// CatalogRepository stores the whole catalog as one JSON array. Every write
// rewrites the blob, so two processes editing the same key race with last
// write wins.
type CatalogRepository struct {
	store kvstore.Store
	mu    sync.Mutex
}

func NewCatalogRepository(store kvstore.Store) *CatalogRepository {
	return &CatalogRepository{store: store}
}

// GetAll returns the catalog, writing the default products when storage is empty.
func (r *CatalogRepository) GetAll(ctx context.Context) ([]domain.Product, error) {
	const op = "CatalogRepository.GetAll"

	r.mu.Lock()
	defer r.mu.Unlock()

	ps, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(ps) > 0 {
		return ps, nil
	}

	ps = domain.DefaultProducts()
	if err := r.save(ctx, ps); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.WithField("products", len(ps)).Info("Seeded default catalog")
	return ps, nil
}

func (r *CatalogRepository) Get(ctx context.Context, id int) (domain.Product, error) {
	ps, err := r.GetAll(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range ps {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("CatalogRepository.Get: product %d: %w", id, ErrNotFound)
}

// Upsert replaces the product with the same id in place, or appends it.
// A zero id is assigned max(existing)+1.
func (r *CatalogRepository) Upsert(ctx context.Context, p domain.Product) (domain.Product, error) {
	const op = "CatalogRepository.Upsert"

	r.mu.Lock()
	defer r.mu.Unlock()

	ps, err := r.load(ctx)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	if p.ID == 0 {
		p.ID = domain.NextProductID(ps)
	}

	replaced := false
	for i := range ps {
		if ps[i].ID == p.ID {
			ps[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		ps = append(ps, p)
	}

	if err := r.save(ctx, ps); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (r *CatalogRepository) Delete(ctx context.Context, id int) error {
	const op = "CatalogRepository.Delete"

	r.mu.Lock()
	defer r.mu.Unlock()

	ps, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	kept := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(ps) {
		return fmt.Errorf("%s: product %d: %w", op, id, ErrNotFound)
	}

	if err := r.save(ctx, kept); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *CatalogRepository) load(ctx context.Context) ([]domain.Product, error) {
	raw, ok, err := r.store.Get(ctx, ProductsKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ps []domain.Product
	if err := json.Unmarshal([]byte(raw), &ps); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalog, err)
	}
	return ps, nil
}

func (r *CatalogRepository) save(ctx context.Context, ps []domain.Product) error {
	b, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, ProductsKey, string(b))
}
