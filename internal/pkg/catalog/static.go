package catalog

import (
	"context"
	"sort"
	"sync"
)

// StaticProvider serves variants from memory. Used for local development seeding
// and tests that need to change prices between calls.
type StaticProvider struct {
	mu       sync.RWMutex
	variants map[uint]Variant
	failWith error
}

func NewStaticProvider(variants ...Variant) *StaticProvider {
	p := &StaticProvider{variants: make(map[uint]Variant, len(variants))}
	for _, v := range variants {
		p.variants[v.ID] = v
	}
	return p
}

func (p *StaticProvider) GetVariant(ctx context.Context, variantID uint) (*Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	v, ok := p.variants[variantID]
	if !ok || !v.Active {
		return nil, ErrNotFound
	}
	out := v
	return &out, nil
}

func (p *StaticProvider) ListVariants(ctx context.Context, productID uint) ([]Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.failWith != nil {
		return nil, p.failWith
	}
	var out []Variant
	for _, v := range p.variants {
		if v.ProductID == productID && v.Active {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a variant.
func (p *StaticProvider) Put(v Variant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variants[v.ID] = v
}

// SetPrice changes the current catalog price of a variant.
func (p *StaticProvider) SetPrice(variantID uint, price int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.variants[variantID]; ok {
		v.Price = price
		p.variants[variantID] = v
	}
}

// Remove drops a variant so subsequent lookups return ErrNotFound.
func (p *StaticProvider) Remove(variantID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.variants, variantID)
}

// FailWith makes every lookup return err until called again with nil.
func (p *StaticProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}
