package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/pivot"
)

type memStore struct {
	products map[uuid.UUID]Product
	bySKU    map[string]uuid.UUID
	children map[string][]string
	failSKU  string
	loads    int
}

func newMemStore() *memStore {
	return &memStore{products: map[uuid.UUID]Product{}, bySKU: map[string]uuid.UUID{}, children: map[string][]string{}}
}

func (m *memStore) addProduct(sku string) uuid.UUID {
	id := uuid.New()
	m.products[id] = Product{ID: id, SKU: sku, Name: sku}
	m.bySKU[sku] = id
	return id
}

func (m *memStore) InTx(_ context.Context, fn func(Store) error) error {
	snapshot := m.clone()
	if err := fn(m); err != nil {
		m.products, m.bySKU, m.children = snapshot.products, snapshot.bySKU, snapshot.children
		return err
	}
	return nil
}

func (m *memStore) clone() *memStore {
	out := newMemStore()
	for k, v := range m.products {
		out.products[k] = v
	}
	for k, v := range m.bySKU {
		out.bySKU[k] = v
	}
	for k, v := range m.children {
		out.children[k] = append([]string(nil), v...)
	}
	return out
}

func childKey(parentID string, t pivot.Target) string {
	key := t.Table + "/" + parentID
	for _, c := range t.Conditions {
		key += "/" + c.Value.(string)
	}
	return key
}

func (m *memStore) LoadChildKeys(_ context.Context, parentID string, target pivot.Target) ([]string, error) {
	m.loads++
	return append([]string(nil), m.children[childKey(parentID, target)]...), nil
}

func (m *memStore) DeleteRows(_ context.Context, parentID string, target pivot.Target, keys []string) error {
	drop := map[string]bool{}
	for _, k := range keys {
		drop[k] = true
	}
	var kept []string
	for _, k := range m.children[childKey(parentID, target)] {
		if !drop[k] {
			kept = append(kept, k)
		}
	}
	m.children[childKey(parentID, target)] = kept
	return nil
}

func (m *memStore) InsertChildren(_ context.Context, parentID string, target pivot.Target, keys []string) error {
	k := childKey(parentID, target)
	m.children[k] = append(m.children[k], keys...)
	return nil
}

func (m *memStore) ProductExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.products[id]
	return ok, nil
}

func (m *memStore) UpsertProduct(_ context.Context, p Product) (uuid.UUID, bool, error) {
	if p.SKU == m.failSKU {
		return uuid.Nil, false, errors.New("disk full")
	}
	if id, ok := m.bySKU[p.SKU]; ok {
		p.ID = id
		m.products[id] = p
		return id, false, nil
	}
	p.ID = uuid.New()
	m.products[p.ID] = p
	m.bySKU[p.SKU] = p.ID
	return p.ID, true, nil
}
