package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
)

// FileStore persists the cart as a single JSON document on disk. This
// is the client-resident durable representation: read on session start,
// rewritten atomically after every mutation. A missing or corrupt file
// loads as an empty cart so startup never fails on bad local state.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileState struct {
	Items         []cart.LineItem              `json:"items"`
	AppliedCoupon *coupon.AppliedCouponDetails `json:"applied_coupon,omitempty"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	return state.Items, nil
}

func (s *FileStore) Save(ctx context.Context, items []cart.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	state.Items = copyItems(items)
	return s.write(state)
}

func (s *FileStore) Upsert(ctx context.Context, item cart.LineItem, increment bool) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	items, err := cart.Upsert(state.Items, item, increment)
	if err != nil {
		return state.Items, err
	}
	state.Items = items
	if err := s.write(state); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *FileStore) Remove(ctx context.Context, id string) ([]cart.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	state.Items = cart.Remove(state.Items, id)
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state.Items, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	state.Items = nil
	return s.write(state)
}

func (s *FileStore) AppliedCoupon(ctx context.Context) (*coupon.AppliedCouponDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	if state.AppliedCoupon == nil {
		return nil, nil
	}
	cp := *state.AppliedCoupon
	return &cp, nil
}

func (s *FileStore) SaveAppliedCoupon(ctx context.Context, details *coupon.AppliedCouponDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	if details == nil {
		state.AppliedCoupon = nil
	} else {
		cp := *details
		state.AppliedCoupon = &cp
	}
	return s.write(state)
}

func (s *FileStore) ClearAppliedCoupon(ctx context.Context) error {
	return s.SaveAppliedCoupon(ctx, nil)
}

// read loads the current file state. Corruption is logged and treated
// as empty rather than propagated.
func (s *FileStore) read() fileState {
	var state fileState
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[Store] Failed to read %s: %v", s.path, err)
		}
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("[Store] Corrupt cart file %s, starting empty: %v", s.path, err)
		return fileState{}
	}
	return state
}

// write replaces the file atomically via a temp file and rename, so a
// crash mid-write can never leave a half-written cart behind.
func (s *FileStore) write(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cart-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
