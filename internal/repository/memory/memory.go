// Package memory contains in-memory implementations of repository interfaces.
// They back the server when no database DSN is configured and serve as
// realistic collaborators in handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepo is a map-backed UserRepository.
type UserRepo struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]model.User
}

// NewUserRepo returns an empty user store.
func NewUserRepo() *UserRepo {
	return &UserRepo{byID: make(map[uuid.UUID]model.User)}
}

func (r *UserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.findEmail(email)
	return ok, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.findEmail(email)
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// Save upserts by ID. Email uniqueness mirrors the database unique index.
func (r *UserRepo) Save(_ context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := *u
	if out.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		out.ID = id
	}
	if other, ok := r.findEmail(out.Email); ok && other.ID != out.ID {
		return nil, errs.ErrAlreadyExists
	}
	if prev, ok := r.byID[out.ID]; ok {
		out.CreatedAt = prev.CreatedAt
	} else {
		out.CreatedAt = time.Now().UTC()
	}
	r.byID[out.ID] = out
	return &out, nil
}

// findEmail must be called with r.mu held.
func (r *UserRepo) findEmail(email string) (model.User, bool) {
	for _, u := range r.byID {
		if u.Email == email {
			return u, true
		}
	}
	return model.User{}, false
}

// HistoryRepo is a slice-backed HistoryRepository with store-assigned ids
// and strictly increasing creation timestamps.
type HistoryRepo struct {
	mu      sync.RWMutex
	records []model.AnalysisRecord
	nextID  int64
	last    time.Time
	now     func() time.Time
}

// NewHistoryRepo returns an empty history store.
func NewHistoryRepo() *HistoryRepo {
	return &HistoryRepo{nextID: 1, now: time.Now}
}

func (r *HistoryRepo) Create(_ context.Context, rec *model.AnalysisRecord) (*model.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	if !ts.After(r.last) {
		ts = r.last.Add(time.Microsecond)
	}
	r.last = ts

	out := *rec
	out.ID = r.nextID
	out.CreatedAt = ts
	r.nextID++
	r.records = append(r.records, out)
	return &out, nil
}

func (r *HistoryRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.AnalysisRecord{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *HistoryRepo) GetByID(_ context.Context, id int64) (*model.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id {
			c := rec
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
