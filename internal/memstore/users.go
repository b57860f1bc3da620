package memstore

import (
	"context"
	"time"

	"anoa.com/mediagallery/internal/entity"
	userRepo "anoa.com/mediagallery/internal/modules/user/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var _ userRepo.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("user.Create"); err != nil {
		return err
	}
	st := r.s.st

	for _, u := range st.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}

	if user.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		user.ID = id
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	st.users[user.ID] = *user
	st.userOrder = append(st.userOrder, user.ID)
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("user.FindByID"); err != nil {
		return nil, err
	}

	u := userPtr(r.s.st, id)
	if u == nil {
		return nil, apperror.ErrNotFound
	}
	return u, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("user.FindByUsername"); err != nil {
		return nil, err
	}

	for _, id := range r.s.st.userOrder {
		if u := r.s.st.users[id]; u.Username == username {
			return &u, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *UserRepo) UpdateStatus(ctx context.Context, id uuid.UUID, verified, banned bool) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("user.UpdateStatus"); err != nil {
		return err
	}

	u, ok := r.s.st.users[id]
	if !ok {
		return apperror.ErrNotFound
	}
	u.Verified = verified
	u.Banned = banned
	r.s.st.users[id] = u
	return nil
}
