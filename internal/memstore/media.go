package memstore

import (
	"context"
	"slices"
	"time"

	"anoa.com/mediagallery/internal/entity"
	mediaRepo "anoa.com/mediagallery/internal/modules/media/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/google/uuid"
)

var _ mediaRepo.MediaRepository = (*MediaRepo)(nil)

type MediaRepo struct {
	s *Store
}

func (r *MediaRepo) CreateBatch(ctx context.Context, media []*entity.Media) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.CreateBatch"); err != nil {
		return err
	}
	st := r.s.st

	for _, m := range media {
		if m.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			m.ID = id
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		row := *m
		row.Author = nil
		row.Likes = nil
		st.media[m.ID] = row
		st.mediaOrder = append(st.mediaOrder, m.ID)
	}
	return nil
}

func (r *MediaRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Media, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.FindByID"); err != nil {
		return nil, err
	}

	m := r.s.st.hydrateMedia(id)
	if m == nil {
		return nil, apperror.ErrNotFound
	}
	return m, nil
}

func (r *MediaRepo) find(op string, keep func(m entity.Media) bool) ([]*entity.Media, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock(op); err != nil {
		return nil, err
	}
	st := r.s.st

	var media []*entity.Media
	for _, id := range st.mediaOrder {
		if keep(st.media[id]) {
			media = append(media, st.hydrateMedia(id))
		}
	}
	return media, nil
}

func (r *MediaRepo) FindAll(ctx context.Context) ([]*entity.Media, error) {
	return r.find("media.FindAll", func(entity.Media) bool { return true })
}

func (r *MediaRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Media, error) {
	return r.find("media.FindByIDs", func(m entity.Media) bool { return slices.Contains(ids, m.ID) })
}

func (r *MediaRepo) FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Media, error) {
	return r.find("media.FindByAuthor", func(m entity.Media) bool { return m.AuthorID == authorID })
}

func (r *MediaRepo) FindLikedBy(ctx context.Context, userID uuid.UUID) ([]*entity.Media, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.FindLikedBy"); err != nil {
		return nil, err
	}
	st := r.s.st

	var media []*entity.Media
	for _, l := range st.likes {
		if l.UserID != userID {
			continue
		}
		if m := st.hydrateMedia(l.MediaID); m != nil {
			media = append(media, m)
		}
	}
	return media, nil
}

func (r *MediaRepo) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*entity.Media, error) {
	return r.find("media.FindPendingBefore", func(m entity.Media) bool { return m.URL == "" && m.CreatedAt.Before(cutoff) })
}

func (r *MediaRepo) UpdateURL(ctx context.Context, id uuid.UUID, url string) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.UpdateURL"); err != nil {
		return err
	}

	m, ok := r.s.st.media[id]
	if !ok {
		return nil
	}
	m.URL = url
	r.s.st.media[id] = m
	return nil
}

func (r *MediaRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.Delete"); err != nil {
		return err
	}
	st := r.s.st

	if _, ok := st.media[id]; !ok {
		return apperror.ErrNotFound
	}

	st.likes = slices.DeleteFunc(st.likes, func(l entity.MediaLike) bool { return l.MediaID == id })
	delete(st.media, id)
	st.mediaOrder = removeID(st.mediaOrder, id)
	return nil
}

func (r *MediaRepo) ToggleLike(ctx context.Context, mediaID, userID uuid.UUID) (bool, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.ToggleLike"); err != nil {
		return false, err
	}
	st := r.s.st

	if _, ok := st.media[mediaID]; !ok {
		return false, apperror.ErrNotFound
	}

	before := len(st.likes)
	st.likes = slices.DeleteFunc(st.likes, func(l entity.MediaLike) bool {
		return l.MediaID == mediaID && l.UserID == userID
	})
	if len(st.likes) < before {
		return false, nil
	}

	st.likes = append(st.likes, entity.MediaLike{MediaID: mediaID, UserID: userID, CreatedAt: time.Now()})
	return true, nil
}

func (r *MediaRepo) CharacterIDs(ctx context.Context, mediaIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("media.CharacterIDs"); err != nil {
		return nil, err
	}
	st := r.s.st

	result := make(map[uuid.UUID][]uuid.UUID, len(mediaIDs))
	for _, cid := range st.characterOrder {
		c := st.characters[cid]
		if c.CoverID != nil && slices.Contains(mediaIDs, *c.CoverID) {
			result[*c.CoverID] = append(result[*c.CoverID], cid)
		}
	}
	for _, l := range st.characterMedia {
		if slices.Contains(mediaIDs, l.MediaID) {
			result[l.MediaID] = append(result[l.MediaID], l.CharacterID)
		}
	}
	return result, nil
}
