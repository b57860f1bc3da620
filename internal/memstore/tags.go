package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"anoa.com/mediagallery/internal/entity"
	tagRepo "anoa.com/mediagallery/internal/modules/tag/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/google/uuid"
)

var _ tagRepo.TagRepository = (*TagRepo)(nil)

type TagRepo struct {
	s *Store
}

func (r *TagRepo) Create(ctx context.Context, tag *entity.Tag) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("tag.Create"); err != nil {
		return err
	}
	st := r.s.st

	if tag.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		tag.ID = id
	}
	now := time.Now()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now

	row := *tag
	row.Author, row.Cover, row.CharacterLinks = nil, nil, nil
	st.tags[tag.ID] = row
	st.tagOrder = append(st.tagOrder, tag.ID)
	return nil
}

func (r *TagRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tag, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("tag.FindByID"); err != nil {
		return nil, err
	}

	t := r.s.st.hydrateTag(id)
	if t == nil {
		return nil, apperror.ErrNotFound
	}
	return t, nil
}

// find returns matching tags ordered by name, like the SQL repository.
func (r *TagRepo) find(op string, keep func(t entity.Tag) bool) ([]*entity.Tag, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock(op); err != nil {
		return nil, err
	}
	st := r.s.st

	var tags []*entity.Tag
	for _, id := range st.tagOrder {
		if keep(st.tags[id]) {
			tags = append(tags, st.hydrateTag(id))
		}
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

func (r *TagRepo) FindAll(ctx context.Context) ([]*entity.Tag, error) {
	return r.find("tag.FindAll", func(entity.Tag) bool { return true })
}

func (r *TagRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Tag, error) {
	return r.find("tag.FindByIDs", func(t entity.Tag) bool { return slices.Contains(ids, t.ID) })
}

func (r *TagRepo) FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Tag, error) {
	return r.find("tag.FindByAuthor", func(t entity.Tag) bool { return t.AuthorID == authorID })
}

func (r *TagRepo) Update(ctx context.Context, tag *entity.Tag) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("tag.Update"); err != nil {
		return err
	}

	row, ok := r.s.st.tags[tag.ID]
	if !ok {
		return apperror.ErrNotFound
	}
	row.Name = tag.Name
	row.Description = tag.Description
	row.UpdatedAt = time.Now()
	r.s.st.tags[tag.ID] = row
	return nil
}

func (r *TagRepo) SetCover(ctx context.Context, tagID uuid.UUID, mediaID *uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("tag.SetCover"); err != nil {
		return err
	}

	row, ok := r.s.st.tags[tagID]
	if !ok {
		return nil
	}
	if mediaID != nil {
		id := *mediaID
		mediaID = &id
	}
	row.CoverID = mediaID
	r.s.st.tags[tagID] = row
	return nil
}

func (r *TagRepo) ClearCoverEverywhere(ctx context.Context, mediaID uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("tag.ClearCoverEverywhere"); err != nil {
		return err
	}

	for id, t := range r.s.st.tags {
		if t.CoverID != nil && *t.CoverID == mediaID {
			t.CoverID = nil
			r.s.st.tags[id] = t
		}
	}
	return nil
}

func (r *TagRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("tag.Delete"); err != nil {
		return err
	}
	st := r.s.st

	if _, ok := st.tags[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(st.tags, id)
	st.tagOrder = removeID(st.tagOrder, id)
	return nil
}
