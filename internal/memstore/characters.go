package memstore

import (
	"context"
	"slices"
	"time"

	"anoa.com/mediagallery/internal/entity"
	characterRepo "anoa.com/mediagallery/internal/modules/character/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/google/uuid"
)

var _ characterRepo.CharacterRepository = (*CharacterRepo)(nil)

type CharacterRepo struct {
	s *Store
}

func (r *CharacterRepo) Create(ctx context.Context, character *entity.Character) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.Create"); err != nil {
		return err
	}
	st := r.s.st

	if character.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		character.ID = id
	}
	now := time.Now()
	if character.CreatedAt.IsZero() {
		character.CreatedAt = now
	}
	character.UpdatedAt = now

	row := *character
	row.Author, row.Cover, row.TagLinks, row.MediaLinks = nil, nil, nil, nil
	st.characters[character.ID] = row
	st.characterOrder = append(st.characterOrder, character.ID)
	return nil
}

func (r *CharacterRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Character, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.FindByID"); err != nil {
		return nil, err
	}

	c := r.s.st.hydrateCharacter(id)
	if c == nil {
		return nil, apperror.ErrNotFound
	}
	return c, nil
}

func (r *CharacterRepo) find(op string, keep func(c entity.Character) bool) ([]*entity.Character, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock(op); err != nil {
		return nil, err
	}
	st := r.s.st

	var characters []*entity.Character
	for _, id := range st.characterOrder {
		if keep(st.characters[id]) {
			characters = append(characters, st.hydrateCharacter(id))
		}
	}
	return characters, nil
}

func (r *CharacterRepo) FindAll(ctx context.Context) ([]*entity.Character, error) {
	return r.find("character.FindAll", func(entity.Character) bool { return true })
}

func (r *CharacterRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Character, error) {
	return r.find("character.FindByIDs", func(c entity.Character) bool { return slices.Contains(ids, c.ID) })
}

func (r *CharacterRepo) FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Character, error) {
	return r.find("character.FindByAuthor", func(c entity.Character) bool { return c.AuthorID == authorID })
}

func (r *CharacterRepo) FindByTag(ctx context.Context, tagID uuid.UUID) ([]*entity.Character, error) {
	tagged := make(map[uuid.UUID]struct{})
	r.s.mu.Lock()
	for _, l := range r.s.st.characterTags {
		if l.TagID == tagID {
			tagged[l.CharacterID] = struct{}{}
		}
	}
	r.s.mu.Unlock()

	return r.find("character.FindByTag", func(c entity.Character) bool {
		_, ok := tagged[c.ID]
		return ok
	})
}

func (r *CharacterRepo) Update(ctx context.Context, character *entity.Character) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.Update"); err != nil {
		return err
	}

	row, ok := r.s.st.characters[character.ID]
	if !ok {
		return apperror.ErrNotFound
	}
	row.Name = character.Name
	row.Description = character.Description
	row.UpdatedAt = time.Now()
	r.s.st.characters[character.ID] = row
	return nil
}

func (r *CharacterRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.Delete"); err != nil {
		return err
	}
	st := r.s.st

	if _, ok := st.characters[id]; !ok {
		return apperror.ErrNotFound
	}

	st.characterTags = slices.DeleteFunc(st.characterTags, func(l entity.CharacterTag) bool { return l.CharacterID == id })
	st.characterMedia = slices.DeleteFunc(st.characterMedia, func(l entity.CharacterMedia) bool { return l.CharacterID == id })
	delete(st.characters, id)
	st.characterOrder = removeID(st.characterOrder, id)
	return nil
}

func (r *CharacterRepo) ReplaceTags(ctx context.Context, characterID uuid.UUID, tagIDs []uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.ReplaceTags"); err != nil {
		return err
	}
	st := r.s.st

	st.characterTags = slices.DeleteFunc(st.characterTags, func(l entity.CharacterTag) bool { return l.CharacterID == characterID })
	for i, id := range tagIDs {
		st.characterTags = append(st.characterTags, entity.CharacterTag{CharacterID: characterID, TagID: id, Position: i})
	}
	return nil
}

func (r *CharacterRepo) RemoveTagEverywhere(ctx context.Context, tagID uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.RemoveTagEverywhere"); err != nil {
		return err
	}

	r.s.st.characterTags = slices.DeleteFunc(r.s.st.characterTags, func(l entity.CharacterTag) bool { return l.TagID == tagID })
	return nil
}

func (r *CharacterRepo) SetCover(ctx context.Context, characterID uuid.UUID, mediaID *uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.SetCover"); err != nil {
		return err
	}

	row, ok := r.s.st.characters[characterID]
	if !ok {
		return nil
	}
	if mediaID != nil {
		id := *mediaID
		mediaID = &id
	}
	row.CoverID = mediaID
	r.s.st.characters[characterID] = row
	return nil
}

func (r *CharacterRepo) AddMedia(ctx context.Context, characterID uuid.UUID, mediaIDs []uuid.UUID) (int64, error) {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.AddMedia"); err != nil {
		return 0, err
	}
	st := r.s.st

	var added int64
	now := time.Now()
	for _, id := range mediaIDs {
		exists := slices.ContainsFunc(st.characterMedia, func(l entity.CharacterMedia) bool {
			return l.CharacterID == characterID && l.MediaID == id
		})
		if exists {
			continue
		}
		st.characterMedia = append(st.characterMedia, entity.CharacterMedia{
			CharacterID: characterID,
			MediaID:     id,
			AddedAt:     now.Add(time.Duration(added) * time.Microsecond),
		})
		added++
	}
	return added, nil
}

func (r *CharacterRepo) RemoveMedia(ctx context.Context, characterID, mediaID uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.RemoveMedia"); err != nil {
		return err
	}

	r.s.st.characterMedia = slices.DeleteFunc(r.s.st.characterMedia, func(l entity.CharacterMedia) bool {
		return l.CharacterID == characterID && l.MediaID == mediaID
	})
	return nil
}

func (r *CharacterRepo) DetachMediaEverywhere(ctx context.Context, mediaID uuid.UUID) error {
	defer r.s.mu.Unlock()
	if err := r.s.lock("character.DetachMediaEverywhere"); err != nil {
		return err
	}
	st := r.s.st

	for id, c := range st.characters {
		if c.CoverID != nil && *c.CoverID == mediaID {
			c.CoverID = nil
			st.characters[id] = c
		}
	}
	st.characterMedia = slices.DeleteFunc(st.characterMedia, func(l entity.CharacterMedia) bool { return l.MediaID == mediaID })
	return nil
}
