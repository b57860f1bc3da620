// Package memstore is an in-process relationship store. It backs the
// "memory" store driver and serves as the repository double in tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"anoa.com/mediagallery/internal/entity"
	"github.com/google/uuid"
)

type state struct {
	users     map[uuid.UUID]entity.User
	userOrder []uuid.UUID

	characters     map[uuid.UUID]entity.Character
	characterOrder []uuid.UUID

	tags     map[uuid.UUID]entity.Tag
	tagOrder []uuid.UUID

	media      map[uuid.UUID]entity.Media
	mediaOrder []uuid.UUID

	characterTags  []entity.CharacterTag
	characterMedia []entity.CharacterMedia
	likes          []entity.MediaLike
}

func newState() *state {
	return &state{
		users:      make(map[uuid.UUID]entity.User),
		characters: make(map[uuid.UUID]entity.Character),
		tags:       make(map[uuid.UUID]entity.Tag),
		media:      make(map[uuid.UUID]entity.Media),
	}
}

// clone copies every table. Rows are stored without relations, so a shallow
// copy of each value is enough.
func (st *state) clone() *state {
	return &state{
		users:          maps.Clone(st.users),
		userOrder:      slices.Clone(st.userOrder),
		characters:     maps.Clone(st.characters),
		characterOrder: slices.Clone(st.characterOrder),
		tags:           maps.Clone(st.tags),
		tagOrder:       slices.Clone(st.tagOrder),
		media:          maps.Clone(st.media),
		mediaOrder:     slices.Clone(st.mediaOrder),
		characterTags:  slices.Clone(st.characterTags),
		characterMedia: slices.Clone(st.characterMedia),
		likes:          slices.Clone(st.likes),
	}
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   *state

	faults map[string]error
}

func New() *Store {
	return &Store{
		st:     newState(),
		faults: make(map[string]error),
	}
}

type txKey struct{}

// WithinTransaction runs fn with exclusive write access and restores the
// previous state when fn fails.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the named repository operation (e.g. "character.ReplaceTags")
// return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// lock acquires the store and returns the injected fault for op, if any.
// Callers must unlock even when an error is returned.
func (s *Store) lock(op string) error {
	s.mu.Lock()
	return s.faults[op]
}

func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

func (s *Store) Characters() *CharacterRepo { return &CharacterRepo{s: s} }

func (s *Store) Tags() *TagRepo { return &TagRepo{s: s} }

func (s *Store) Media() *MediaRepo { return &MediaRepo{s: s} }

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return slices.DeleteFunc(ids, func(v uuid.UUID) bool { return v == id })
}

func userPtr(st *state, id uuid.UUID) *entity.User {
	u, ok := st.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (st *state) hydrateMedia(id uuid.UUID) *entity.Media {
	m, ok := st.media[id]
	if !ok {
		return nil
	}
	m.Likes = nil
	for _, l := range st.likes {
		if l.MediaID == id {
			m.Likes = append(m.Likes, l)
		}
	}
	return &m
}

func (st *state) hydrateCharacter(id uuid.UUID) *entity.Character {
	c, ok := st.characters[id]
	if !ok {
		return nil
	}

	c.Author = userPtr(st, c.AuthorID)
	c.Cover = nil
	if c.CoverID != nil {
		c.Cover = st.hydrateMedia(*c.CoverID)
	}

	c.TagLinks = nil
	for _, l := range st.characterTags {
		if l.CharacterID != id {
			continue
		}
		if t, ok := st.tags[l.TagID]; ok {
			l.Tag = &t
		}
		c.TagLinks = append(c.TagLinks, l)
	}

	c.MediaLinks = nil
	for _, l := range st.characterMedia {
		if l.CharacterID != id {
			continue
		}
		l.Media = st.hydrateMedia(l.MediaID)
		c.MediaLinks = append(c.MediaLinks, l)
	}

	return &c
}

func (st *state) hydrateTag(id uuid.UUID) *entity.Tag {
	t, ok := st.tags[id]
	if !ok {
		return nil
	}

	t.Author = userPtr(st, t.AuthorID)
	t.Cover = nil
	if t.CoverID != nil {
		t.Cover = st.hydrateMedia(*t.CoverID)
	}

	t.CharacterLinks = nil
	for _, l := range st.characterTags {
		if l.TagID == id {
			t.CharacterLinks = append(t.CharacterLinks, l)
		}
	}

	return &t
}
