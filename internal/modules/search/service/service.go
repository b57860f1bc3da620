package search

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"anoa.com/mediagallery/internal/entity"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
)

const charactersIndex = "characters"

// CharacterIndex keeps a full-text copy of characters.
type CharacterIndex interface {
	IndexCharacter(ctx context.Context, character *entity.Character) error
	DeleteCharacter(ctx context.Context, id uuid.UUID) error
	// SearchCharacters returns matching ids, best match first.
	SearchCharacters(ctx context.Context, query string, tagIDs []uuid.UUID, limit int64) ([]uuid.UUID, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewMeiliSearchService(client meilisearch.ServiceManager) CharacterIndex {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	filterable := []any{"tagIds", "authorId"}
	if _, err := s.client.Index(charactersIndex).UpdateFilterableAttributes(&filterable); err != nil {
		logrus.WithError(err).Warn("failed to update characters filterable attributes")
	}

	searchable := []string{"name", "description", "tagNames"}
	if _, err := s.client.Index(charactersIndex).UpdateSearchableAttributes(&searchable); err != nil {
		logrus.WithError(err).Warn("failed to update characters searchable attributes")
	}

	logrus.Info("meilisearch indexes initialized")
}

type meiliCharacterDoc struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AuthorID    string   `json:"authorId"`
	TagIDs      []string `json:"tagIds"`
	TagNames    []string `json:"tagNames"`
	CreatedAt   int64    `json:"createdAt"`
}

func (s *meiliSearchService) clean(text string) string {
	cleanText := html.UnescapeString(s.sanitizer.Sanitize(text))
	return strings.Join(strings.Fields(cleanText), " ")
}

func newCharacterDoc(c *entity.Character, clean func(string) string) meiliCharacterDoc {
	doc := meiliCharacterDoc{
		ID:        c.ID.String(),
		Name:      clean(c.Name),
		AuthorID:  c.AuthorID.String(),
		TagIDs:    []string{},
		TagNames:  []string{},
		CreatedAt: c.CreatedAt.Unix(),
	}
	if c.Description != nil {
		doc.Description = clean(*c.Description)
	}
	for _, id := range c.TagIDs() {
		doc.TagIDs = append(doc.TagIDs, id.String())
	}
	for _, t := range c.Tags() {
		doc.TagNames = append(doc.TagNames, clean(t.Name))
	}
	return doc
}

func (s *meiliSearchService) IndexCharacter(ctx context.Context, character *entity.Character) error {
	doc := newCharacterDoc(character, s.clean)

	task, err := s.client.Index(charactersIndex).AddDocumentsWithContext(ctx, []meiliCharacterDoc{doc}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("failed to index character: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"character_id": character.ID,
		"task_uid":     task.TaskUID,
	}).Debug("indexed character")
	return nil
}

func (s *meiliSearchService) DeleteCharacter(ctx context.Context, id uuid.UUID) error {
	if _, err := s.client.Index(charactersIndex).DeleteDocumentWithContext(ctx, id.String()); err != nil {
		return fmt.Errorf("failed to delete character from index: %w", err)
	}
	return nil
}

// tagFilter requires every tag, matching the in-process filter.
func tagFilter(tagIDs []uuid.UUID) string {
	parts := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		parts = append(parts, fmt.Sprintf("tagIds = '%s'", id.String()))
	}
	return strings.Join(parts, " AND ")
}

func (s *meiliSearchService) SearchCharacters(ctx context.Context, query string, tagIDs []uuid.UUID, limit int64) ([]uuid.UUID, error) {
	req := &meilisearch.SearchRequest{
		Limit:                limit,
		AttributesToRetrieve: []string{"id"},
	}
	if len(tagIDs) > 0 {
		req.Filter = tagFilter(tagIDs)
	}

	raw, err := s.client.Index(charactersIndex).SearchRawWithContext(ctx, query, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search characters: %w", err)
	}

	var resp struct {
		Hits []struct {
			ID string `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func strPtr(s string) *string {
	return &s
}
