// Package aggregate derives read-side values (like totals, tag media, usage
// ratios, filtered and sorted listings) from loaded entities. Nothing here
// touches the store.
package aggregate

import (
	"sort"
	"strings"

	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/pkg/slice"
	"github.com/google/uuid"
)

// CharacterMedia returns the cover followed by the gallery.
func CharacterMedia(c *entity.Character) []*entity.Media {
	var media []*entity.Media
	if c.Cover != nil {
		media = append(media, c.Cover)
	}
	return append(media, c.GalleryMedia()...)
}

// CharacterLikeTotal sums the likes of the character's cover and gallery.
func CharacterLikeTotal(c *entity.Character) int {
	total := c.Cover.LikeCount()
	for _, m := range c.GalleryMedia() {
		total += m.LikeCount()
	}
	return total
}

// taggedMedia is the media of every character carrying tagID, each item once.
func taggedMedia(tagID uuid.UUID, characters []*entity.Character) []*entity.Media {
	var media []*entity.Media
	for _, c := range characters {
		if c.HasTag(tagID) {
			media = append(media, CharacterMedia(c)...)
		}
	}
	return slice.UniqueBy(media, func(m *entity.Media) uuid.UUID { return m.ID })
}

// TagLikeTotal sums likes over the union of media across the tag's
// characters. Media shared by several characters counts once.
func TagLikeTotal(tagID uuid.UUID, characters []*entity.Character) int {
	total := 0
	for _, m := range taggedMedia(tagID, characters) {
		total += m.LikeCount()
	}
	return total
}

// TagLikeTotals computes TagLikeTotal for every tag in one pass over the characters.
func TagLikeTotals(tags []*entity.Tag, characters []*entity.Character) map[uuid.UUID]int {
	totals := make(map[uuid.UUID]int, len(tags))
	for _, t := range tags {
		totals[t.ID] = TagLikeTotal(t.ID, characters)
	}
	return totals
}

// TagMedia is the media browsable under a tag: the union of its characters'
// covers and galleries, without the tag's own cover.
func TagMedia(tag *entity.Tag, characters []*entity.Character) []*entity.Media {
	media := taggedMedia(tag.ID, characters)
	if tag.CoverID == nil {
		return media
	}
	return slice.Filter(media, func(m *entity.Media) bool { return m.ID != *tag.CoverID })
}

// FilterCharacters keeps characters whose name or description contains query
// (case-insensitive substring) and that carry every tag in tagFilter.
func FilterCharacters(characters []*entity.Character, query string, tagFilter []uuid.UUID) []*entity.Character {
	q := strings.ToLower(query)

	result := make([]*entity.Character, 0, len(characters))
	for _, c := range characters {
		if !matchesQuery(c, q) {
			continue
		}
		if !hasAllTags(c, tagFilter) {
			continue
		}
		result = append(result, c)
	}
	return result
}

func matchesQuery(c *entity.Character, q string) bool {
	if strings.Contains(strings.ToLower(c.Name), q) {
		return true
	}
	return c.Description != nil && strings.Contains(strings.ToLower(*c.Description), q)
}

func hasAllTags(c *entity.Character, tagFilter []uuid.UUID) bool {
	for _, id := range tagFilter {
		if !c.HasTag(id) {
			return false
		}
	}
	return true
}

// SortByLikes returns a copy of items ordered by total. Items with equal
// totals keep their relative order.
func SortByLikes[T any](items []T, total func(T) int, ascending bool) []T {
	type keyed struct {
		item  T
		total int
	}

	ks := make([]keyed, len(items))
	for i, item := range items {
		ks[i] = keyed{item: item, total: total(item)}
	}

	sort.SliceStable(ks, func(a, b int) bool {
		if ascending {
			return ks[a].total < ks[b].total
		}
		return ks[a].total > ks[b].total
	})

	return slice.Map(ks, func(k keyed) T { return k.item })
}

// TagUsageRatio is the tag's share of all character-tag links, as a
// percentage. It is 0 when no tag has any character.
func TagUsageRatio(tag *entity.Tag, allTags []*entity.Tag) float64 {
	sum := 0
	for _, t := range allTags {
		sum += t.CharacterCount()
	}
	if sum == 0 {
		return 0
	}
	return float64(tag.CharacterCount()) / float64(sum) * 100
}
