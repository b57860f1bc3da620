package validator

import (
	"testing"

	"anoa.com/mediagallery/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type characterInput struct {
	Name        string   `json:"name" validate:"min=3,max=18"`
	Description string   `json:"description" validate:"omitempty,min=3,max=140"`
	Tags        []string `json:"tags" validate:"dive,uuid"`
}

func TestStruct_FieldMessages(t *testing.T) {
	tests := []struct {
		name      string
		input     characterInput
		wantField string
		wantMsg   string
	}{
		{"short name", characterInput{Name: "Al"}, "name", "must contain at least 3 character(s)"},
		{"long name", characterInput{Name: "abcdefghijklmnopqrs"}, "name", "must contain at most 18 character(s)"},
		{"short description", characterInput{Name: "Aria", Description: "hi"}, "description", "must contain at least 3 character(s)"},
		{"bad tag id", characterInput{Name: "Aria", Tags: []string{"nope"}}, "tags[0]", "must be a valid id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			require.Error(t, err)

			ve, ok := apperror.AsValidation(err)
			require.True(t, ok)
			require.Len(t, ve.Fields, 1)
			assert.Equal(t, tt.wantField, ve.Fields[0].Field)
			assert.Equal(t, tt.wantMsg, ve.Fields[0].Message)
		})
	}
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(characterInput{
		Name: "Aria",
		Tags: []string{"0190a5f2-3c4d-7e8f-9a0b-1c2d3e4f5a6b"},
	})
	assert.NoError(t, err)
}

func TestStruct_CountsRunesNotBytes(t *testing.T) {
	// 18 runes, 36 bytes.
	err := Struct(characterInput{Name: "éééééééééééééééééé"})
	assert.NoError(t, err)
}

func TestFormatValidationError(t *testing.T) {
	err := Struct(characterInput{Name: ""})
	assert.Equal(t, "name must contain at least 3 character(s)", FormatValidationError(err))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Ember & Ash", Sanitize("  <b>Ember</b> &amp; Ash<script>x</script> "))
}

func TestParseIDs_DropsRepeats(t *testing.T) {
	a := "0190a5f2-3c4d-7e8f-9a0b-1c2d3e4f5a6b"
	b := "0190a5f2-3c4d-7e8f-9a0b-1c2d3e4f5a6c"

	ids, err := ParseIDs("tags", []string{a, b, a})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, a, ids[0].String())
	assert.Equal(t, b, ids[1].String())

	_, err = ParseIDs("tags", []string{a, "nope"})
	ve, ok := apperror.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "tags[1]", ve.Fields[0].Field)
}
