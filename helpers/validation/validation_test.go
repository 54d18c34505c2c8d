package validation

import (
	"testing"

	"elearn_backend/helpers/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string   `json:"title" validate:"notblank,max=10"`
	Name     string   `json:"name" validate:"required"`
	Duration *float64 `json:"duration" validate:"omitempty,gte=0"`
}

func TestCheck(t *testing.T) {
	neg := -1.0
	err := Check(sample{Title: "   ", Duration: &neg})
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	assert.Equal(t, "Invalid fields: duration, name, title", apperr.MessageOf(err))

	fields := apperr.FieldsOf(err)
	assert.Equal(t, "title is a required field", fields["title"])
	assert.Equal(t, "name is a required field", fields["name"])
	assert.Contains(t, fields["duration"], "duration must be 0 or greater")
}

func TestCheckPasses(t *testing.T) {
	assert.NoError(t, Check(sample{Title: "Go", Name: "intro"}))
}
