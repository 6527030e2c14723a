package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSimilarity_IdenticalTexts(t *testing.T) {
	s := TextSimilarity("project management software teams", "project management software teams")
	assert.InDelta(t, 1.0, s, 1e-9)
}

func TestTextSimilarity_DisjointTexts(t *testing.T) {
	s := TextSimilarity("project management software", "artisan bakery sourdough")
	assert.Zero(t, s)
}

func TestTextSimilarity_PartialOverlap(t *testing.T) {
	s := TextSimilarity(
		"project management software for remote teams",
		"task management software for growing companies",
	)
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 1.0)
}

func TestTextSimilarity_EmptyInputs(t *testing.T) {
	assert.Zero(t, TextSimilarity("", "anything here"))
	assert.Zero(t, TextSimilarity("anything here", ""))
	assert.Zero(t, TextSimilarity("the a an", "of to in")) // stopwords only
}
