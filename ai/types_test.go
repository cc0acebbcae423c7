package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEntityType(t *testing.T) {
	assert.Equal(t, "PRODUCT", NormalizeEntityType("product"))
	assert.Equal(t, "ERROR", NormalizeEntityType(" Error "))
	assert.Equal(t, "CONCEPT", NormalizeEntityType("gadget"))
	assert.Equal(t, "CONCEPT", NormalizeEntityType(""))
}

func TestNormalizeRelationshipType(t *testing.T) {
	assert.Equal(t, "CAUSES", NormalizeRelationshipType("causes"))
	assert.Equal(t, "PART_OF", NormalizeRelationshipType("part of"))
	assert.Equal(t, "RELATED_TO", NormalizeRelationshipType("befriends"))
}

func TestRelationshipTypeConfidences(t *testing.T) {
	assert.Len(t, RelationshipTypes, 7)
	for name, conf := range RelationshipTypes {
		assert.Greater(t, conf, 0.0, name)
		assert.LessOrEqual(t, conf, 1.0, name)
	}
}
