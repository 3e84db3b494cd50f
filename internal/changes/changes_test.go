package changes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/changes"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

func TestRecordHash_StableAcrossMapOrder(t *testing.T) {
	t.Parallel()

	a := domain.Attributes{"species": "Dog", "breed": "Husky", "sex": "Male"}
	b := domain.Attributes{"sex": "Male", "species": "Dog", "breed": "Husky"}
	images := []string{"https://x/1.jpg", "https://x/2.jpg"}

	assert.Equal(t,
		changes.RecordHash(a, "Friendly.", images),
		changes.RecordHash(b, "Friendly.", images),
	)
}

func TestRecordHash_ImageOrderMatters(t *testing.T) {
	t.Parallel()

	attrs := domain.Attributes{"species": "Cat"}

	assert.NotEqual(t,
		changes.RecordHash(attrs, "", []string{"a", "b"}),
		changes.RecordHash(attrs, "", []string{"b", "a"}),
	)
}

func TestRecordHash_DescriptionChangeIsDetected(t *testing.T) {
	t.Parallel()

	attrs := domain.Attributes{"species": "Cat"}

	assert.NotEqual(t,
		changes.RecordHash(attrs, "Loves naps.", nil),
		changes.RecordHash(attrs, "Loves naps and treats.", nil),
	)
}

func TestRecordHash_IgnoresEmptyAttributesAndSurroundingSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		changes.RecordHash(domain.Attributes{"species": "Cat", "weight": ""}, " Calm ", nil),
		changes.RecordHash(domain.Attributes{"species": "Cat"}, "Calm", []string{}),
	)
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	h := changes.ContentHash("# Title\n\nbody")
	assert.Len(t, h, 64)
	assert.Equal(t, h, changes.ContentHash("# Title\n\nbody\n"))
	assert.NotEqual(t, h, changes.ContentHash("# Title\n\nother body"))
}

func TestDecide(t *testing.T) {
	t.Parallel()

	same := "abc"
	other := "def"

	assert.Equal(t, domain.ChangeCreated, changes.Decide(nil, "abc"))
	assert.Equal(t, domain.ChangeUnchanged, changes.Decide(&same, "abc"))
	assert.Equal(t, domain.ChangeUpdated, changes.Decide(&other, "abc"))
}
