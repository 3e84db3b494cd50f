package discovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_MergeKeepsFailedCategoryIncomplete(t *testing.T) {
	t.Parallel()

	listings := newResult()
	listings.markFailed("https://www.spca.com/en/news/", "news", errors.New("status 404"))

	sitemap := newResult()
	sitemap.markComplete("news")
	sitemap.markFailed(SitemapSource, "", errors.New("child sitemap timed out"))

	listings.Merge(sitemap)

	assert.False(t, listings.Complete("news"))
	assert.Empty(t, listings.CompleteCategories())
	assert.Len(t, listings.Failed, 2)
	assert.False(t, listings.AllFailed())
}

func TestResult_MergeAddsNewCompleteCategory(t *testing.T) {
	t.Parallel()

	listings := newResult()
	listings.markComplete("dogs")

	sitemap := newResult()
	sitemap.markComplete("general")

	listings.Merge(sitemap)

	assert.Equal(t, []string{"dogs", "general"}, listings.CompleteCategories())
}
