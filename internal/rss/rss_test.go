package rss

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGetter string

func (s staticGetter) FetchBytes(context.Context, string, map[string]string) ([]byte, error) {
	return []byte(s), nil
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Travel</title>
  <item><title>One</title><link>https://example.com/one</link></item>
  <item><title>No link</title></item>
  <item><title>Two</title><link> https://example.com/two </link></item>
</channel>
</rss>`

func TestLinksKeepsFeedOrder(t *testing.T) {
	links, err := Links(context.Background(), staticGetter(sampleFeed), "https://example.com/feed")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/one", "https://example.com/two"}, links)
}

func TestFetchItemsRejectsGarbage(t *testing.T) {
	_, err := FetchItems(context.Background(), staticGetter("not a feed"), "https://example.com/feed")
	assert.Error(t, err)
}

func TestLooksLikeFeed(t *testing.T) {
	assert.True(t, LooksLikeFeed("https://example.com/feed/"))
	assert.True(t, LooksLikeFeed("https://example.com/export/rss2/archive/index.xml"))
	assert.True(t, LooksLikeFeed("https://example.com/rss?lang=en"))
	assert.False(t, LooksLikeFeed("https://example.com/news"))
	assert.False(t, LooksLikeFeed("https://example.com/feedback-form"))
}
