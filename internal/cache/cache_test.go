package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheExpiry(t *testing.T) {
	c := New[[]string]()
	defer c.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", []string{"a"}, time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	now = now.Add(2 * time.Minute)
	v, ok = c.Get("k")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 0, c.Len())
}

func TestEvictExpired(t *testing.T) {
	c := New[int]()
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("old", 1, time.Second)
	c.Set("new", 2, time.Hour)

	now = now.Add(time.Minute)
	c.evictExpired()
	assert.Equal(t, 1, c.Len())
}

func TestCloseTwice(t *testing.T) {
	c := New[int]()
	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestKeyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Key("Phuket Beach"), Key("phuket beach"))
	assert.NotEqual(t, Key("a", "bc"), Key("ab", "c"))
}
