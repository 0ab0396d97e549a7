package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAskCacheKey(t *testing.T) {
	k1 := AskCacheKey(1, "Python engineer", 5)
	assert.True(t, strings.HasPrefix(k1, "rag:search:ask:1:"))
	assert.True(t, strings.HasSuffix(k1, ":5"))
	assert.NotContains(t, k1, "Python")

	assert.Equal(t, k1, AskCacheKey(1, "Python engineer", 5))
	assert.NotEqual(t, k1, AskCacheKey(2, "Python engineer", 5), "版本号变化后键必须不同")
	assert.NotEqual(t, k1, AskCacheKey(1, "Python engineer", 3))
}
