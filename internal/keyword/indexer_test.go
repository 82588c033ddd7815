package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	ix, err := NewIndexer()
	require.NoError(t, err)
	return ix
}

func TestExtractEmptyInput(t *testing.T) {
	ix := newTestIndexer(t)
	assert.Empty(t, ix.Extract(""))
}

func TestExtractIsDeterministic(t *testing.T) {
	ix := newTestIndexer(t)

	first := ix.Extract("重庆明天天气怎么样")
	second := ix.Extract("重庆明天天气怎么样")
	assert.Equal(t, first, second)
}

func TestExtractSegmentsChineseQuery(t *testing.T) {
	ix := newTestIndexer(t)

	keywords := ix.Extract("重庆明天天气怎么样")
	require.NotEmpty(t, keywords)
	assert.Contains(t, keywords, "天气")
}

func TestExtractDropsSingleRuneTokens(t *testing.T) {
	ix := newTestIndexer(t)

	for _, kw := range ix.Extract("我想去北京看天安门") {
		assert.Greater(t, len([]rune(kw)), 1, "keyword %q should be longer than one rune", kw)
	}
}

func TestExtractMemoisesResults(t *testing.T) {
	ix := newTestIndexer(t)

	const query = "附近有什么好吃的餐厅"
	first := ix.Extract(query)
	require.NotEmpty(t, first)

	cached, ok := ix.memo.Get(query)
	require.True(t, ok)
	assert.Equal(t, first, cached)
}
