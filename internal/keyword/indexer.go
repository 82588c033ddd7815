// Package keyword extracts salient tokens from free text for fuzzy cache
// lookup. Queries are predominantly Chinese, so extraction uses dictionary
// segmentation rather than whitespace splitting.
package keyword

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-ego/gse"
	lru "github.com/hashicorp/golang-lru/v2"
)

// memoSize bounds the extraction memo. Fuzzy lookup re-extracts keywords for
// every cached candidate, so repeated extraction of the same query text is
// the common case.
const memoSize = 4096

// Indexer segments free text into keywords. Extraction is deterministic for
// identical input and has no failure mode beyond empty output for empty
// input. Safe for concurrent use.
type Indexer struct {
	seg  gse.Segmenter
	memo *lru.Cache[string, []string]
}

// NewIndexer loads the embedded segmentation dictionary and prepares the
// extraction memo. Dictionary loading is the only fallible step.
func NewIndexer() (*Indexer, error) {
	ix := &Indexer{}
	if err := ix.seg.LoadDict(); err != nil {
		return nil, fmt.Errorf("keyword: failed to load segmenter dictionary: %w", err)
	}

	memo, err := lru.New[string, []string](memoSize)
	if err != nil {
		return nil, fmt.Errorf("keyword: failed to create extraction memo: %w", err)
	}
	ix.memo = memo

	return ix, nil
}

// Extract returns the keywords of text in segmentation order. Tokens of one
// rune or less are dropped as noise. Results are memoised per input text.
func (ix *Indexer) Extract(text string) []string {
	if text == "" {
		return nil
	}

	if cached, ok := ix.memo.Get(text); ok {
		return cached
	}

	// Search-mode segmentation emits both long words and their shorter
	// sub-words, which widens the fuzzy-match candidate net.
	words := ix.seg.CutSearch(text, true)

	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) > 1 {
			keywords = append(keywords, w)
		}
	}

	ix.memo.Add(text, keywords)
	return keywords
}
