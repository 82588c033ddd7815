package intent

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/rvwalker/concierge/internal/cache"
	"github.com/rvwalker/concierge/internal/llm"
)

// ruleShortCircuit is the rule confidence above which the model is not
// consulted at all.
const ruleShortCircuit = 0.8

// historyProvider supplies recent conversation turns for model context.
type historyProvider interface {
	Recent(n int) []llm.Message
}

// Recognizer runs the resolution pipeline for a single query: cache lookup,
// rule matching, model analysis when the rules are unsure, merge, and cache
// write-back. Every stage is optional except the rules, so the recognizer
// degrades gracefully when the cache or the model is absent.
type Recognizer struct {
	cache     *cache.IntentCache
	rules     *RuleEngine
	analyzer  *ModelAnalyzer
	history   historyProvider
	logger    *log.Logger
	threshold float64
}

// NewRecognizer wires the pipeline. cache, analyzer, and history may each
// be nil.
func NewRecognizer(c *cache.IntentCache, rules *RuleEngine, analyzer *ModelAnalyzer, history historyProvider, logger *log.Logger) *Recognizer {
	if logger == nil {
		logger = log.New(os.Stderr, "recognizer: ", log.LstdFlags)
	}
	if rules == nil {
		rules = NewRuleEngine()
	}
	return &Recognizer{
		cache:     c,
		rules:     rules,
		analyzer:  analyzer,
		history:   history,
		logger:    logger,
		threshold: cache.DefaultThreshold,
	}
}

// SetSimilarityThreshold overrides the fuzzy-match threshold used for cache
// lookups. Values outside (0, 1] are ignored.
func (r *Recognizer) SetSimilarityThreshold(v float64) {
	if v > 0 && v <= 1 {
		r.threshold = v
	}
}

// Recognize resolves text to an intent. It never returns an error: every
// failure mode downgrades to a lower-confidence verdict so the caller
// always has something to act on.
func (r *Recognizer) Recognize(ctx context.Context, text string) Intent {
	if r.cache != nil {
		res := r.cache.Lookup(text, r.threshold)
		if res.Hit {
			var cached Intent
			if err := json.Unmarshal(res.Entry, &cached); err != nil {
				// A stale or hand-edited entry is treated as a miss.
				r.logger.Printf("discarding undecodable cache entry for %q: %v", res.MatchedQuery, err)
			} else {
				if !res.Exact {
					r.logger.Printf("fuzzy cache hit for %q (matched %q, similarity %.2f)",
						text, res.MatchedQuery, res.Similarity)
				}
				return cached
			}
		}
	}

	ruled := r.rules.Apply(text)
	if ruled != nil && ruled.Confidence > ruleShortCircuit {
		r.store(text, *ruled)
		return *ruled
	}

	var final Intent
	if r.analyzer != nil {
		var turns []llm.Message
		if r.history != nil {
			turns = r.history.Recent(3)
		}
		modeled := r.analyzer.Analyze(ctx, text, turns)

		if ruled != nil {
			final = Merge(*ruled, modeled)
		} else {
			final = modeled
		}
	} else if ruled != nil {
		final = *ruled
	} else {
		final = Intent{Kind: KindUnknown, Confidence: 0.0, RawQuery: text}
	}

	r.store(text, final)
	return final
}

func (r *Recognizer) store(query string, in Intent) {
	if r.cache == nil {
		return
	}
	entry, err := json.Marshal(in)
	if err != nil {
		r.logger.Printf("failed to encode intent for cache: %v", err)
		return
	}
	r.cache.Add(query, entry)
}
