// Command concierge-agent reads queries line by line on stdin, resolves
// each to an intent, and dispatches tool-bound intents to their tool
// processes. All diagnostics go to stderr; stdout carries only results.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/rvwalker/concierge/internal/cache"
	"github.com/rvwalker/concierge/internal/config"
	"github.com/rvwalker/concierge/internal/conversation"
	"github.com/rvwalker/concierge/internal/intent"
	"github.com/rvwalker/concierge/internal/keyword"
	"github.com/rvwalker/concierge/internal/llm"
	"github.com/rvwalker/concierge/internal/router"
	"github.com/rvwalker/concierge/internal/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "concierge-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; the environment wins over it either way.
	_ = godotenv.Load()

	logger := log.New(os.Stderr, "concierge: ", log.LstdFlags)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, p := range []string{cfg.Cache.Path, cfg.Conversation.DBPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}

	indexer, err := keyword.NewIndexer()
	if err != nil {
		return fmt.Errorf("failed to initialise segmenter: %w", err)
	}

	intentCache := cache.New(cfg.Cache.Path, cfg.Cache.MaxEntries, indexer, logger)
	intentCache.Load()

	store, err := conversation.OpenStore(cfg.Conversation.DBPath)
	if err != nil {
		logger.Printf("conversation persistence disabled: %v", err)
		store = nil
	}
	conv := conversation.NewManager(cfg.Conversation.MaxHistory, store, logger)

	completer, err := llm.NewChatCompleter(llm.CompleterConfig{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.LLM.RatePerSec), 1)
	analyzer := intent.NewModelAnalyzer(completer, limiter, logger)

	recognizer := intent.NewRecognizer(intentCache, intent.NewRuleEngine(), analyzer, conv, logger)
	recognizer.SetSimilarityThreshold(cfg.Cache.Threshold)

	st := state.NewManager()
	st.SetLocation(cfg.Ambient.Location)
	st.SetVenue(cfg.Ambient.Venue)
	st.SetMaxHistory(cfg.Conversation.MaxHistory)

	defs, err := router.LoadDefinitions(cfg.Tools.RegistryPath)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	st.SetEnabledTools(names)

	rt := router.New(defs, st, logger)
	rt.Initialize(ctx)

	defer func() {
		rt.Cleanup()
		if err := intentCache.Save(true); err != nil {
			logger.Printf("failed to save cache: %v", err)
		}
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Printf("failed to close conversation store: %v", err)
			}
		}
	}()

	logger.Printf("ready, model %s via %s", cfg.LLM.Model, cfg.LLM.BaseURL)

	scanner := bufio.NewScanner(os.Stdin)
	out := json.NewEncoder(os.Stdout)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		conv.AddUser(query)
		resolved := recognizer.Recognize(ctx, query)
		logger.Printf("resolved %q: %s", query, resolved.String())

		reply := struct {
			Intent intent.Intent `json:"intent"`
			Status string        `json:"status,omitempty"`
			Data   string        `json:"data,omitempty"`
			Error  string        `json:"error,omitempty"`
		}{Intent: resolved}

		if resolved.ToolName != "" &&
			(resolved.Kind == intent.KindToolSpecific || resolved.Kind == intent.KindQuery) {
			result := rt.Route(ctx, resolved)
			reply.Status = result.Status.String()
			reply.Data = result.Data
			reply.Error = result.Message
			if result.Status == router.StatusSuccess {
				conv.AddAssistant(result.Data)
			}
		}

		if err := out.Encode(reply); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin: %w", err)
	}
	return nil
}
