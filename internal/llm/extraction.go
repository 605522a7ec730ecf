package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/engine"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

// transcriptSlot is the placeholder the prompt template must contain; it is
// replaced with the conversation transcript for each extraction round.
const transcriptSlot = "{{transcript}}"

// ExtractionService runs background extraction rounds: it prompts the text
// generator with a conversation transcript, parses the returned payload and
// merges it into the graph. At most one extraction is in flight per
// conversation; excess requests are dropped, never queued. Every failure —
// generator errors, open circuit, unusable output, cancellation — degrades
// to "no extraction this round".
type ExtractionService struct {
	gen      TextGenerator
	engine   *engine.Engine
	template string

	mu       sync.Mutex
	inflight map[string]bool
	wg       sync.WaitGroup

	// onDone, when set, observes the completion or failure of each
	// background round. Set before the service is shared.
	onDone func(chatID string, applied bool, err error)
}

// NewExtractionService builds the service, loading the prompt template from
// templatePath. A missing or placeholder-less template is fatal here — but
// only to extraction: search and upsert paths never depend on this service.
func NewExtractionService(gen TextGenerator, eng *engine.Engine, templatePath string) (*ExtractionService, error) {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("llm: load prompt template %s: %w", templatePath, err)
	}
	template := string(data)
	if !strings.Contains(template, transcriptSlot) {
		return nil, fmt.Errorf("llm: prompt template %s lacks %s placeholder", templatePath, transcriptSlot)
	}
	return &ExtractionService{
		gen:      NewCircuitBreaker(gen),
		engine:   eng,
		template: template,
		inflight: make(map[string]bool),
	}, nil
}

// SetCompletionHook registers an observer for background round outcomes.
func (s *ExtractionService) SetCompletionHook(hook func(chatID string, applied bool, err error)) {
	s.onDone = hook
}

// TryExtract starts a background extraction round for chatID over the given
// transcript. It returns false — dropping the request — when a round for
// this conversation is already in flight. The round itself never reports
// errors to the caller; they are logged and surfaced via the completion
// hook only.
func (s *ExtractionService) TryExtract(ctx context.Context, chatID, transcript string, scope types.Scope) bool {
	s.mu.Lock()
	if s.inflight[chatID] {
		s.mu.Unlock()
		return false
	}
	s.inflight[chatID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, chatID)
			s.mu.Unlock()
		}()
		applied, err := s.runRound(ctx, chatID, transcript, scope)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnavailable):
				log.Printf("llm: extraction for %s skipped: generator unavailable", chatID)
			case errors.Is(err, ErrCircuitOpen):
				log.Printf("llm: extraction for %s skipped: circuit open", chatID)
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				log.Printf("llm: extraction for %s cancelled", chatID)
			default:
				log.Printf("llm: extraction for %s failed: %v", chatID, err)
			}
		}
		if s.onDone != nil {
			s.onDone(chatID, applied, err)
		}
	}()
	return true
}

// runRound executes one extraction round synchronously. The merge is atomic
// per batch: a cancellation between the generator call and the merge leaves
// the store untouched.
func (s *ExtractionService) runRound(ctx context.Context, chatID, transcript string, scope types.Scope) (bool, error) {
	prompt := strings.ReplaceAll(s.template, transcriptSlot, transcript)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	batch, err := s.engine.ApplyResponse(ctx, raw, scope)
	if err != nil {
		return false, err
	}
	if batch == nil {
		log.Printf("llm: extraction for %s produced nothing to apply", chatID)
		return false, nil
	}
	log.Printf("llm: extraction for %s merged %d entities, %d relations",
		chatID, len(batch.Entities), len(batch.Relations))
	return true, nil
}

// Wait blocks until every in-flight round has finished. Shutdown helper.
func (s *ExtractionService) Wait() {
	s.wg.Wait()
}
