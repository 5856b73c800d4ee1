// Package chat implements the assistant flow: retrieve passages, build the
// chat-template prompt from the best ones, generate an answer.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// Service coordinates retrieval and generation for the chat app.
type Service struct {
	retriever       Retriever
	generator       Generator
	model           string
	systemPrompt    string
	contextPassages int
	logger          *zap.Logger
}

// New creates a chat service. contextPassages caps how many retrieved
// passages go into the prompt.
func New(
	retriever Retriever,
	generator Generator,
	model, systemPrompt string,
	contextPassages int,
	logger *zap.Logger,
) *Service {
	if contextPassages <= 0 {
		contextPassages = 2
	}
	return &Service{
		retriever:       retriever,
		generator:       generator,
		model:           model,
		systemPrompt:    systemPrompt,
		contextPassages: contextPassages,
		logger:          logger,
	}
}

// Answer is the result of an analysis round.
type Answer struct {
	Text     string
	Passages []domain.Passage
}

// Search retrieves passages for question without generating an answer.
func (s *Service) Search(ctx context.Context, question string) ([]domain.Passage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuery
	}

	passages, err := s.retriever.Search(ctx, question, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}
	return passages, nil
}

// Analyze generates an answer for question grounded in passages. Passages
// usually come from an earlier Search call; the highest-scored ones win a
// place in the prompt.
func (s *Service) Analyze(ctx context.Context, question string, passages []domain.Passage) (Answer, error) {
	if len(passages) == 0 {
		return Answer{}, domain.ErrNoPassages
	}

	if err := s.EnsureModel(ctx); err != nil {
		return Answer{}, err
	}

	best := topByScore(passages, s.contextPassages)
	prompt := buildPrompt(s.systemPrompt, question, best)

	text, err := s.generator.Generate(ctx, s.model, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return Answer{Text: strings.TrimSpace(text), Passages: best}, nil
}

// EnsureModel pulls the configured model when it is not present locally.
func (s *Service) EnsureModel(ctx context.Context) error {
	ok, err := s.generator.HasModel(ctx, s.model)
	if err != nil {
		return fmt.Errorf("%w: check model: %v", domain.ErrModelNotReady, err)
	}
	if ok {
		return nil
	}

	s.logger.Info("Model not found locally, pulling", zap.String("model", s.model))
	if err := s.generator.Pull(ctx, s.model); err != nil {
		return fmt.Errorf("%w: pull model: %v", domain.ErrModelNotReady, err)
	}
	return nil
}

// topByScore returns the n highest-scored passages without mutating the input.
func topByScore(passages []domain.Passage, n int) []domain.Passage {
	sorted := make([]domain.Passage, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// buildPrompt renders the chat-template prompt the qwen2 family expects.
func buildPrompt(systemPrompt, question string, passages []domain.Passage) string {
	blocks := make([]string, 0, len(passages))
	for _, p := range passages {
		blocks = append(blocks, fmt.Sprintf("ข้อความ: %s\nที่มา: %s", p.Text, p.FilePath))
	}
	context := strings.Join(blocks, "\n\n")

	var sb strings.Builder
	sb.WriteString("<|im_start|>system\n")
	sb.WriteString(systemPrompt)
	sb.WriteString("\n<|im_end|>\n")
	sb.WriteString(fmt.Sprintf("<|im_start|>user\nคำถาม: %s\n\nข้อมูลอ้างอิง:\n%s<|im_end|>\n", question, context))
	sb.WriteString("<|im_start|>assistant\n")
	return sb.String()
}
