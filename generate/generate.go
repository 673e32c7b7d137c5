// Package generate produces text with a causal language model. Output is
// sampled, so repeated calls with the same prompt return different text.
package generate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/textsplitter"
)

// Encodings are read from files embedded in the binary instead of being
// downloaded on first use.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const encodingName = "cl100k_base"

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultMaxPromptTokens = 512
	DefaultMaxLength       = 1024
	DefaultTemperature     = 0.7
)

type Option func(*LLM)

// WithMaxPromptTokens sets the length prompts are truncated to.
func WithMaxPromptTokens(n int) Option {
	return func(g *LLM) {
		g.maxPromptTokens = n
	}
}

// WithMaxLength caps the number of tokens in the prompt and the continuation combined.
func WithMaxLength(n int) Option {
	return func(g *LLM) {
		g.maxLength = n
	}
}

func WithTemperature(t float64) Option {
	return func(g *LLM) {
		g.temperature = t
	}
}

// WithTokenizer replaces the tiktoken based truncation and token counting.
// Errors returned by truncate fail the generation.
func WithTokenizer(truncate func(s string, maxTokens int) (string, error), count func(s string) int) Option {
	return func(g *LLM) {
		g.truncate = truncate
		g.count = count
	}
}

func NewLLM(model llms.Model, opts ...Option) *LLM {
	g := &LLM{
		model:           model,
		maxPromptTokens: DefaultMaxPromptTokens,
		maxLength:       DefaultMaxLength,
		temperature:     DefaultTemperature,
		truncate:        truncateTokens,
		count:           countTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type LLM struct {
	model           llms.Model
	maxPromptTokens int
	maxLength       int
	temperature     float64
	truncate        func(s string, maxTokens int) (string, error)
	count           func(s string) int
}

func (g *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	prompt, err := g.truncate(prompt, g.maxPromptTokens)
	if err != nil {
		return "", fmt.Errorf("generate: failed to truncate prompt: %w", err)
	}
	maxTokens := max(g.maxLength-g.count(prompt), 1)
	output, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(maxTokens),
		llms.WithCandidateCount(1),
	)
	if err != nil {
		return "", fmt.Errorf("generate: failed to generate content: %w", err)
	}
	return output, nil
}

// truncateTokens returns the first maxTokens tokens of s. If the encoding
// can't be loaded, s is cut to an approximate length instead.
func truncateTokens(s string, maxTokens int) (string, error) {
	splitter := textsplitter.NewTokenSplitter(
		textsplitter.WithEncodingName(encodingName),
		textsplitter.WithChunkSize(maxTokens),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(s)
	if err != nil {
		return truncateApproximately(s, maxTokens), nil
	}
	if len(chunks) == 0 {
		return s, nil
	}
	return chunks[0], nil
}

func countTokens(s string) int {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return (len(s) + bytesPerToken - 1) / bytesPerToken
	}
	return len(enc.Encode(s, nil, nil))
}

const bytesPerToken = 4

// truncateApproximately cuts s to maxTokens*bytesPerToken bytes, on a rune boundary.
func truncateApproximately(s string, maxTokens int) string {
	n := maxTokens * bytesPerToken
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

const insightsPrompt = `Analyze the following text and extract key insights. Text: %s
Key insights:
`

// InsightsPrompt builds the key insight extraction prompt for content.
func InsightsPrompt(content string) string {
	return fmt.Sprintf(insightsPrompt, content)
}

// Lines splits text on line breaks, trims whitespace and drops blank lines.
func Lines(text string) (lines []string) {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
