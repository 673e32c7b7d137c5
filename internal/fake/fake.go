// Package fake provides deterministic embedders and generators for tests.
package fake

import (
	"context"
	"strings"
)

// Embedder embeds text as a count of each letter a-z and each digit, so
// identical text always has a similarity of 1.
type Embedder struct {
	Err   error
	Calls int
}

const Dimensions = 36

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	v := make([]float32, Dimensions)
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z':
			v[r-'a']++
		case r >= '0' && r <= '9':
			v[26+r-'0']++
		}
	}
	return v, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) (result [][]float32, err error) {
	for _, text := range texts {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// Generator returns Output for every prompt.
type Generator struct {
	Output  string
	Err     error
	Prompts []string
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.Prompts = append(g.Prompts, prompt)
	return g.Output, g.Err
}
