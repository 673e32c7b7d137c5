package main

import (
	"context"
	"fmt"
	"os"

	"github.com/a-h/vectorserver/client"
	"github.com/a-h/vectorserver/models"
)

type InsightsCommand struct {
	ServerURL string `help:"The URL of the vector server." env:"VECTOR_SERVER_URL" default:"http://localhost:8000"`
	APIKey    string `help:"The API key for the vector server." env:"VECTOR_SERVER_API_KEY" default:""`
	Content   string `help:"The text to analyze." xor:"input" default:""`
	File      string `help:"A file containing the text to analyze." xor:"input" type:"existingfile" default:""`
	Pretty    bool   `help:"Pretty print the output." default:"true"`
}

func (c InsightsCommand) Run(ctx context.Context) (err error) {
	content := c.Content
	if c.File != "" {
		b, err := os.ReadFile(c.File)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		content = string(b)
	}
	if content == "" {
		return fmt.Errorf("either --content or --file must be provided")
	}
	cl := client.New(c.ServerURL, c.APIKey)
	resp, err := cl.KeyInsights(ctx, models.KeyInsightsPostRequest{
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to get key insights: %w", err)
	}
	return writeJSON(resp, c.Pretty)
}
