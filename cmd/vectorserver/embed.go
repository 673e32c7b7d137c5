package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/a-h/vectorserver/client"
	"github.com/a-h/vectorserver/models"
)

type EmbedCommand struct {
	ServerURL string `help:"The URL of the vector server." env:"VECTOR_SERVER_URL" default:"http://localhost:8000"`
	APIKey    string `help:"The API key for the vector server." env:"VECTOR_SERVER_API_KEY" default:""`
	ID        string `help:"The ID to store the embedding under." required:""`
	Text      string `help:"The text to embed." required:""`
	Pretty    bool   `help:"Pretty print the output." default:"true"`
}

func (c EmbedCommand) Run(ctx context.Context) (err error) {
	cl := client.New(c.ServerURL, c.APIKey)
	resp, err := cl.Embed(ctx, models.EmbedPostRequest{
		ID:   c.ID,
		Text: c.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to embed text: %w", err)
	}
	return writeJSON(resp, c.Pretty)
}

func writeJSON(v any, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
