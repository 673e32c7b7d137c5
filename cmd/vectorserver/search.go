package main

import (
	"context"
	"fmt"

	"github.com/a-h/vectorserver/client"
	"github.com/a-h/vectorserver/models"
)

type SearchCommand struct {
	ServerURL  string `help:"The URL of the vector server." env:"VECTOR_SERVER_URL" default:"http://localhost:8000"`
	APIKey     string `help:"The API key for the vector server." env:"VECTOR_SERVER_API_KEY" default:""`
	Text       string `help:"The text to search for." required:""`
	K          int    `help:"The number of results to return." default:"5"`
	NoMetadata bool   `help:"Omit metadata from the results." default:"false"`
	Pretty     bool   `help:"Pretty print the output." default:"true"`
}

func (c SearchCommand) Run(ctx context.Context) (err error) {
	cl := client.New(c.ServerURL, c.APIKey)
	k := c.K
	includeMetadata := !c.NoMetadata
	resp, err := cl.Search(ctx, models.SearchPostRequest{
		Text:            c.Text,
		K:               &k,
		IncludeMetadata: &includeMetadata,
	})
	if err != nil {
		return fmt.Errorf("failed to search: %w", err)
	}
	return writeJSON(resp, c.Pretty)
}
