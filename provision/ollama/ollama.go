// Package ollama provisions models by pulling them into an Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/jsonapi"
	"github.com/a-h/vectorserver/provision"
)

const DefaultURL = "http://127.0.0.1:11434"

// MarkerFileName is written to the target directory once the pull completes.
const MarkerFileName = "ollama.json"

func New(baseURL string) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Fetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

type Fetcher struct {
	baseURL string
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type Marker struct {
	Model  string `json:"model"`
	Server string `json:"server"`
}

func (f *Fetcher) Fetch(ctx context.Context, source, dir string) error {
	u, err := jsonapi.URL(f.baseURL).Path("api", "pull").String()
	if err != nil {
		return fmt.Errorf("ollama: invalid URL: %w", err)
	}
	resp, err := jsonapi.Post[pullRequest, pullResponse](ctx, u, pullRequest{Model: source, Stream: false})
	if err != nil {
		var ise jsonapi.InvalidStatusError
		if errors.As(err, &ise) {
			return provision.StatusError(ise.Status, ise.Body)
		}
		return fmt.Errorf("ollama: pull failed: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("ollama: pull failed: %s", resp.Error)
	}
	if resp.Status != "success" {
		return fmt.Errorf("ollama: pull of %q finished with status %q", source, resp.Status)
	}
	b, err := json.MarshalIndent(Marker{Model: source, Server: f.baseURL}, "", "  ")
	if err != nil {
		return fmt.Errorf("ollama: failed to marshal marker: %w", err)
	}
	if err = os.WriteFile(filepath.Join(dir, MarkerFileName), b, 0o644); err != nil {
		return fmt.Errorf("ollama: failed to write marker: %w", err)
	}
	return nil
}

var _ provision.Fetcher = (*Fetcher)(nil)
