package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/vectorserver/provision"
	"github.com/a-h/vectorserver/provision/huggingface"
	"github.com/a-h/vectorserver/provision/ollama"
)

type ProvisionCommand struct {
	ModelsFile string `help:"A YAML file listing the models to provision. Defaults to gte-small and phi-1." env:"MODELS_FILE" default:""`
	HFEndpoint string `help:"The Hugging Face Hub URL." env:"HF_ENDPOINT" default:"https://huggingface.co"`
	HFToken    string `help:"The Hugging Face access token, required for gated models." env:"HF_TOKEN" default:""`
	OllamaURL  string `help:"The URL of the Ollama server, used by targets with the ollama fetcher." env:"OLLAMA_URL" default:"http://127.0.0.1:11434/"`
	LogLevel   string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ProvisionCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	targets := provision.DefaultTargets()
	if c.ModelsFile != "" {
		if targets, err = loadTargets(c.ModelsFile); err != nil {
			return err
		}
	}

	p := newProvisioner(log, c.HFEndpoint, c.HFToken, c.OllamaURL)
	results := p.EnsureAll(ctx, targets)
	for _, r := range results {
		fmt.Printf("%s\t%s\n", r.Status, r.Target.Dir)
	}
	return checkResults(log, results)
}

func newProvisioner(log *slog.Logger, hfEndpoint, hfToken, ollamaURL string) *provision.Provisioner {
	return provision.New(log, map[string]provision.Fetcher{
		"huggingface": huggingface.New(hfEndpoint, hfToken),
		"ollama":      ollama.New(ollamaURL),
	})
}

var modelDirReplacer = strings.NewReplacer("/", "_", ":", "_", "\\", "_")

// ollamaTargets returns a target per distinct, non-empty model name. Each
// directory only holds the marker written once the pull succeeds.
func ollamaTargets(modelsDir string, models ...string) (targets []provision.Target) {
	seen := make(map[string]bool)
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		targets = append(targets, provision.Target{
			Dir:     filepath.Join(modelsDir, "ollama", modelDirReplacer.Replace(model)),
			Source:  model,
			Fetcher: "ollama",
		})
	}
	return targets
}

func loadTargets(fileName string) (targets []provision.Target, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open models file: %w", err)
	}
	defer f.Close()
	return provision.LoadTargets(f)
}

func checkResults(log *slog.Logger, results []provision.Result) error {
	failed := provision.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, r := range failed {
		if errors.Is(r.Err, provision.ErrUnauthorized) {
			log.Warn("the model requires a Hugging Face access token, set HF_TOKEN and retry", slog.String("source", r.Target.Source))
		}
		errs[i] = fmt.Errorf("%s: %w", r.Target.Dir, r.Err)
	}
	return errors.Join(errs...)
}
