package provision

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const DefaultFetcher = "huggingface"

// Target is a model to provision.
type Target struct {
	Dir     string `yaml:"dir"`
	Source  string `yaml:"source"`
	Fetcher string `yaml:"fetcher,omitempty"`
}

func (t Target) FetcherOrDefault() string {
	if t.Fetcher == "" {
		return DefaultFetcher
	}
	return t.Fetcher
}

// DefaultTargets are the embedding and generation models.
func DefaultTargets() []Target {
	return []Target{
		{Dir: "./models/gte-small", Source: "thenlper/gte-small"},
		{Dir: "./models/phi", Source: "microsoft/phi-1"},
	}
}

type targetsFile struct {
	Models []Target `yaml:"models"`
}

// LoadTargets reads a YAML document with a list of models.
func LoadTargets(r io.Reader) (targets []Target, err error) {
	var f targetsFile
	if err = yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("provision: failed to decode models file: %w", err)
	}
	for i, t := range f.Models {
		if t.Dir == "" || t.Source == "" {
			return nil, fmt.Errorf("provision: model %d: dir and source are required", i)
		}
	}
	return f.Models, nil
}
