// Package huggingface downloads model repositories from the Hugging Face Hub.
package huggingface

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/jsonapi"
	"github.com/a-h/vectorserver/provision"
)

const DefaultEndpoint = "https://huggingface.co"

// New creates a Fetcher. The token is optional, but gated models such as
// some Llama variants require it.
func New(endpoint, token string) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Fetcher{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    token,
		Revision: "main",
	}
}

type Fetcher struct {
	endpoint string
	token    string
	Revision string
}

type modelInfo struct {
	ID       string    `json:"id"`
	Siblings []sibling `json:"siblings"`
}

type sibling struct {
	RFilename string `json:"rfilename"`
}

func (f *Fetcher) Fetch(ctx context.Context, source, dir string) error {
	files, err := f.listFiles(ctx, source)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("huggingface: %q has no files", source)
	}
	for _, name := range files {
		if err = f.download(ctx, source, name, dir); err != nil {
			return err
		}
	}
	return nil
}

// get streams u. File downloads aren't JSON, so they bypass jsonapi.Get.
func (f *Fetcher) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("huggingface: failed to create request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	res, err := jsonapi.Raw(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: request failed: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, provision.StatusError(res.StatusCode, string(body))
	}
	return res, nil
}

func (f *Fetcher) listFiles(ctx context.Context, source string) (files []string, err error) {
	u, err := jsonapi.URL(f.endpoint).Path("api", "models").Path(strings.Split(source, "/")...).Path("revision", f.Revision).String()
	if err != nil {
		return nil, fmt.Errorf("huggingface: invalid endpoint: %w", err)
	}
	var info modelInfo
	var ok bool
	if f.token != "" {
		info, ok, err = jsonapi.Get[modelInfo](ctx, u, jsonapi.WithRequestHeader("Authorization", "Bearer "+f.token))
	} else {
		info, ok, err = jsonapi.Get[modelInfo](ctx, u)
	}
	if err != nil {
		var ise jsonapi.InvalidStatusError
		if errors.As(err, &ise) {
			return nil, provision.StatusError(ise.Status, ise.Body)
		}
		return nil, fmt.Errorf("huggingface: list files of %q failed: %w", source, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", provision.ErrNotFound, source)
	}
	for _, s := range info.Siblings {
		if !filepath.IsLocal(filepath.FromSlash(s.RFilename)) {
			return nil, fmt.Errorf("huggingface: invalid file name %q", s.RFilename)
		}
		files = append(files, s.RFilename)
	}
	return files, nil
}

func (f *Fetcher) download(ctx context.Context, source, name, dir string) (err error) {
	segments := append(strings.Split(source, "/"), "resolve", f.Revision)
	u, err := jsonapi.URL(f.endpoint).Path(segments...).Path(strings.Split(name, "/")...).String()
	if err != nil {
		return fmt.Errorf("huggingface: invalid endpoint: %w", err)
	}
	res, err := f.get(ctx, u)
	if err != nil {
		return fmt.Errorf("huggingface: download %q failed: %w", name, err)
	}
	defer res.Body.Close()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("huggingface: failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("huggingface: failed to create file: %w", err)
	}
	defer file.Close()
	if _, err = io.Copy(file, res.Body); err != nil {
		return fmt.Errorf("huggingface: failed to write %q: %w", name, err)
	}
	return file.Close()
}

var _ provision.Fetcher = (*Fetcher)(nil)
