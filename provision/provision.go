// Package provision downloads model artifacts into local directories ahead
// of serving. Provisioning is idempotent: a directory that already holds a
// model is left alone.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	ErrUnauthorized = errors.New("provision: unauthorized")
	ErrNotFound     = errors.New("provision: model not found")
)

// StatusError maps an HTTP status code returned by a model repository to an error.
func StatusError(status int, body string) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, status, body)
	case 404:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	}
	return fmt.Errorf("provision: unexpected status %d: %s", status, body)
}

type Status int

const (
	StatusFailed Status = iota
	StatusDownloaded
	StatusAlreadyPresent
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusAlreadyPresent:
		return "already-present"
	}
	return "failed"
}

// Result is the outcome of provisioning a single target. Err is set when
// Status is StatusFailed.
type Result struct {
	Target Target
	Status Status
	Err    error
}

// Fetcher downloads the model identified by source into dir. The directory
// exists and is empty when Fetch is called.
type Fetcher interface {
	Fetch(ctx context.Context, source, dir string) error
}

func New(log *slog.Logger, fetchers map[string]Fetcher) *Provisioner {
	return &Provisioner{
		log:      log,
		fetchers: fetchers,
	}
}

type Provisioner struct {
	log      *slog.Logger
	fetchers map[string]Fetcher
}

// Ensure makes sure target.Dir contains the model. Any previous incomplete
// download in the directory is replaced.
func (p *Provisioner) Ensure(ctx context.Context, target Target) (r Result) {
	r.Target = target
	defer func() {
		attrs := []any{slog.String("status", r.Status.String()), slog.String("dir", target.Dir), slog.String("source", target.Source)}
		if r.Err != nil {
			p.log.Error("model provisioning failed", append(attrs, slog.Any("error", r.Err))...)
			return
		}
		p.log.Info("model provisioned", attrs...)
	}()

	present, err := IsPresent(target.Dir)
	if err != nil {
		r.Err = err
		return r
	}
	if present {
		r.Status = StatusAlreadyPresent
		return r
	}

	fetcherName := target.FetcherOrDefault()
	fetcher, ok := p.fetchers[fetcherName]
	if !ok {
		r.Err = fmt.Errorf("provision: unknown fetcher %q", fetcherName)
		return r
	}

	parent := filepath.Dir(target.Dir)
	if err = os.MkdirAll(parent, 0o755); err != nil {
		r.Err = fmt.Errorf("provision: failed to create parent directory: %w", err)
		return r
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(target.Dir)+".partial-*")
	if err != nil {
		r.Err = fmt.Errorf("provision: failed to create temporary directory: %w", err)
		return r
	}
	defer os.RemoveAll(tmp)

	p.log.Info("downloading model", slog.String("source", target.Source), slog.String("fetcher", fetcherName))
	if err = fetcher.Fetch(ctx, target.Source, tmp); err != nil {
		r.Err = fmt.Errorf("provision: fetch %q failed: %w", target.Source, err)
		return r
	}
	if err = writeManifest(tmp, target.Source, fetcherName); err != nil {
		r.Err = err
		return r
	}
	if err = os.RemoveAll(target.Dir); err != nil {
		r.Err = fmt.Errorf("provision: failed to remove incomplete model: %w", err)
		return r
	}
	if err = os.Rename(tmp, target.Dir); err != nil {
		r.Err = fmt.Errorf("provision: failed to move model into place: %w", err)
		return r
	}
	r.Status = StatusDownloaded
	return r
}

// EnsureAll provisions each target in turn.
func (p *Provisioner) EnsureAll(ctx context.Context, targets []Target) (results []Result) {
	for _, t := range targets {
		results = append(results, p.Ensure(ctx, t))
	}
	return results
}

// Failed returns the failed results.
func Failed(results []Result) (failed []Result) {
	for _, r := range results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// IsPresent returns true if dir is non-empty and, when a manifest was
// written by a previous download, every file listed in it has the
// recorded size.
func IsPresent(dir string) (ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("provision: failed to read %q: %w", dir, err)
	}
	if len(entries) == 0 {
		return false, nil
	}
	m, found, err := readManifest(dir)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return m.verify(dir), nil
}
