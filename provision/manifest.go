package provision

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const ManifestFileName = ".manifest.json"

type manifest struct {
	Source  string         `json:"source"`
	Fetcher string         `json:"fetcher"`
	Files   []manifestFile `json:"files"`
	corrupt bool
}

type manifestFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func writeManifest(dir, source, fetcher string) error {
	m := manifest{
		Source:  source,
		Fetcher: fetcher,
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		name, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		m.Files = append(m.Files, manifestFile{Name: filepath.ToSlash(name), Size: info.Size()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("provision: failed to list downloaded files: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("provision: failed to marshal manifest: %w", err)
	}
	if err = os.WriteFile(filepath.Join(dir, ManifestFileName), b, 0o644); err != nil {
		return fmt.Errorf("provision: failed to write manifest: %w", err)
	}
	return nil
}

func readManifest(dir string) (m manifest, ok bool, err error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if errors.Is(err, os.ErrNotExist) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("provision: failed to read manifest: %w", err)
	}
	if err = json.Unmarshal(b, &m); err != nil {
		return manifest{corrupt: true}, true, nil
	}
	return m, true, nil
}

func (m manifest) verify(dir string) bool {
	if m.corrupt {
		return false
	}
	for _, f := range m.Files {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(f.Name)))
		if err != nil || info.Size() != f.Size {
			return false
		}
	}
	return true
}
