package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/vectorserver/client"
	"github.com/a-h/vectorserver/models"
	"github.com/pluja/pocketbase"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"
	"gopkg.in/yaml.v3"
)

type ImportCommand struct {
	ServerURL     string `help:"The URL of the vector server." env:"VECTOR_SERVER_URL" default:"http://localhost:8000"`
	APIKey        string `help:"The API key for the vector server." env:"VECTOR_SERVER_API_KEY" default:""`
	PocketbaseURL string `help:"The URL of the Pocketbase server." env:"POCKETBASE_URL" default:"http://localhost:8080"`
	ID            string `help:"The ID of a single record to import." env:"ID" default:""`
	Collection    string `help:"The name of the collection to import from." env:"COLLECTION" default:"entities"`
	Expand        string `help:"The relation fields to expand." env:"EXPAND" default:""`
	Files         string `help:"Comma separated list of fields that contain PDF file references." env:"FILES" default:""`
	ChunkSize     int    `help:"The maximum number of characters embedded under a single ID." env:"CHUNK_SIZE" default:"2000"`
	ChunkOverlap  int    `help:"The number of characters shared by neighbouring chunks." env:"CHUNK_OVERLAP" default:"200"`
	DryRun        bool   `help:"Print the records instead of embedding them." env:"DRY_RUN" default:"false"`
	LogLevel      string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ImportCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	cl := client.New(c.ServerURL, c.APIKey)
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.ChunkSize),
		textsplitter.WithChunkOverlap(c.ChunkOverlap))

	src := newRecordSource(c.PocketbaseURL, pocketbase.NewClient(c.PocketbaseURL), c.Collection, c.Expand, c.Files)
	for rec := range src.Records(ctx) {
		if c.ID != "" && rec.RecordID != c.ID {
			continue
		}
		chunks, err := splitter.SplitText(rec.Text)
		if err != nil {
			return fmt.Errorf("failed to split record %q: %w", rec.ID, err)
		}
		log.Info("importing record", slog.String("id", rec.ID), slog.Int("chunks", len(chunks)))
		for i, chunk := range chunks {
			id := chunkID(rec.ID, i, len(chunks))
			if c.DryRun {
				fmt.Printf("--- %s\n%s\n", id, chunk)
				continue
			}
			resp, err := cl.Embed(ctx, models.EmbedPostRequest{
				ID:   id,
				Text: chunk,
			})
			if err != nil {
				return fmt.Errorf("failed to embed %q: %w", id, err)
			}
			log.Debug("chunk embedded", slog.String("id", resp.ID))
		}
	}
	return src.Err
}

// chunkID returns the ID of the i-th of n chunks of a record.
func chunkID(id string, i, n int) string {
	if n <= 1 {
		return id
	}
	return fmt.Sprintf("%s#%d", id, i)
}

type record struct {
	// ID is the vector ID, <collection>/<record id>.
	ID       string
	RecordID string
	Text     string
}

func newRecordSource(baseURL string, pb *pocketbase.Client, collection, expand, files string) *recordSource {
	var fileFields []string
	for _, f := range strings.Split(files, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fileFields = append(fileFields, f)
		}
	}
	return &recordSource{
		baseURL:    baseURL,
		pb:         pb,
		collection: collection,
		expand:     expand,
		fileFields: fileFields,
		pageSize:   10,
		http:       http.DefaultClient,
	}
}

type recordSource struct {
	// baseURL of Pocketbase, used to download files.
	baseURL    string
	pb         *pocketbase.Client
	collection string
	expand     string
	fileFields []string
	pageSize   int
	http       *http.Client
	Err        error
}

func (s *recordSource) Records(ctx context.Context) iter.Seq[record] {
	return func(yield func(record) bool) {
		for page := 1; ctx.Err() == nil && s.Err == nil; page++ {
			response, err := s.pb.List(s.collection, pocketbase.ParamsList{
				Page:   page,
				Size:   s.pageSize,
				Sort:   "-created",
				Expand: s.expand,
			})
			if err != nil {
				s.Err = fmt.Errorf("failed to list page %d of %q: %w", page, s.collection, err)
				return
			}
			if len(response.Items) == 0 {
				return
			}
			for _, item := range response.Items {
				rec, err := s.toRecord(ctx, item)
				if err != nil {
					s.Err = err
					return
				}
				if !yield(rec) {
					return
				}
			}
		}
	}
}

func (s *recordSource) toRecord(ctx context.Context, item map[string]any) (rec record, err error) {
	rec.RecordID, _ = item["id"].(string)
	if rec.RecordID == "" {
		return rec, fmt.Errorf("record in %q has no id", s.collection)
	}
	rec.ID = url.PathEscape(s.collection) + "/" + url.PathEscape(rec.RecordID)

	var pdfs []string
	for _, field := range s.fileFields {
		names, _ := item[field].([]any)
		for _, name := range names {
			name, ok := name.(string)
			if !ok {
				return rec, fmt.Errorf("record %q: field %q contains a non-string file name", rec.ID, field)
			}
			if strings.EqualFold(filepath.Ext(name), ".pdf") {
				pdfs = append(pdfs, name)
			}
		}
	}

	inlineExpand(item)
	prune(item, "id", "collectionId", "collectionName", "created", "updated")

	var sb strings.Builder
	if err = yaml.NewEncoder(&sb).Encode(item); err != nil {
		return rec, fmt.Errorf("record %q: failed to encode fields: %w", rec.ID, err)
	}
	for _, name := range pdfs {
		text, err := s.pdfText(ctx, rec.RecordID, name)
		if err != nil {
			return rec, fmt.Errorf("record %q: %w", rec.ID, err)
		}
		sb.WriteString(text)
	}
	rec.Text = sb.String()
	return rec, nil
}

func (s *recordSource) pdfText(ctx context.Context, id, name string) (string, error) {
	u, err := fileURL(s.baseURL, s.collection, id, name)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %q: %w", name, err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %q: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %q: unexpected status %d", name, resp.StatusCode)
	}

	// The PDF loader needs random access, so buffer the download on disk.
	f, err := os.CreateTemp("", "vectorserver-import-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	size, err := io.Copy(f, resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to write %q: %w", name, err)
	}

	pages, err := documentloaders.NewPDF(f, size).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", name, err)
	}
	var sb strings.Builder
	for _, page := range pages {
		sb.WriteString(page.PageContent)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// fileURL returns the Pocketbase download URL of a file attached to a record.
func fileURL(baseURL, collection, id, name string) (string, error) {
	u, err := url.JoinPath(baseURL, "api", "files", collection, id, name)
	if err != nil {
		return "", fmt.Errorf("failed to create file URL: %w", err)
	}
	return u, nil
}

// inlineExpand replaces relation IDs with the records Pocketbase returned
// under "expand", at every level of nesting.
func inlineExpand(v any) {
	switch v := v.(type) {
	case map[string]any:
		if expanded, ok := v["expand"].(map[string]any); ok {
			for k, ev := range expanded {
				if _, isField := v[k]; isField {
					v[k] = ev
				}
			}
		}
		delete(v, "expand")
		for _, child := range v {
			inlineExpand(child)
		}
	case []any:
		for _, child := range v {
			inlineExpand(child)
		}
	}
}

// prune removes the given keys, and any empty values, from nested maps.
func prune(v any, keys ...string) {
	switch v := v.(type) {
	case map[string]any:
		for _, k := range keys {
			delete(v, k)
		}
		for k, child := range v {
			prune(child, keys...)
			if isEmpty(child) {
				delete(v, k)
			}
		}
	case []any:
		for _, child := range v {
			prune(child, keys...)
		}
	}
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}
