// Package pinecone is a client for the Pinecone REST API, covering the
// operations needed to use an existing serverless or pod index as a store.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/a-h/jsonapi"
	"github.com/a-h/vectorserver/store"
)

const (
	DefaultControlPlaneURL = "https://api.pinecone.io"
	APIVersion             = "2024-07"
)

var ErrIndexNotFound = errors.New("pinecone: index not found")

type Option func(*Client)

// WithControlPlaneURL overrides the URL used to look up the index host.
func WithControlPlaneURL(u string) Option {
	return func(c *Client) {
		c.controlPlaneURL = u
	}
}

// WithHost skips the index lookup and sends data plane requests to host.
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

// New creates a client for the named index. Unless WithHost is used, the
// index host is retrieved from the control plane.
func New(ctx context.Context, apiKey, indexName string, opts ...Option) (c *Client, err error) {
	if apiKey == "" {
		return nil, errors.New("pinecone: API key is required")
	}
	if indexName == "" {
		return nil, errors.New("pinecone: index name is required")
	}
	c = &Client{
		apiKey:          apiKey,
		indexName:       indexName,
		controlPlaneURL: DefaultControlPlaneURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.controlPlaneURL = strings.TrimSuffix(c.controlPlaneURL, "/")
	if c.host == "" {
		desc, err := c.DescribeIndex(ctx)
		if err != nil {
			return nil, err
		}
		c.host = desc.Host
	}
	if !strings.Contains(c.host, "://") {
		c.host = "https://" + c.host
	}
	c.host = strings.TrimSuffix(c.host, "/")
	return c, nil
}

type Client struct {
	apiKey          string
	indexName       string
	controlPlaneURL string
	host            string
}

type IndexDescription struct {
	Name      string      `json:"name"`
	Dimension int         `json:"dimension"`
	Metric    string      `json:"metric"`
	Host      string      `json:"host"`
	Status    IndexStatus `json:"status"`
}

type IndexStatus struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

func (c *Client) DescribeIndex(ctx context.Context) (desc IndexDescription, err error) {
	u, err := jsonapi.URL(c.controlPlaneURL).Path("indexes", c.indexName).String()
	if err != nil {
		return desc, fmt.Errorf("pinecone: invalid control plane URL: %w", err)
	}
	desc, ok, err := jsonapi.Get[IndexDescription](ctx, u,
		jsonapi.WithRequestHeader("Api-Key", c.apiKey),
		jsonapi.WithRequestHeader("X-Pinecone-API-Version", APIVersion))
	if err != nil {
		return desc, fmt.Errorf("pinecone: describe index failed: %w", err)
	}
	if !ok {
		return desc, fmt.Errorf("%w: %q", ErrIndexNotFound, c.indexName)
	}
	if desc.Host == "" {
		return desc, fmt.Errorf("pinecone: index %q has no host", c.indexName)
	}
	return desc, nil
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

func (c *Client) Upsert(ctx context.Context, namespace string, v store.Vector) error {
	u, err := jsonapi.URL(c.host).Path("vectors", "upsert").String()
	if err != nil {
		return fmt.Errorf("pinecone: invalid index host: %w", err)
	}
	req := upsertRequest{
		Vectors: []vector{
			{ID: v.ID, Values: v.Values, Metadata: v.Metadata},
		},
		Namespace: namespace,
	}
	if _, err = jsonapi.Post[upsertRequest, upsertResponse](ctx, u, req,
		jsonapi.WithRequestHeader("Api-Key", c.apiKey),
		jsonapi.WithRequestHeader("X-Pinecone-API-Version", APIVersion)); err != nil {
		return fmt.Errorf("pinecone: upsert failed: %w", err)
	}
	return nil
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches   []queryMatch `json:"matches"`
	Namespace string       `json:"namespace"`
}

type queryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

func (c *Client) Query(ctx context.Context, args store.QueryArgs) (matches []store.Match, err error) {
	u, err := jsonapi.URL(c.host).Path("query").String()
	if err != nil {
		return nil, fmt.Errorf("pinecone: invalid index host: %w", err)
	}
	req := queryRequest{
		Namespace:       args.Namespace,
		Vector:          args.Values,
		TopK:            args.TopK,
		IncludeMetadata: args.IncludeMetadata,
	}
	resp, err := jsonapi.Post[queryRequest, queryResponse](ctx, u, req,
		jsonapi.WithRequestHeader("Api-Key", c.apiKey),
		jsonapi.WithRequestHeader("X-Pinecone-API-Version", APIVersion))
	if err != nil {
		return nil, fmt.Errorf("pinecone: query failed: %w", err)
	}
	matches = make([]store.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		sm := store.Match{ID: m.ID, Score: m.Score}
		if args.IncludeMetadata {
			sm.Metadata = m.Metadata
		}
		matches = append(matches, sm)
	}
	if len(matches) > args.TopK {
		matches = matches[:args.TopK]
	}
	return matches, nil
}

var _ store.Store = (*Client)(nil)
