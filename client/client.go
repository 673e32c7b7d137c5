package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/jsonapi"
	"github.com/a-h/vectorserver/models"
)

// New creates a client. The API key is only required when the server has
// authentication enabled.
func New(baseURL, apiKey string) Client {
	return Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type Client struct {
	baseURL string
	apiKey  string
}

func (c Client) Embed(ctx context.Context, req models.EmbedPostRequest) (resp models.EmbedPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("embed").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.EmbedPostRequest, models.EmbedPostResponse](ctx, url, req, jsonapi.WithRequestHeader("Authorization", c.apiKey))
}

func (c Client) Search(ctx context.Context, req models.SearchPostRequest) (resp models.SearchPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("search").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.SearchPostRequest, models.SearchPostResponse](ctx, url, req, jsonapi.WithRequestHeader("Authorization", c.apiKey))
}

func (c Client) KeyInsights(ctx context.Context, req models.KeyInsightsPostRequest) (resp models.KeyInsightsPostResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("key_insights").String()
	if err != nil {
		return resp, err
	}
	return jsonapi.Post[models.KeyInsightsPostRequest, models.KeyInsightsPostResponse](ctx, url, req, jsonapi.WithRequestHeader("Authorization", c.apiKey))
}

func (c Client) Health(ctx context.Context) (resp models.HealthGetResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("health").String()
	if err != nil {
		return resp, err
	}
	resp, ok, err := jsonapi.Get[models.HealthGetResponse](ctx, url)
	if err != nil {
		return resp, err
	}
	if !ok {
		return resp, fmt.Errorf("client: health endpoint not found at %q", url)
	}
	return resp, nil
}
