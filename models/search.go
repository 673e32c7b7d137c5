package models

// DefaultK is the number of neighbours returned when a search doesn't specify k.
const DefaultK = 5

type SearchPostRequest struct {
	Text string `json:"text"`

	// K is the maximum number of results, defaults to DefaultK.
	K *int `json:"k,omitempty"`

	// IncludeMetadata returns the metadata stored alongside each vector,
	// defaults to true.
	IncludeMetadata *bool `json:"include_metadata,omitempty"`
}

func (r SearchPostRequest) KOrDefault() int {
	if r.K == nil {
		return DefaultK
	}
	return *r.K
}

func (r SearchPostRequest) IncludeMetadataOrDefault() bool {
	if r.IncludeMetadata == nil {
		return true
	}
	return *r.IncludeMetadata
}

type SearchPostResponse struct {
	Status  string         `json:"status"`
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

type SearchResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
