package models

// StatusSuccess is returned in the status field of successful responses.
const StatusSuccess = "success"

type EmbedPostRequest struct {
	// ID is the caller supplied key of the vector. Posting the same ID
	// again overwrites the previous vector.
	ID   string `json:"id"`
	Text string `json:"text"`
}

type EmbedPostResponse struct {
	Status   string         `json:"status"`
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
}
