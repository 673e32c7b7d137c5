package models

type KeyInsightsPostRequest struct {
	Content string `json:"content"`
}

type KeyInsightsPostResponse struct {
	KeyInsights []KeyInsight `json:"key_insights"`
}

type KeyInsight struct {
	Text string `json:"text"`
}
