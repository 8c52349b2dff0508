package dto

// GenerationRequest is a provider-neutral multi-part prompt.
type GenerationRequest struct {
	Model            string   `json:"model"`
	Parts            []string `json:"parts"`
	ResponseMIMEType string   `json:"response_mime_type,omitempty"`
}

// GenerationResponse mirrors the candidate/parts shape of the Gemini API.
type GenerationResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a candidate response from the model.
type Candidate struct {
	Content Content `json:"content"`
}

// Content represents the content of a candidate.
type Content struct {
	Parts []Part `json:"parts"`
}

// Part is a part of the content.
type Part struct {
	Text string `json:"text"`
}

// NewTextResponse builds a single-candidate, single-part response. Used by fakes and tests.
func NewTextResponse(text string) *GenerationResponse {
	return &GenerationResponse{
		Candidates: []Candidate{{Content: Content{Parts: []Part{{Text: text}}}}},
	}
}
