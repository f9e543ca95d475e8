package dto

import "encoding/json"

// ReferenceItem is one entry of a search-index export used as grounding material.
type ReferenceItem struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// ReferenceIngestResponse reports how many documents were indexed.
type ReferenceIngestResponse struct {
	Indexed int    `json:"indexed"`
	Store   string `json:"store"`
}

// AskRequest is a free-form question answered from the reference index.
type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

// AskResponse carries the model's grounded answer.
type AskResponse struct {
	Response string `json:"response"`
}
