package models

import "time"

// Session scopes one uploaded document and the chat history built on top of it.
type Session struct {
	ID              string    `json:"id"`
	DocumentContext *string   `json:"document_context,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasDocument reports whether a document was ever attached, even if nothing could be extracted from it.
func (s *Session) HasDocument() bool {
	return s != nil && s.DocumentContext != nil
}

// ContractRequest is the transient input of a contract generation turn.
type ContractRequest struct {
	Type    string `json:"contract_type" form:"contract_type"`
	Details string `json:"details" form:"details"`
}
