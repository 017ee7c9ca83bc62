package orchestrator

import (
	"strings"
)

const contractCommandPrefix = "generate contract:"

// Request is the classified intent of one chat input.
type Request interface {
	isRequest()
}

// ChatRequest is a general question, possibly about the uploaded document.
type ChatRequest struct {
	Input string
}

// GenerateRequest is a contract generation command typed into chat.
type GenerateRequest struct {
	Type    string
	Details string
}

// MalformedCommand has the contract prefix but is missing the type or details segment.
type MalformedCommand struct {
	Input string
}

func (ChatRequest) isRequest()      {}
func (GenerateRequest) isRequest()  {}
func (MalformedCommand) isRequest() {}

// Classify routes input by the "generate contract:<type>:<details>" syntax.
// The prefix is matched case-insensitively and details may contain further colons.
func Classify(input string) Request {
	trimmed := strings.TrimLeft(input, " \t\r\n")
	if !strings.HasPrefix(strings.ToLower(trimmed), contractCommandPrefix) {
		return ChatRequest{Input: input}
	}
	parts := strings.SplitN(trimmed, ":", 3)
	if len(parts) < 3 {
		return MalformedCommand{Input: input}
	}
	return GenerateRequest{
		Type:    strings.TrimSpace(parts[1]),
		Details: strings.TrimSpace(parts[2]),
	}
}
