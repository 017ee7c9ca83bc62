package orchestrator

import (
	"fmt"

	"legalmind/internal/contracts"
	"legalmind/internal/models"
)

const (
	SystemPrompt = "You are LegalMind, an AI legal assistant. Be helpful, concise, and informative. Avoid giving legal advice."

	HelpMessage = "To generate a contract, please use the format: 'generate contract: [type]: [details]' " +
		"(e.g., 'generate contract: NDA: Parties are ACME Corp and Beta Inc, effective date 2024-01-01'). " +
		"Supported types: NDA, Rental Agreement."

	ChatApology                = "Sorry, I encountered an error processing your request."
	ContractApology            = "Sorry, I encountered an error generating the contract."
	UnavailableMessage         = "LLM is not available."
	ContractUnavailableMessage = "LLM is not available for contract generation."

	Disclaimer = "Please review this draft carefully. It is AI-generated and may require review by a legal professional."
)

// UnsupportedContractMessage is returned for contract types missing from the registry.
func UnsupportedContractMessage(contractType string) string {
	return fmt.Sprintf("Sorry, contract type '%s' is not supported.", contractType)
}

// EnrichWithContext prefixes input with the document text. Empty context leaves input untouched.
func EnrichWithContext(docContext, input string) string {
	if docContext == "" {
		return input
	}
	return "Based on the following document context:\n---\n" + docContext + "\n---\n\n" + input
}

func chatMessages(sessionID string, prior []*models.Message, input, docContext string) []*models.Message {
	msgs := make([]*models.Message, 0, len(prior)+2)
	msgs = append(msgs, models.NewMessage(sessionID, models.RoleSystem, SystemPrompt))
	msgs = append(msgs, prior...)
	msgs = append(msgs, models.NewMessage(sessionID, models.RoleUser, EnrichWithContext(docContext, input)))
	return msgs
}

func contractMessages(sessionID, contractType, template, details string) []*models.Message {
	return []*models.Message{
		models.NewMessage(sessionID, models.RoleSystem,
			fmt.Sprintf("You are tasked with generating a %s contract.", contractType)),
		models.NewMessage(sessionID, models.RoleUser,
			template+"\n\nPlease incorporate these user details:\n"+details+"\n\nGenerate the full contract text."),
	}
}

// ContractEnvelope wraps a generated contract body with a heading and the review disclaimer.
func ContractEnvelope(contractType, body string) string {
	return fmt.Sprintf("Here is the draft %s:\n\n```\n%s\n```\n%s", contracts.DisplayName(contractType), body, Disclaimer)
}
