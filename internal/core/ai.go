package core

import "context"

// CompletionClient is a text-completion service bound to one credential.
// Implementations return an error satisfying IsRateLimited when the provider throttles.
type CompletionClient interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Credential names which configured API key a CompletionClient uses.
type Credential string

const (
	CredentialPrimary  Credential = "primary"
	CredentialFallback Credential = "fallback"
)

// Selection is a consistent snapshot of which client and model a call should use.
type Selection struct {
	Client     CompletionClient
	Model      string
	Credential Credential
}

// ModelSelector owns the process-wide model and credential choice.
type ModelSelector interface {
	Configured() bool
	Active() Selection
	// SwitchToFallback activates the fallback credential. It reports true only
	// to the caller that performed the switch.
	SwitchToFallback() bool
	MarkUnavailable(model string)
}
