package notes

// Exports for testing.

// ChatCompleter exposes the client interface to black-box tests.
type ChatCompleter = chatCompleter

// NewTestGenerator creates an OpenAIGenerator with a mock client.
func NewTestGenerator(client ChatCompleter, opts ...Option) *OpenAIGenerator {
	return newGenerator(client, opts...)
}

// EstimateTokens exposes estimateTokens.
func EstimateTokens(text string) int {
	return estimateTokens(text)
}
