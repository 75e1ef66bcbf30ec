package transcribe

// Exports for testing.

// AudioTranscriber exposes the client interface to black-box tests.
type AudioTranscriber = audioTranscriber

// NewTestTranscriber creates an OpenAITranscriber with a mock client.
func NewTestTranscriber(client AudioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	return newTranscriber(client, opts...)
}
