package extraction

import "context"

// Part is one piece of generative model input: either inline text or raw
// bytes with a MIME type.
type Part struct {
	Text string
	Data []byte
	MIME string
}

// TextPart builds a text input part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// DataPart builds a binary input part.
func DataPart(mime string, data []byte) Part {
	return Part{MIME: mime, Data: data}
}

// Generator defines the interface to a generative model backend. The
// returned text is expected to contain one JSON object, possibly wrapped in
// markdown fencing; callers clean and decode it themselves.
type Generator interface {
	// Generate submits a prompt plus document parts and returns the raw
	// model text.
	Generate(ctx context.Context, prompt string, parts ...Part) (string, error)

	// Close releases the backend client.
	Close() error
}
