package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedOutputError reports model text that failed to decode as JSON
// after fence stripping. RawText carries the offending output for diagnosis;
// the failure is terminal for the document and never retried here.
type MalformedOutputError struct {
	RawText string
	Err     error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("model returned invalid JSON: %v", e.Err)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

// CleanOutput strips a markdown code-fence wrapper (with or without a json
// tag) and surrounding whitespace. Already-clean text passes through
// unchanged, so cleaning twice is a no-op.
func CleanOutput(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// DecodeValue cleans model output and decodes it as a single JSON value.
// The result may still be a string when the model double-encoded its answer.
func DecodeValue(text string) (any, error) {
	cleaned := CleanOutput(text)
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, &MalformedOutputError{RawText: text, Err: err}
	}
	return v, nil
}

// DecodeObject cleans model output and decodes it, requiring a JSON object.
func DecodeObject(text string) (map[string]any, error) {
	v, err := DecodeValue(text)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &MalformedOutputError{
			RawText: text,
			Err:     fmt.Errorf("expected a JSON object, got %T", v),
		}
	}
	return m, nil
}
