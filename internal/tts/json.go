package tts

import (
	"encoding/json"
	"errors"
	"fmt"
)

const maxBodyInError = 128

// ErrMalformedResponse is returned when a remote service answers with JSON
// that does not decode into the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// parseJSON decodes a service response body into target. The error quotes
// the start of the body so HTML error pages are recognisable in logs.
func parseJSON(data []byte, target any) error {
	err := json.Unmarshal(data, target)
	if err != nil {
		snippet := data
		if len(snippet) > maxBodyInError {
			snippet = snippet[:maxBodyInError]
		}

		return fmt.Errorf("%w: %w (body: %q)", ErrMalformedResponse, err, snippet)
	}

	return nil
}
