package translate

import (
	"encoding/json"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// EnvelopeKind identifies the completion response shape the text was found in
type EnvelopeKind int

const (
	// EnvelopeCandidates is candidates[0].content.parts[0].text
	EnvelopeCandidates EnvelopeKind = iota
	// EnvelopeChoices is choices[0].message.content
	EnvelopeChoices
)

func (k EnvelopeKind) String() string {
	switch k {
	case EnvelopeCandidates:
		return "candidates"
	case EnvelopeChoices:
		return "choices"
	default:
		return "unknown"
	}
}

// envelopeDecoders are tried in order until one recognises the body
var envelopeDecoders = []struct {
	kind   EnvelopeKind
	decode func([]byte) (string, bool)
}{
	{EnvelopeCandidates, candidatesText},
	{EnvelopeChoices, choicesText},
}

// extractEnvelopeText pulls the model's text out of a completion response body
func extractEnvelopeText(body []byte) (string, EnvelopeKind, error) {
	for _, d := range envelopeDecoders {
		if text, ok := d.decode(body); ok {
			return text, d.kind, nil
		}
	}
	return "", 0, ErrUnrecognizedResponseFormat
}

func candidatesText(body []byte) (string, bool) {
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", false
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", false
	}
	return content.Parts[0].Text, true
}

func choicesText(body []byte) (string, bool) {
	var resp openai.ChatCompletion
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false
	}

	if len(resp.Choices) == 0 {
		return "", false
	}
	return resp.Choices[0].Message.Content, true
}
