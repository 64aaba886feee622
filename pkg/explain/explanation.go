package explain

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnparsableResponse indicates the model did not answer with the
	// requested JSON object. The raw answer is still shown to the user.
	ErrUnparsableResponse = errors.New("unparsable explanation response")
)

type SafetyLevel string

const (
	SafetyLevelSafe    SafetyLevel = "safe"
	SafetyLevelNotSafe SafetyLevel = "not_safe"
)

// Explanation is a natural language verdict on a transaction. When the
// response could not be parsed, only Raw is set.
type Explanation struct {
	SafetyLevel SafetyLevel `json:"safetyLevel,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Reasoning   string      `json:"reasoning,omitempty"`
	Raw         string      `json:"raw,omitempty"`

	err error
}

// IsStructured reports whether the response was parsed into a verdict.
func (e *Explanation) IsStructured() bool {
	return len(e.SafetyLevel) > 0
}

// Err returns why the response could not be parsed, if it could not.
func (e *Explanation) Err() error {
	return e.err
}

// ParseExplanation decodes a model response. Markdown code fences around the
// JSON object are ignored. Responses that are not a JSON object with a known
// safety level are kept verbatim in Raw.
func ParseExplanation(content string) Explanation {
	var parsed struct {
		SafetyLevel SafetyLevel `json:"safetyLevel"`
		Summary     string      `json:"summary"`
		Reasoning   string      `json:"reasoning"`
	}

	decoder := json.NewDecoder(strings.NewReader(stripCodeFence(content)))
	if err := decoder.Decode(&parsed); err != nil {
		return Explanation{Raw: content, err: errors.Wrap(ErrUnparsableResponse, err.Error())}
	}

	if decoder.More() {
		return Explanation{Raw: content, err: errors.Wrap(ErrUnparsableResponse, "unexpected content after json object")}
	}

	switch parsed.SafetyLevel {
	case SafetyLevelSafe, SafetyLevelNotSafe:
	default:
		return Explanation{Raw: content, err: errors.Wrapf(ErrUnparsableResponse, "unknown safety level %q", parsed.SafetyLevel)}
	}

	return Explanation{
		SafetyLevel: parsed.SafetyLevel,
		Summary:     parsed.Summary,
		Reasoning:   parsed.Reasoning,
	}
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence along with any language tag.
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "```")
	}

	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
