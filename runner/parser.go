package runner

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ethereum-optimism/infra/cleantest/types"
)

// ErrNoOutcome is returned when a child's output holds no well-formed outcome.
var ErrNoOutcome = errors.New("no well-formed outcome in child output")

// OutputParser recovers an outcome from a child's combined output
type OutputParser interface {
	Parse(output []byte) (*types.Outcome, error)
}

var _ OutputParser = (*OutcomeParser)(nil)

// OutcomeParser accepts the last line of output that decodes as a JSON object
// carrying the outcome schema tag and a supported version. Anything before it
// is incidental log output.
type OutcomeParser struct{}

func NewOutcomeParser() *OutcomeParser {
	return &OutcomeParser{}
}

func (p *OutcomeParser) Parse(output []byte) (*types.Outcome, error) {
	rest := bytes.TrimRight(output, "\r\n\t ")
	for len(rest) > 0 {
		var line []byte
		if idx := bytes.LastIndexByte(rest, '\n'); idx >= 0 {
			line, rest = rest[idx+1:], rest[:idx]
		} else {
			line, rest = rest, nil
		}

		if o, ok := decodeOutcome(line); ok {
			return o, nil
		}
	}
	return nil, ErrNoOutcome
}

func decodeOutcome(line []byte) (*types.Outcome, bool) {
	line = bytes.TrimSpace(line)
	if len(line) < 2 || line[0] != '{' || line[len(line)-1] != '}' {
		return nil, false
	}
	var o types.Outcome
	if err := json.Unmarshal(line, &o); err != nil {
		return nil, false
	}
	if err := o.Validate(); err != nil {
		return nil, false
	}
	return &o, true
}

// EncodeOutcome renders o as the single line a child writes last.
func EncodeOutcome(o *types.Outcome) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
