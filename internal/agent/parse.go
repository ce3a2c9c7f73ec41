package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSONFound means the model answered in prose; the response is
	// shown as the answer.
	ErrNoJSONFound = errors.New("agent: no JSON object in model response")
	// ErrMalformedJSON means the braces did not enclose a valid tool
	// request; the response is shown as the answer.
	ErrMalformedJSON = errors.New("agent: malformed tool request")
	// ErrUnknownAction means the model asked for a tool that is not
	// registered. The turn is aborted.
	ErrUnknownAction = errors.New("agent: unknown action")
	// ErrToolExecution wraps a failure raised by a tool. The turn is aborted.
	ErrToolExecution = errors.New("agent: tool execution failed")
)

// Request is a tool call emitted by the model:
//
//	{"action": "list_open_issues", "arguments": {"repo_name": "x/y"}}
type Request struct {
	Action    string         `json:"action"`
	Arguments map[string]any `json:"arguments"`
}

// ExtractJSON returns the substring from the first '{' to the last '}'.
// Models often wrap the object in prose or code fences, so nothing outside
// that span is inspected.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoJSONFound
	}
	return text[start : end+1], nil
}

// ParseRequest extracts and decodes a tool request from a model response.
func ParseRequest(text string) (*Request, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if strings.TrimSpace(req.Action) == "" {
		return nil, fmt.Errorf("%w: missing action", ErrMalformedJSON)
	}
	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}
	return &req, nil
}
