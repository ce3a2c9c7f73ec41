package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Invokable exposes a Descriptor as an eino tool.InvokableTool so a tool can
// be run directly from JSON arguments, bypassing model selection.
type Invokable struct {
	desc *Descriptor
}

var _ tool.InvokableTool = (*Invokable)(nil)

// Invokable returns the named tool as an eino InvokableTool.
func (r *Registry) Invokable(name string) (*Invokable, bool) {
	d, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return &Invokable{desc: d}, true
}

// Info returns the eino tool metadata.
func (t *Invokable) Info(context.Context) (*schema.ToolInfo, error) {
	return t.desc.ToolInfo(), nil
}

// InvokableRun binds argumentsInJSON against the parameter schema, calls the
// tool and returns the formatted result. Empty input means no arguments.
func (t *Invokable) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	raw := map[string]any{}
	if s := strings.TrimSpace(argumentsInJSON); s != "" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return "", fmt.Errorf("%w: %s: arguments are not a JSON object: %v", ErrInvalidArguments, t.desc.Name, err)
		}
	}
	args, err := t.desc.Bind(raw)
	if err != nil {
		return "", err
	}
	res, err := t.desc.Call(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.desc.Name, err)
	}
	return Format(res), nil
}
