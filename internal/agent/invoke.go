package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/tools"
)

// ToolCall reports what happened on the tool path. Request and Result are
// nil when the model answered in prose and no tool ran.
type ToolCall struct {
	Request *Request
	Result  *tools.Result
}

// InvokeTool asks the model to pick a tool, runs it and streams a second
// completion grounded on the formatted result to w.
//
// A response without a usable JSON request is treated as the answer and
// written to w as-is. An unknown action, invalid arguments or a failing tool
// abort the turn with ErrUnknownAction, tools.ErrInvalidArguments or
// ErrToolExecution. Nothing is retried.
func (a *Assistant) InvokeTool(ctx context.Context, question string, w io.Writer) (*ToolCall, error) {
	if a.tools == nil {
		return nil, fmt.Errorf("agent: no tools registered")
	}
	log := logging.FromContext(ctx)

	a.metrics.ModelCall(phaseSelect)
	resp, err := a.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(toolSelectSystem(a.tools.RenderCatalog())),
		schema.UserMessage(question),
	})
	if err != nil {
		return nil, fmt.Errorf("agent: tool selection failed: %w", err)
	}

	req, err := ParseRequest(resp.Content)
	if errors.Is(err, ErrNoJSONFound) || errors.Is(err, ErrMalformedJSON) {
		log.Debug("agent: no tool request in response, answering with text", slog.Any("reason", err))
		if _, werr := io.WriteString(w, resp.Content); werr != nil {
			return nil, fmt.Errorf("agent: write error: %w", werr)
		}
		return &ToolCall{}, nil
	}

	desc, ok := a.tools.Lookup(req.Action)
	if !ok {
		a.metrics.ToolCall(req.Action, metrics.OutcomeError)
		return &ToolCall{Request: req}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	args, err := desc.Bind(req.Arguments)
	if err != nil {
		a.metrics.ToolCall(req.Action, metrics.OutcomeError)
		return &ToolCall{Request: req}, err
	}

	log.Info("agent: calling tool", slog.String("action", req.Action), slog.Any("arguments", args))
	result, err := desc.Call(ctx, args)
	if err != nil {
		a.metrics.ToolCall(req.Action, metrics.OutcomeError)
		return &ToolCall{Request: req}, fmt.Errorf("%w: %s: %w", ErrToolExecution, req.Action, err)
	}
	a.metrics.ToolCall(req.Action, metrics.OutcomeOK)

	a.metrics.ModelCall(phaseAnswer)
	messages := []*schema.Message{
		schema.SystemMessage(toolAnswerSystem(tools.Format(result), a.language)),
		schema.UserMessage(question),
	}
	call := &ToolCall{Request: req, Result: result}
	if _, err := a.stream(ctx, messages, w); err != nil {
		return call, err
	}
	return call, nil
}
