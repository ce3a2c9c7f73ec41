package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/54b3r/kbai-go/internal/agent"
	"github.com/54b3r/kbai-go/internal/logging"
	"github.com/54b3r/kbai-go/internal/metrics"
	"github.com/54b3r/kbai-go/internal/rag"
)

// HelpText lists the interactive commands.
const HelpText = `Commands:
  tool    answer every question with a tool
  rag     answer every question from the knowledge base
  auto    pick per question (tool keywords such as github, repo, commit, issue)
  status  show the current mode
  help    show this help
  exit    quit (also: quit)`

// Session is the state of one conversation. The zero value is not ready;
// use New.
type Session struct {
	Mode Mode
}

// New returns a session in auto mode.
func New() *Session {
	return &Session{Mode: ModeAuto}
}

// Answerer runs the two answer paths. *agent.Assistant implements it.
type Answerer interface {
	Ask(ctx context.Context, question string, w io.Writer) (*rag.Result, error)
	InvokeTool(ctx context.Context, question string, w io.Writer) (*agent.ToolCall, error)
}

// Outcome describes how one input was handled.
type Outcome struct {
	// Command is set when the input was a command.
	Command Command
	// Path is set when the input was routed as a question.
	Path Path
	// Exit is true after exit/quit.
	Exit bool
	// Retrieval is the rag result, when Path is PathRAG.
	Retrieval *rag.Result
	// Tool is the tool call, when Path is PathTool.
	Tool *agent.ToolCall
}

// Dispatcher routes inputs for sessions. It holds no per-session state.
type Dispatcher struct {
	answerer Answerer
	metrics  *metrics.Metrics
}

// NewDispatcher constructs a Dispatcher. m may be nil.
func NewDispatcher(answerer Answerer, m *metrics.Metrics) (*Dispatcher, error) {
	if answerer == nil {
		return nil, fmt.Errorf("session: answerer must not be nil")
	}
	return &Dispatcher{answerer: answerer, metrics: m}, nil
}

// Handle processes one line of input. Commands update s and write their
// response to w; questions are answered on the path chosen by s.Mode and
// streamed to w. Errors abort only this input; the session stays usable.
func (d *Dispatcher) Handle(ctx context.Context, s *Session, input string, w io.Writer) (*Outcome, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return &Outcome{}, nil
	}

	if cmd := ParseCommand(input); cmd != CmdNone {
		out := &Outcome{Command: cmd}
		prev := s.Mode
		s.Mode = Transition(s.Mode, cmd)

		var msg string
		switch cmd {
		case CmdExit:
			out.Exit = true
			return out, nil
		case CmdStatus:
			msg = "Current mode: " + string(s.Mode)
		case CmdHelp:
			msg = HelpText
		default:
			msg = "Mode set to " + string(s.Mode)
			logging.FromContext(ctx).Debug("session: mode changed",
				slog.String("from", string(prev)),
				slog.String("to", string(s.Mode)),
			)
		}
		if _, err := fmt.Fprintln(w, msg); err != nil {
			return out, err
		}
		return out, nil
	}

	return d.Answer(ctx, s, input, w)
}

// Answer routes question by s.Mode and streams the answer to w without
// checking for commands, so one-shot callers (kbai ask, POST /api/ask) get
// an answer even for a question that reads "status" or "help".
func (d *Dispatcher) Answer(ctx context.Context, s *Session, question string, w io.Writer) (*Outcome, error) {
	input := strings.TrimSpace(question)
	if input == "" {
		return &Outcome{}, nil
	}
	path := Route(s.Mode, input)
	d.metrics.Dispatch(string(path))
	logging.FromContext(ctx).Debug("session: routing question",
		slog.String("mode", string(s.Mode)),
		slog.String("path", string(path)),
	)

	out := &Outcome{Path: path}
	var err error
	switch path {
	case PathTool:
		out.Tool, err = d.answerer.InvokeTool(ctx, input, w)
	default:
		out.Retrieval, err = d.answerer.Ask(ctx, input, w)
	}
	return out, err
}
