// Package session holds the interactive state of one conversation (the
// current Mode) and the Dispatcher that routes each input either to a mode
// command or to the tool or knowledge-base answer path.
package session

import (
	"strings"
	"unicode"
)

// Mode selects how non-command input is interpreted.
type Mode string

const (
	// ModeAuto classifies each question by keywords.
	ModeAuto Mode = "auto"
	// ModeTool sends every question to the tool path.
	ModeTool Mode = "tool"
	// ModeRAG sends every question to the knowledge base.
	ModeRAG Mode = "rag"
)

// ParseMode returns the Mode named s. Empty selects ModeAuto.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, true
	case ModeTool:
		return ModeTool, true
	case ModeRAG:
		return ModeRAG, true
	}
	return "", false
}

// Command is a recognised control input.
type Command string

const (
	CmdNone   Command = ""
	CmdTool   Command = "tool"
	CmdRAG    Command = "rag"
	CmdAuto   Command = "auto"
	CmdStatus Command = "status"
	CmdHelp   Command = "help"
	CmdExit   Command = "exit"
)

// ParseCommand recognises the literal commands. "quit" is an alias of exit.
// Anything else returns CmdNone and is treated as a question.
func ParseCommand(input string) Command {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "tool":
		return CmdTool
	case "rag":
		return CmdRAG
	case "auto":
		return CmdAuto
	case "status":
		return CmdStatus
	case "help":
		return CmdHelp
	case "exit", "quit":
		return CmdExit
	}
	return CmdNone
}

// Transition returns the mode after cmd. Only the three mode commands change
// it; queries and exit leave it as is.
func Transition(m Mode, cmd Command) Mode {
	switch cmd {
	case CmdTool:
		return ModeTool
	case CmdRAG:
		return ModeRAG
	case CmdAuto:
		return ModeAuto
	}
	return m
}

// Path is where a question is answered.
type Path string

const (
	PathTool Path = "tool"
	PathRAG  Path = "rag"
)

// toolKeywords mark questions about source-control metadata.
var toolKeywords = map[string]struct{}{
	"github": {}, "repo": {}, "repos": {}, "repository": {}, "repositories": {},
	"commit": {}, "commits": {}, "issue": {}, "issues": {},
	"star": {}, "stars": {}, "fork": {}, "forks": {},
	"branch": {}, "branches": {},
}

// Classify picks the path for a question in auto mode: a tool keyword as a
// whole word sends it to the tool path, anything else to the knowledge base.
func Classify(question string) Path {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if _, ok := toolKeywords[w]; ok {
			return PathTool
		}
		if w == "pull" && i+1 < len(words) && (words[i+1] == "request" || words[i+1] == "requests") {
			return PathTool
		}
	}
	return PathRAG
}

// Route returns the path for a question under mode m.
func Route(m Mode, question string) Path {
	switch m {
	case ModeTool:
		return PathTool
	case ModeRAG:
		return PathRAG
	}
	return Classify(question)
}
