package session

import "testing"

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := map[string]Command{
		"tool":         CmdTool,
		" RAG ":        CmdRAG,
		"auto":         CmdAuto,
		"status":       CmdStatus,
		"help":         CmdHelp,
		"exit":         CmdExit,
		"Quit":         CmdExit,
		"tool please":  CmdNone,
		"what is rag?": CmdNone,
		"":             CmdNone,
	}
	for in, want := range tests {
		if got := ParseCommand(in); got != want {
			t.Errorf("ParseCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTransition(t *testing.T) {
	t.Parallel()
	modes := []Mode{ModeAuto, ModeTool, ModeRAG}
	for _, m := range modes {
		if got := Transition(m, CmdTool); got != ModeTool {
			t.Errorf("%s + tool = %s", m, got)
		}
		if got := Transition(m, CmdRAG); got != ModeRAG {
			t.Errorf("%s + rag = %s", m, got)
		}
		if got := Transition(m, CmdAuto); got != ModeAuto {
			t.Errorf("%s + auto = %s", m, got)
		}
		for _, q := range []Command{CmdStatus, CmdHelp, CmdExit, CmdNone} {
			if got := Transition(m, q); got != m {
				t.Errorf("%s + %q changed mode to %s", m, q, got)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		q    string
		want Path
	}{
		{"list my GitHub repos", PathTool},
		{"what was the last commit in kbai?", PathTool},
		{"how many stars does it have", PathTool},
		{"any open issues?", PathTool},
		{"show open pull requests", PathTool},
		{"which branch is default", PathTool},
		{"how does the socket server bind?", PathRAG},
		{"what does the pdf say about installation", PathRAG},
		{"explain the reporting module", PathRAG}, // "repo" inside a word
		{"is this a starter guide", PathRAG},      // "star" inside a word
		{"pull the request body", PathRAG},
	}
	for _, tc := range tests {
		t.Run(tc.q, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.q); got != tc.want {
				t.Errorf("Classify(%q) = %s, want %s", tc.q, got, tc.want)
			}
		})
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()
	q := "how does the socket server bind?"
	if Route(ModeTool, q) != PathTool {
		t.Error("tool mode must force the tool path")
	}
	if Route(ModeRAG, "list my github repos") != PathRAG {
		t.Error("rag mode must force the rag path")
	}
	if Route(ModeAuto, q) != PathRAG {
		t.Error("auto mode should classify")
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Mode{"": ModeAuto, "Tool": ModeTool, "rag": ModeRAG} {
		if got, ok := ParseMode(in); !ok || got != want {
			t.Errorf("ParseMode(%q) = %s, %v", in, got, ok)
		}
	}
	if _, ok := ParseMode("chat"); ok {
		t.Error("ParseMode accepted an unknown mode")
	}
}
