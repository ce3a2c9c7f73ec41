package tools

import "testing"

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   *Result
		want string
	}{
		{
			name: "record",
			in: &Result{Shape: ShapeRecord, Record: Record{
				{"message", "Fix build"},
				{"open_issues", "3"},
			}},
			want: "Message: Fix build\nOpen issues: 3",
		},
		{
			name: "empty list",
			in:   &Result{Shape: ShapeIssues},
			want: "No data found.",
		},
		{
			name: "empty record",
			in:   &Result{Shape: ShapeRecord},
			want: "No data found.",
		},
		{
			name: "nil",
			in:   nil,
			want: "No data found.",
		},
		{
			name: "repos",
			in: &Result{Shape: ShapeRepos, Items: []Record{{
				{"name", "kbai"}, {"language", "Go"}, {"stars", "7"},
				{"forks", "1"}, {"visibility", "public"}, {"last_update", "2026-01-02 03:04:05"},
			}}},
			want: "- kbai | Stars: 7 | Forks: 1 | Language: Go | Last update: 2026-01-02 03:04:05",
		},
		{
			name: "issues",
			in: &Result{Shape: ShapeIssues, Items: []Record{
				{{"title", "Crash on start"}, {"author", "alice"}},
				{{"title", "Docs typo"}, {"author", "bob"}},
			}},
			want: "- Crash on start (by alice)\n- Docs typo (by bob)",
		},
		{
			name: "generic list",
			in: &Result{Shape: ShapeList, Items: []Record{
				{{"branch", "main"}, {"protected", "true"}},
			}},
			want: "branch: main, protected: true",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Format(tc.in); got != tc.want {
				t.Errorf("Format:\n got %q\nwant %q", got, tc.want)
			}
		})
	}
}
