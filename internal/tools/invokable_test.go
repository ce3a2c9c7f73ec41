package tools

import (
	"context"
	"errors"
	"testing"
)

func TestInvokable_Run(t *testing.T) {
	t.Parallel()

	var got Args
	r, err := NewRegistry(Descriptor{
		Name: "get_repo_stats",
		Params: []Param{
			{Name: "repo_name", Type: String, Required: true},
			{Name: "limit", Type: Int, Default: 2},
		},
		Call: func(_ context.Context, args Args) (*Result, error) {
			got = args
			return &Result{Shape: ShapeRecord, Record: Record{{Key: "name", Value: args.String("repo_name")}}}, nil
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	inv, ok := r.Invokable("get_repo_stats")
	if !ok {
		t.Fatal("tool not found")
	}
	info, err := inv.Info(context.Background())
	if err != nil || info.Name != "get_repo_stats" {
		t.Fatalf("Info = %+v, %v", info, err)
	}

	out, err := inv.InvokableRun(context.Background(), `{"repo_name": "octocat/hello"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if out != "Name: octocat/hello" {
		t.Errorf("output = %q", out)
	}
	if got.Int("limit") != 2 {
		t.Errorf("default not applied: %+v", got)
	}
}

func TestInvokable_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	r, err := NewRegistry(Descriptor{
		Name:   "get_last_commit",
		Params: []Param{{Name: "repo_name", Type: String, Required: true}},
		Call:   func(context.Context, Args) (*Result, error) { return nil, boom },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	inv, _ := r.Invokable("get_last_commit")

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"not an object", `["a"]`, ErrInvalidArguments},
		{"missing required", "", ErrInvalidArguments},
		{"tool failure", `{"repo_name":"a/b"}`, boom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := inv.InvokableRun(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
		})
	}

	if _, ok := r.Invokable("nope"); ok {
		t.Error("unknown tool should not resolve")
	}
}
