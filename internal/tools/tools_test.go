package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "stub" }
func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	return "ran " + s.name, nil
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha"})

	if _, ok := r.Get("alpha"); !ok {
		t.Fatal("registered tool not found")
	}
	out, err := r.Execute(context.Background(), "alpha", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "ran alpha" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "ghost", nil); err == nil {
		t.Fatal("unknown capability should error")
	}
}

func TestRegistrySubsetExcludes(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha"})
	r.Register(&stubTool{name: "spawn_subagent"})

	sub := r.Subset("spawn_subagent")
	if _, ok := sub.Get("spawn_subagent"); ok {
		t.Fatal("subset should not contain the excluded tool")
	}
	if _, ok := sub.Get("alpha"); !ok {
		t.Fatal("subset lost a tool it should keep")
	}
	// The parent registry is unchanged.
	if _, ok := r.Get("spawn_subagent"); !ok {
		t.Fatal("subset must not mutate the parent registry")
	}
}

func TestRegistryDefinitionsFormat(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "beta"})
	r.Register(&stubTool{name: "alpha"})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	// Sorted by name for stable prompts.
	fn := defs[0]["function"].(map[string]any)
	if fn["name"] != "alpha" {
		t.Fatalf("definitions not sorted: %v", fn["name"])
	}
	if defs[0]["type"] != "function" {
		t.Fatalf("unexpected definition type: %v", defs[0]["type"])
	}
}

func TestPathParamsOf(t *testing.T) {
	if got := PathParamsOf(&stubTool{name: "x"}); got != nil {
		t.Fatalf("plain tool should declare no path params, got %v", got)
	}
	rf := &ReadFileTool{Workspace: "/tmp"}
	if got := PathParamsOf(rf); len(got) != 1 || got[0] != "path" {
		t.Fatalf("unexpected path params: %v", got)
	}
}

func TestInvocationRoundTrip(t *testing.T) {
	ctx := WithInvocation(context.Background(), Invocation{SessionKey: "s", Namespace: "user:1"})
	inv := InvocationFrom(ctx)
	if inv.SessionKey != "s" || inv.Namespace != "user:1" {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if got := InvocationFrom(context.Background()); got != (Invocation{}) {
		t.Fatalf("expected zero invocation, got %+v", got)
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{
		"s": "text",
		"f": float64(7),
		"i": 3,
		"b": true,
	}
	if GetString(params, "s", "") != "text" {
		t.Fatal("GetString failed")
	}
	if GetString(params, "missing", "d") != "d" {
		t.Fatal("GetString default failed")
	}
	if GetInt(params, "f", 0) != 7 {
		t.Fatal("GetInt float64 failed")
	}
	if GetInt(params, "i", 0) != 3 {
		t.Fatal("GetInt int failed")
	}
	if GetInt(params, "s", 9) != 9 {
		t.Fatal("GetInt wrong-type default failed")
	}
	if !GetBool(params, "b", false) {
		t.Fatal("GetBool failed")
	}
}
