package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mathanim/internal/config"
	"mathanim/internal/llm"
)

type recordingGen struct {
	system, user string
	out          string
	err          error
}

func (r *recordingGen) Generate(_ context.Context, system, user string) (string, error) {
	r.system, r.user = system, user
	return r.out, r.err
}

func TestPlannerPassesPromptThrough(t *testing.T) {
	gen := &recordingGen{out: "\nAnimation Plan:\n1. Create a Circle.\n"}
	plan, err := NewPlanner(gen).GeneratePlan(context.Background(), "draw a circle")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if gen.user != "draw a circle" {
		t.Fatalf("prompt not forwarded: %q", gen.user)
	}
	if plan != "Animation Plan:\n1. Create a Circle." {
		t.Fatalf("unexpected plan %q", plan)
	}
}

func TestCoderStripsMarkdownFence(t *testing.T) {
	gen := &recordingGen{out: "Here you go:\n```python\nfrom manim import *\n\nclass GeneratedScene(Scene):\n    pass\n```\nEnjoy"}
	code, err := NewCoder(gen).GenerateCode(context.Background(), "Animation Plan:\n1. Nothing.")
	if err != nil {
		t.Fatalf("code: %v", err)
	}
	if !strings.HasPrefix(code, "from manim import *") || strings.Contains(code, "```") {
		t.Fatalf("fence not stripped: %q", code)
	}
	if !strings.Contains(gen.user, "Animation Plan:\n1. Nothing.") {
		t.Fatalf("plan missing from coder prompt: %q", gen.user)
	}
	if !strings.Contains(gen.system, "GeneratedScene") {
		t.Fatalf("coder system prompt must pin the scene name")
	}
}

func TestDebuggerPromptCarriesPlanCodeAndDiagnostic(t *testing.T) {
	gen := &recordingGen{out: "from manim import *\n"}
	_, err := NewDebugger(gen).RepairCode(context.Background(), "PLAN-TEXT", "BROKEN-CODE", "NameError: name 'Circl' is not defined")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	for _, want := range []string{"PLAN-TEXT", "BROKEN-CODE", "NameError: name 'Circl' is not defined"} {
		if !strings.Contains(gen.user, want) {
			t.Fatalf("expected %q in debugger prompt", want)
		}
	}
}

func TestGeneratorErrorsAreWrapped(t *testing.T) {
	boom := errors.New("upstream 500")
	_, err := NewPlanner(&recordingGen{err: boom}).GeneratePlan(context.Background(), "x")
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "generate plan") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type stubClient struct {
	req llm.Request
}

func (s *stubClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.req = req
	return &llm.Response{Content: "ok"}, nil
}

func (s *stubClient) Model() string { return "stub" }

func TestLLMGeneratorAppliesRoleConfig(t *testing.T) {
	c := &stubClient{}
	g := NewLLMGenerator(c, config.LLMConfig{MaxTokens: 512, Temperature: -1})
	out, err := g.Generate(context.Background(), "sys", "usr")
	if err != nil || out != "ok" {
		t.Fatalf("unexpected %q %v", out, err)
	}
	if c.req.MaxTokens != 512 || c.req.Temperature != nil || c.req.SystemPrompt != "sys" {
		t.Fatalf("request not built from config: %+v", c.req)
	}
}

func TestExtractCode(t *testing.T) {
	cases := map[string]string{
		"  print(1)  ":             "print(1)",
		"```python\nprint(1)\n```": "print(1)",
		"```\nprint(2)\n```":       "print(2)",
		"text\n```py\nprint(3)\n":  "print(3)",
		"```python print(4)```":    "```python print(4)```",
	}
	for in, want := range cases {
		if got := ExtractCode(in); got != want {
			t.Fatalf("ExtractCode(%q) = %q, want %q", in, got, want)
		}
	}
}
