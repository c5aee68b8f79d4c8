package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mathanim/internal/config"
	"mathanim/internal/llm"
	"mathanim/internal/telemetry"
)

// TextGenerator turns a system and user prompt into text.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// TextGeneratorFunc adapts a function to TextGenerator.
type TextGeneratorFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f TextGeneratorFunc) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

// LLMGenerator backs a TextGenerator with a chat completion model.
type LLMGenerator struct {
	client      llm.Client
	maxTokens   int
	temperature *float64
}

func NewLLMGenerator(client llm.Client, cfg config.LLMConfig) *LLMGenerator {
	return &LLMGenerator{
		client:      client,
		maxTokens:   cfg.MaxTokens,
		temperature: llm.Temp(cfg.Temperature),
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.client.Complete(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    g.maxTokens,
		Temperature:  g.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Planner produces the animation plan for a prompt.
type Planner struct {
	gen TextGenerator
}

func NewPlanner(gen TextGenerator) *Planner {
	return &Planner{gen: gen}
}

func (p *Planner) GeneratePlan(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	plan, err := p.gen.Generate(ctx, plannerSystemPrompt, prompt)
	observe(ctx, "plan", start, err)
	if err != nil {
		return "", fmt.Errorf("generate plan: %w", err)
	}
	return strings.TrimSpace(plan), nil
}

// Coder writes the initial scene script for a plan.
type Coder struct {
	gen TextGenerator
}

func NewCoder(gen TextGenerator) *Coder {
	return &Coder{gen: gen}
}

func (c *Coder) GenerateCode(ctx context.Context, plan string) (string, error) {
	start := time.Now()
	out, err := c.gen.Generate(ctx, coderSystemPrompt, coderUserPrompt(plan))
	observe(ctx, "code", start, err)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return ExtractCode(out), nil
}

// Debugger rewrites a failing script, anchored to the original plan.
type Debugger struct {
	gen TextGenerator
}

func NewDebugger(gen TextGenerator) *Debugger {
	return &Debugger{gen: gen}
}

func (d *Debugger) RepairCode(ctx context.Context, plan, broken, diagnostic string) (string, error) {
	start := time.Now()
	out, err := d.gen.Generate(ctx, debuggerSystemPrompt, debuggerUserPrompt(plan, broken, diagnostic))
	observe(ctx, "repair", start, err)
	if err != nil {
		return "", fmt.Errorf("repair code: %w", err)
	}
	return ExtractCode(out), nil
}

func observe(ctx context.Context, stage string, start time.Time, err error) {
	elapsed := time.Since(start)
	telemetry.GenerateDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		slog.WarnContext(ctx, "generator call failed", "generator", stage, "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	slog.InfoContext(ctx, "generator call finished", "generator", stage, "duration_ms", elapsed.Milliseconds())
}

// ExtractCode returns the body of the first fenced code block in text, or the
// trimmed text when it contains no fence.
func ExtractCode(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	// Drop the info string (```python).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return trimmed
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
