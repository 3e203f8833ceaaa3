// Package enrich adapts the external text-transformation capability behind a
// uniform transform contract used identically for translation and polishing.
package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newswire/internal/config"
	"github.com/sells-group/newswire/pkg/anthropic"
)

// Mode selects which transformation to apply. Modes differ only in the model
// and instruction template used.
type Mode string

const (
	ModeTranslate Mode = "translate"
	ModePolish    Mode = "polish"
)

const translateInstruction = `Translate the following English news text into Simplified Chinese. ` +
	`Output only the Chinese translation, with no English and no commentary.`

const polishInstruction = `You are a seasoned commentator on international affairs. Rewrite the ` +
	`following translated news text as an original Chinese commentary piece suitable for a ` +
	`general-interest news feed. Use only the factual information present in the text; do not ` +
	`translate or copy sentences from it, do not attribute statements to the original outlet, ` +
	`and do not invent facts. Aim for 700-850 characters, short paragraphs, a sharp opening, ` +
	`and a closing thought that points forward. Output only the rewritten article.`

// Transformer is the capability contract the orchestrator depends on.
// Implementations must degrade to empty output instead of propagating raw
// external faults; the orchestrator treats empty output for non-empty input
// as stage failure.
type Transformer interface {
	Transform(ctx context.Context, text string, mode Mode) (string, error)
}

// LLMEnricher implements Transformer over the Anthropic client.
type LLMEnricher struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewLLMEnricher creates an LLMEnricher.
func NewLLMEnricher(client anthropic.Client, cfg config.AnthropicConfig) *LLMEnricher {
	return &LLMEnricher{client: client, cfg: cfg}
}

// Transform runs text through the model selected by mode. Empty input yields
// empty output without an API call. Any external failure is logged and mapped
// to ("", err); no raw fault escapes to the caller.
func (e *LLMEnricher) Transform(ctx context.Context, text string, mode Mode) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	model, system, temperature, err := e.modeParams(mode)
	if err != nil {
		return "", err
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      system,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		zap.L().Warn("enrich: transform failed",
			zap.String("mode", string(mode)),
			zap.String("model", model),
			zap.Error(err),
		)
		return "", eris.Wrapf(err, "enrich: %s", mode)
	}

	resp.Usage.LogUsage(model, string(mode))
	return strings.TrimSpace(resp.Text), nil
}

func (e *LLMEnricher) modeParams(mode Mode) (model, system string, temperature float64, err error) {
	switch mode {
	case ModeTranslate:
		return e.cfg.TranslateModel, translateInstruction, 0.3, nil
	case ModePolish:
		return e.cfg.PolishModel, polishInstruction, 0.7, nil
	default:
		return "", "", 0, eris.Errorf("enrich: unknown mode %q", mode)
	}
}
