package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// renderPrompt loads a template from the prompt store and executes it.
func renderPrompt(prompts driven.PromptStore, name string, data any) (string, error) {
	text, err := prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return sb.String(), nil
}

// complete runs one completion under the retry policy. Each attempt gets
// its own deadline of opts.Timeout; an attempt that hits it counts as a
// provider timeout. Blank output is a malformed response. Every failure
// wraps domain.ErrLLM.
func complete(
	ctx context.Context, llm driven.LLMService, backoff *Backoff, prompt string, opts driven.CompletionOptions,
) (string, error) {
	if llm == nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLLM, domain.ErrLLMUnavailable)
	}

	var answer string
	err := backoff.Do(ctx, "completion", func(ctx context.Context) error {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if opts.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		defer cancel()

		out, err := llm.Complete(attemptCtx, prompt, opts)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return domain.NewProviderError(llm.ModelName(), domain.ProviderErrorTimeout, 0, err)
			}
			return err
		}
		if strings.TrimSpace(out) == "" {
			return domain.NewProviderError(llm.ModelName(), domain.ProviderErrorMalformed, 0, errors.New("empty completion"))
		}
		answer = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLLM, err)
	}
	return answer, nil
}
