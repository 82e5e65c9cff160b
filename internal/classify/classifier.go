// Package classify maps a free-text call summary onto a category label with a
// generative-language model.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"coldcall/internal/category"
)

var (
	errNoBackend  = errors.New("no classifier backend configured")
	errEmptyLabel = errors.New("classifier returned an empty label")
)

type panicError struct{ value any }

func (p panicError) Error() string { return fmt.Sprintf("classifier panic: %v", p.value) }

// Result is the outcome of one classification. Category is always set; Err
// records a failure that was absorbed by falling back to category.Default.
type Result struct {
	Category string
	Err      error
}

// Fallback reports whether the default category was substituted.
func (r Result) Fallback() bool { return r.Err != nil }

// Classifier classifies call summaries. It never fails: any backend error
// yields category.Default.
type Classifier struct {
	backend Backend
	prompts *PromptManager
}

// New builds a classifier. A nil prompts manager uses DefaultPrompt.
func New(backend Backend, prompts *PromptManager) *Classifier {
	return &Classifier{backend: backend, prompts: prompts}
}

// Classify returns the trimmed model response verbatim. Labels outside the
// fixed set are passed through but logged.
func (c *Classifier) Classify(ctx context.Context, summary string) Result {
	res, err := c.classify(ctx, summary)
	if err != nil {
		log.Warn().Err(err).Str("backend", c.backendName()).Msg("classification failed, using default category")
		return Result{Category: category.Default, Err: err}
	}
	return res
}

func (c *Classifier) classify(ctx context.Context, summary string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	if c == nil || c.backend == nil {
		return Result{}, errNoBackend
	}
	prompt := RenderPrompt(c.prompts.Current(), summary)
	text, err := c.backend.Generate(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	label := strings.TrimSpace(text)
	if label == "" {
		return Result{}, errEmptyLabel
	}
	if !category.Known(label) {
		log.Warn().Str("label", label).Msg("classifier returned a label outside the category set")
	}
	return Result{Category: label}, nil
}

func (c *Classifier) backendName() string {
	if c == nil || c.backend == nil {
		return "none"
	}
	return c.backend.Name()
}
