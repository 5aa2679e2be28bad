// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package quizgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/quizsmash/cliparse"
	"github.com/danielhkuo/quizsmash/models"
)

// Generator produces count multiple-choice questions for a topic
type Generator interface {
	Generate(ctx context.Context, topic, difficulty string, count int) ([]models.GeneratedQuestion, error)
}

var ErrTimeout = errors.New("question generation timed out")

// GenerationError reports a response that could not be turned into a valid
// question set
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return "generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Validate checks that qs holds exactly count questions with non-empty text,
// four options and a correct index in range
func Validate(qs []models.GeneratedQuestion, count int) error {
	if len(qs) != count {
		return &GenerationError{Reason: fmt.Sprintf("expected %d questions, got %d", count, len(qs))}
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			return &GenerationError{Reason: fmt.Sprintf("question %d has no text", i+1)}
		}
		if len(q.Options) != models.OptionCount {
			return &GenerationError{Reason: fmt.Sprintf("question %d has %d options", i+1, len(q.Options))}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= models.OptionCount {
			return &GenerationError{Reason: fmt.Sprintf("question %d has correct index %d", i+1, q.CorrectIndex)}
		}
	}
	return nil
}

// Resilient races Primary against Timeout and falls back on failure or
// timeout. A primary result that arrives after the timeout is dropped.
type Resilient struct {
	Primary  Generator
	Fallback Generator
	Timeout  time.Duration
}

type result struct {
	questions []models.GeneratedQuestion
	err       error
}

func (r *Resilient) Generate(ctx context.Context, topic, difficulty string, count int) ([]models.GeneratedQuestion, error) {
	if r.Primary == nil {
		return r.Fallback.Generate(ctx, topic, difficulty, count)
	}

	pctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	// Buffered so a late primary never blocks after we stop listening
	done := make(chan result, 1)
	go func() {
		qs, err := r.Primary.Generate(pctx, topic, difficulty, count)
		if err == nil {
			err = Validate(qs, count)
		}
		done <- result{questions: qs, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.questions, nil
		}
		slog.Warn("question generation failed, using fallback",
			"topic", topic,
			"error", res.err,
		)
	case <-pctx.Done():
		slog.Warn("question generation timed out, using fallback",
			"topic", topic,
			"timeout", r.Timeout,
		)
	}

	return r.Fallback.Generate(ctx, topic, difficulty, count)
}

// New builds the generator described by cfg. Without an API key only the
// fallback is used.
func New(cfg cliparse.Config) Generator {
	r := &Resilient{
		Fallback: Fallback{},
		Timeout:  cfg.GenerationTimeout,
	}
	if cfg.OpenAIKey != "" {
		r.Primary = NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	} else {
		slog.Warn("no OpenAI API key configured, using fallback questions only")
	}
	return r
}
