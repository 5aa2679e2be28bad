// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package quizgen

import (
	"context"
	"fmt"

	"github.com/danielhkuo/quizsmash/models"
)

type template struct {
	question string
	options  []string
	correct  int
}

var fallbackTemplates = []template{
	{
		question: "What is the most interesting fact about %s?",
		options:  []string{"It was discovered recently", "It has unique properties", "It's found everywhere", "It's very rare"},
		correct:  1,
	},
	{
		question: "How does %s typically work?",
		options:  []string{"Through complex processes", "By following simple rules", "Using advanced technology", "With human intervention"},
		correct:  0,
	},
	{
		question: "Why is %s important?",
		options:  []string{"It's not important", "It revolutionizes industries", "It's just interesting", "It helps in daily life"},
		correct:  3,
	},
	{
		question: "Who would know the most about %s?",
		options:  []string{"A random passerby", "A dedicated expert", "A fictional character", "Nobody at all"},
		correct:  1,
	},
	{
		question: "What is the best way to learn about %s?",
		options:  []string{"Ignore it", "Guess", "Study and practice", "Wait for it to go away"},
		correct:  2,
	},
}

// Fallback builds questions from local templates. It never fails.
type Fallback struct{}

func (Fallback) Generate(_ context.Context, topic, _ string, count int) ([]models.GeneratedQuestion, error) {
	if topic == "" {
		topic = "general knowledge"
	}

	qs := make([]models.GeneratedQuestion, count)
	for i := range qs {
		tpl := fallbackTemplates[i%len(fallbackTemplates)]
		options := make([]string, len(tpl.options))
		copy(options, tpl.options)
		qs[i] = models.GeneratedQuestion{
			Question:     fmt.Sprintf(tpl.question, topic),
			Options:      options,
			CorrectIndex: tpl.correct,
		}
	}
	return qs, nil
}
