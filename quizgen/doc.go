// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package quizgen produces multiple-choice questions for a round.

	gen := quizgen.New(cfg)
	qs, err := gen.Generate(ctx, "Space", "medium", 3)

New returns a Resilient generator: the OpenAI chat completions client bounded
by cfg.GenerationTimeout, backed by Fallback. Fallback builds questions from
local templates and never fails, so a Resilient generator only returns an
error if its fallback does.

Every accepted question has exactly four options and a correct index in
[0,3]; anything else is a *GenerationError.
*/
package quizgen
