package engine

import (
	"math/rand"
	"strings"

	"kotoba-quiz-service/internal/domain"
)

const (
	// RoundsPerSession is the fixed trial length for every mode.
	RoundsPerSession = 10
	// choiceOptions is how many answers a choice round displays.
	choiceOptions = 4

	choiceTimerTicks       = 15
	constructionTimerTicks = 30
)

// Answer carries a candidate submission. Choice modes fill Choice with the
// selected option text; construction mode fills Tokens with the ordered
// sequence the player assembled.
type Answer struct {
	Choice string
	Tokens []string
}

// ModeConfig parametrizes the round engine for one quiz variant. The state
// machine itself is mode-agnostic; timer length, presentation, and grading
// are the only behavioral differences between the three modes.
type ModeConfig struct {
	Mode       domain.Mode
	TimerTicks int
}

// ConfigFor returns the parameters for a mode.
func ConfigFor(mode domain.Mode) (ModeConfig, error) {
	switch mode {
	case domain.ModeReading, domain.ModeLookalike:
		return ModeConfig{Mode: mode, TimerTicks: choiceTimerTicks}, nil
	case domain.ModeConstruction:
		return ModeConfig{Mode: mode, TimerTicks: constructionTimerTicks}, nil
	}
	return ModeConfig{}, domain.ErrUnknownMode
}

// choice reports whether the mode presents a 4-way multiple choice.
func (c ModeConfig) choice() bool {
	return c.Mode != domain.ModeConstruction
}

// buildOptions prepares the presented answer set for an item: the correct
// answer plus distractors drawn from the item's wrong-answer pool, order
// randomized. For construction mode it returns the scrambled token pool
// instead.
func (c ModeConfig) buildOptions(item domain.QuizItem, rnd *rand.Rand) []string {
	if !c.choice() {
		pool := make([]string, len(item.Tokens))
		copy(pool, item.Tokens)
		rnd.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		return pool
	}

	opts := make([]string, 0, choiceOptions)
	opts = append(opts, item.Answer)
	for _, idx := range rnd.Perm(len(item.Choices)) {
		if len(opts) == choiceOptions {
			break
		}
		opts = append(opts, item.Choices[idx])
	}
	rnd.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	return opts
}

// grade compares a candidate against the item's correct answer. Choice
// modes compare the selected text; construction mode requires the exact
// token order, not a multiset match.
func (c ModeConfig) grade(item domain.QuizItem, answer Answer) bool {
	if c.choice() {
		return answer.Choice == item.Answer
	}
	if len(answer.Tokens) != len(item.Tokens) {
		return false
	}
	for i, tok := range item.Tokens {
		if answer.Tokens[i] != tok {
			return false
		}
	}
	return true
}

// correctText is the canonical answer shown in the mistake review.
func (c ModeConfig) correctText(item domain.QuizItem) string {
	if c.choice() {
		return item.Answer
	}
	return strings.Join(item.Tokens, "")
}
