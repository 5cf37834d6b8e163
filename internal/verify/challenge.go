package verify

import "math/rand/v2"

// Option is one selectable answer: the emoji the candidate taps (Label) and
// its human-readable name (Value).
type Option struct {
	Label string
	Value string
}

// Challenge is a one-shot multiple-choice prompt: six options, exactly one of
// which matches the displayed fruit name.
type Challenge struct {
	Options []Option
	Correct int
}

// CorrectOption returns the designated-correct pair.
func (c Challenge) CorrectOption() Option {
	return c.Options[c.Correct]
}

const optionCount = 6

var symbols = []Option{
	{"🍎", "Apple"},
	{"🍐", "Pear"},
	{"🍊", "Orange"},
	{"🍋", "Lemon"},
	{"🍌", "Banana"},
	{"🍉", "Watermelon"},
	{"🍇", "Grapes"},
	{"🍓", "Strawberry"},
	{"🍑", "Peach"},
	{"🥭", "Mango"},
	{"🍍", "Pineapple"},
}

// NewChallenge picks one correct pair uniformly from the symbol set, samples
// five distinct decoys from the rest (Fisher–Yates prefix), and inserts the
// correct pair at a uniformly random slot.
func NewChallenge() Challenge {
	correct := rand.IntN(len(symbols))

	rest := make([]Option, 0, len(symbols)-1)
	rest = append(rest, symbols[:correct]...)
	rest = append(rest, symbols[correct+1:]...)
	for i := 0; i < optionCount-1; i++ {
		j := i + rand.IntN(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
	}

	pos := rand.IntN(optionCount)
	opts := make([]Option, 0, optionCount)
	opts = append(opts, rest[:pos]...)
	opts = append(opts, symbols[correct])
	opts = append(opts, rest[pos:optionCount-1]...)

	return Challenge{Options: opts, Correct: pos}
}
