// Package tokenizertest provides a deterministic in-memory tokenizer for tests.
package tokenizertest

import (
	"strings"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/tokenizer"
)

// Offset is added to every rune to form its id; ids below it are special.
const Offset = 10

// Chars maps each rune to rune+Offset. BOS=1, EOS=2, UNK=0, no pad token.
type Chars struct {
	special tokenizer.SpecialTokens
	AddBOS  bool
}

var _ tokenizer.Tokenizer = (*Chars)(nil)

// New returns a Chars tokenizer that prefixes BOS like Llama does.
func New() *Chars {
	return &Chars{
		AddBOS: true,
		special: tokenizer.SpecialTokens{
			BOS: &tokenizer.SpecialToken{Content: "<s>", ID: 1},
			EOS: &tokenizer.SpecialToken{Content: "</s>", ID: 2},
			UNK: &tokenizer.SpecialToken{Content: "<unk>", ID: 0},
		},
	}
}

func (c *Chars) Name() string { return "chars" }

func (c *Chars) VocabSize() int { return 0x110000 + Offset }

func (c *Chars) Special() *tokenizer.SpecialTokens { return &c.special }

func (c *Chars) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text)+1)
	if c.AddBOS {
		ids = append(ids, c.special.BOS.ID)
	}
	for _, r := range text {
		ids = append(ids, int(r)+Offset)
	}
	return ids, nil
}

func (c *Chars) Decode(ids []int, skipSpecialTokens bool) string {
	var sb strings.Builder
	for _, id := range ids {
		if tok, ok := c.special.IsSpecial(id); ok {
			if !skipSpecialTokens {
				sb.WriteString(tok.Content)
			}
			continue
		}
		if id < Offset {
			continue
		}
		sb.WriteRune(rune(id - Offset))
	}
	return sb.String()
}
