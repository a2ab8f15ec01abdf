package tokenizer

import (
	"errors"
	"fmt"
)

// Tokenizer converts text to token ids and back.
type Tokenizer interface {
	// Encode returns the ids of text, prefixed with BOS when the model adds it.
	Encode(text string) ([]int, error)
	// Decode renders ids as text. Special tokens are kept unless skipped.
	Decode(ids []int, skipSpecialTokens bool) string
	// Special returns the mutable special token table.
	Special() *SpecialTokens
	VocabSize() int
	Name() string
}

// SpecialToken is a named token with its vocabulary id.
type SpecialToken struct {
	Content string
	ID      int
}

// SpecialTokens holds the designated tokens of a tokenizer. Nil means unset.
type SpecialTokens struct {
	BOS *SpecialToken
	EOS *SpecialToken
	UNK *SpecialToken
	Pad *SpecialToken
}

// IsSpecial reports whether id is one of the designated tokens.
func (s *SpecialTokens) IsSpecial(id int) (*SpecialToken, bool) {
	for _, t := range []*SpecialToken{s.BOS, s.EOS, s.UNK, s.Pad} {
		if t != nil && t.ID == id {
			return t, true
		}
	}
	return nil, false
}

var (
	// ErrUnsupported indicates the tokenizer could not be initialized
	ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")
	// ErrNoEOSToken is returned when a pad token is needed but neither pad nor eos exist.
	ErrNoEOSToken = errors.New("tokenizer has neither a pad token nor an eos token")
	// ErrNoTokenizerFiles is returned when a model location has no known tokenizer file.
	ErrNoTokenizerFiles = errors.New("no tokenizer files found")
)

// EnsurePadToken sets the pad token to the eos token when the pad token is unset.
// A tokenizer that already has a pad token is left unchanged.
func EnsurePadToken(t Tokenizer) (bool, error) {
	sp := t.Special()
	if sp.Pad != nil {
		return false, nil
	}
	if sp.EOS == nil {
		return false, fmt.Errorf("%s: %w", t.Name(), ErrNoEOSToken)
	}
	pad := *sp.EOS
	sp.Pad = &pad
	return true, nil
}

// PadID returns the pad token id, or -1 when unset.
func PadID(t Tokenizer) int {
	if p := t.Special().Pad; p != nil {
		return p.ID
	}
	return -1
}
