package tokenizer

import (
	"fmt"
	"strings"

	sentencepiece "github.com/eliben/go-sentencepiece"
)

// pieceCodec is the part of the sentencepiece processor we rely on.
type pieceCodec interface {
	Encode(text string) []sentencepiece.Token
	Decode(ids []int) string
}

// SentencePiece wraps a SentencePiece model (tokenizer.model), the native
// format of Llama-family checkpoints.
type SentencePiece struct {
	proc    pieceCodec
	special SpecialTokens
	vocab   int
	addBOS  bool
	addEOS  bool
}

// NewSentencePiece loads a tokenizer.model file. Special token ids come from
// the model proto; their contents from cfg when present.
func NewSentencePiece(modelPath string, cfg *modelConfig) (*SentencePiece, error) {
	proc, err := sentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading sentencepiece model %s: %w", modelPath, err)
	}
	if cfg == nil {
		cfg = &modelConfig{}
	}
	info := proc.ModelInfo()

	sp := &SentencePiece{
		proc:   proc,
		vocab:  info.VocabularySize,
		addBOS: cfg.addBOS(),
		addEOS: cfg.addEOS(),
	}
	sp.special.BOS = specialFromID(info.BeginningOfSentenceID, string(cfg.BOS), defaultBOSContent)
	sp.special.EOS = specialFromID(info.EndOfSentenceID, string(cfg.EOS), defaultEOSContent)
	sp.special.UNK = specialFromID(info.UnknownID, string(cfg.UNK), defaultUNKContent)
	// Llama-2 stores pad_id = -1: no pad token until EnsurePadToken patches it.
	sp.special.Pad = specialFromID(info.PadID, string(cfg.Pad), "<pad>")
	return sp, nil
}

// specialFromID returns nil for negative ids.
func specialFromID(id int, content, fallback string) *SpecialToken {
	if id < 0 {
		return nil
	}
	if content == "" {
		content = fallback
	}
	return &SpecialToken{Content: content, ID: id}
}

func (s *SentencePiece) Name() string { return "sentencepiece" }

func (s *SentencePiece) VocabSize() int { return s.vocab }

func (s *SentencePiece) Special() *SpecialTokens { return &s.special }

func (s *SentencePiece) Encode(text string) ([]int, error) {
	toks := s.proc.Encode(text)
	ids := make([]int, 0, len(toks)+2)
	if s.addBOS && s.special.BOS != nil {
		ids = append(ids, s.special.BOS.ID)
	}
	for _, t := range toks {
		ids = append(ids, t.ID)
	}
	if s.addEOS && s.special.EOS != nil {
		ids = append(ids, s.special.EOS.ID)
	}
	return ids, nil
}

// Decode decodes runs of ordinary ids with the processor and renders special
// ids by their content, which the processor would otherwise drop.
func (s *SentencePiece) Decode(ids []int, skipSpecialTokens bool) string {
	var sb strings.Builder
	run := make([]int, 0, len(ids))
	flush := func() {
		if len(run) > 0 {
			sb.WriteString(s.proc.Decode(run))
			run = run[:0]
		}
	}
	for _, id := range ids {
		tok, special := s.special.IsSpecial(id)
		if !special {
			run = append(run, id)
			continue
		}
		flush()
		if !skipSpecialTokens {
			sb.WriteString(tok.Content)
		}
	}
	flush()
	return sb.String()
}
