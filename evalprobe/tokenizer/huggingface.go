package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HuggingFace wraps sugarme/tokenizer loaded from a tokenizer.json file.
type HuggingFace struct {
	t       *tk.Tokenizer
	special SpecialTokens
	addBOS  bool
}

// NewHuggingFace loads tokenizer.json and resolves the special tokens named
// in cfg through the vocabulary (added tokens included).
func NewHuggingFace(tokenizerJSON string, cfg *modelConfig) (*HuggingFace, error) {
	t, err := pretrained.FromFile(tokenizerJSON)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w: %v", tokenizerJSON, ErrUnsupported, err)
	}
	if cfg == nil {
		cfg = &modelConfig{}
	}
	h := &HuggingFace{t: t, addBOS: cfg.addBOS()}
	h.special.BOS = h.lookup(string(cfg.BOS))
	h.special.EOS = h.lookup(string(cfg.EOS))
	h.special.UNK = h.lookup(string(cfg.UNK))
	h.special.Pad = h.lookup(string(cfg.Pad))
	return h, nil
}

// lookup returns nil when content is empty or unknown to the vocabulary.
func (h *HuggingFace) lookup(content string) *SpecialToken {
	if content == "" {
		return nil
	}
	id, ok := h.t.TokenToId(content)
	if !ok {
		return nil
	}
	return &SpecialToken{Content: content, ID: id}
}

func (h *HuggingFace) Name() string { return "huggingface" }

func (h *HuggingFace) VocabSize() int { return h.t.GetVocabSize(true) }

func (h *HuggingFace) Special() *SpecialTokens { return &h.special }

// Encode runs the full pipeline including the post-processor, which adds BOS
// for Llama-style tokenizer.json files. BOS is added here only when the
// post-processor did not.
func (h *HuggingFace) Encode(text string) ([]int, error) {
	enc, err := h.t.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	ids := enc.GetIds()
	if h.addBOS && h.special.BOS != nil && (len(ids) == 0 || ids[0] != h.special.BOS.ID) {
		ids = append([]int{h.special.BOS.ID}, ids...)
	}
	return ids, nil
}

func (h *HuggingFace) Decode(ids []int, skipSpecialTokens bool) string {
	return h.t.Decode(ids, skipSpecialTokens)
}
