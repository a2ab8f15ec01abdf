package tokenizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Tokenizer file names as laid out in a Hugging Face model repo.
const (
	SentencePieceFile     = "tokenizer.model"
	TokenizerJSONFile     = "tokenizer.json"
	TokenizerConfigFile   = "tokenizer_config.json"
	SpecialTokensMapFile  = "special_tokens_map.json"
	defaultBOSContent     = "<s>"
	defaultEOSContent     = "</s>"
	defaultUNKContent     = "<unk>"
	defaultModelMaxLength = 0
)

// knownFiles lists tokenizer files in lookup order.
var knownFiles = []string{SentencePieceFile, TokenizerJSONFile, TokenizerConfigFile, SpecialTokensMapFile}

// tokenField accepts both `"<s>"` and `{"content": "<s>", ...}`; null stays empty.
type tokenField string

func (f *tokenField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = tokenField(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*f = tokenField(obj.Content)
	return nil
}

// modelConfig is the subset of tokenizer_config.json / special_tokens_map.json we use.
type modelConfig struct {
	BOS            tokenField `json:"bos_token"`
	EOS            tokenField `json:"eos_token"`
	UNK            tokenField `json:"unk_token"`
	Pad            tokenField `json:"pad_token"`
	AddBOSToken    *bool      `json:"add_bos_token"`
	AddEOSToken    *bool      `json:"add_eos_token"`
	ModelMaxLength float64    `json:"model_max_length"`
}

// addBOS defaults to true, matching Llama-family tokenizers.
func (c *modelConfig) addBOS() bool {
	return c.AddBOSToken == nil || *c.AddBOSToken
}

func (c *modelConfig) addEOS() bool {
	return c.AddEOSToken != nil && *c.AddEOSToken
}

// merge fills unset fields of c from o.
func (c *modelConfig) merge(o *modelConfig) {
	if c.BOS == "" {
		c.BOS = o.BOS
	}
	if c.EOS == "" {
		c.EOS = o.EOS
	}
	if c.UNK == "" {
		c.UNK = o.UNK
	}
	if c.Pad == "" {
		c.Pad = o.Pad
	}
	if c.AddBOSToken == nil {
		c.AddBOSToken = o.AddBOSToken
	}
	if c.AddEOSToken == nil {
		c.AddEOSToken = o.AddEOSToken
	}
	if c.ModelMaxLength == defaultModelMaxLength {
		c.ModelMaxLength = o.ModelMaxLength
	}
}

// readModelConfig reads tokenizer_config.json, then special_tokens_map.json for
// anything it leaves unset. Both files are optional.
func readModelConfig(files map[string]string) (*modelConfig, error) {
	cfg := &modelConfig{}
	for _, name := range []string{TokenizerConfigFile, SpecialTokensMapFile} {
		path, ok := files[name]
		if !ok {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var part modelConfig
		if err := json.Unmarshal(b, &part); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		cfg.merge(&part)
	}
	return cfg, nil
}
