package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Backend names accepted by Options.Backend.
const (
	BackendAuto          = "auto"
	BackendSentencePiece = "sentencepiece"
	BackendHuggingFace   = "huggingface"
)

// Options selects and locates a tokenizer.
type Options struct {
	// Path is a local model directory or a hub repo id.
	Path        string
	Backend     string
	HubCacheDir string
	AuthToken   string
	Revision    string
	Logger      zerolog.Logger
}

// Load resolves the model files and builds the tokenizer backend. With the
// auto backend tokenizer.model wins over tokenizer.json.
func Load(ctx context.Context, opts Options) (Tokenizer, error) {
	start := time.Now()
	log := opts.Logger.With().Str("model", opts.Path).Logger()

	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendAuto
	}
	switch backend {
	case BackendAuto, BackendSentencePiece, BackendHuggingFace:
	default:
		return nil, fmt.Errorf("backend %q: %w", opts.Backend, ErrUnsupported)
	}

	files, err := resolveFiles(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	cfg, err := readModelConfig(files)
	if err != nil {
		return nil, err
	}

	spPath, hasSP := files[SentencePieceFile]
	jsonPath, hasJSON := files[TokenizerJSONFile]

	var t Tokenizer
	switch {
	case (backend == BackendAuto || backend == BackendSentencePiece) && hasSP:
		t, err = NewSentencePiece(spPath, cfg)
	case (backend == BackendAuto || backend == BackendHuggingFace) && hasJSON:
		t, err = NewHuggingFace(jsonPath, cfg)
	default:
		return nil, fmt.Errorf("%s backend for %s: %w", backend, opts.Path, ErrNoTokenizerFiles)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("backend", t.Name()).
		Int("vocab_size", t.VocabSize()).
		Bool("has_pad", t.Special().Pad != nil).
		Float64("model_max_length", cfg.ModelMaxLength).
		Dur("duration", time.Since(start)).
		Msg("Tokenizer loaded")
	return t, nil
}
