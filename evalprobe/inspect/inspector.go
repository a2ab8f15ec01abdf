// Package inspect runs the one-shot inspection of a tokenized evaluation dataset.
package inspect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/config"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/dataset"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/loader"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/ports"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/tokenizer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxListedIndexes caps index lists in the dataset report.
const maxListedIndexes = 10

// TokenizerLoader builds the tokenizer for a run.
type TokenizerLoader func(ctx context.Context, opts tokenizer.Options) (tokenizer.Tokenizer, error)

// Inspector prints decoded batches of a dataset built from the configuration.
type Inspector struct {
	cfg           *config.Config
	out           ports.Reporter
	log           zerolog.Logger
	loadTokenizer TokenizerLoader
}

func New(cfg *config.Config, out ports.Reporter, log zerolog.Logger) *Inspector {
	return &Inspector{cfg: cfg, out: out, log: log, loadTokenizer: tokenizer.Load}
}

// WithTokenizerLoader replaces the tokenizer loader.
func (in *Inspector) WithTokenizerLoader(f TokenizerLoader) *Inspector {
	in.loadTokenizer = f
	return in
}

// Run loads the tokenizer, then builds, batches and prints the dataset.
// Tokenizer failures are returned. Data failures are reported on the console
// and swallowed, unless strict mode turns them into a *ReportedError.
func (in *Inspector) Run(ctx context.Context) error {
	runID := uuid.New()
	start := time.Now()
	log := in.log.With().Str("run_id", runID.String()).Logger()
	log.Info().Str("model", in.cfg.Model.Path).Str("task", in.cfg.Data.Task).Msg("Starting inspection run")

	tok, err := in.setupTokenizer(ctx, log)
	if err != nil {
		return fmt.Errorf("loading tokenizer %s: %w", in.cfg.Model.Path, err)
	}
	in.out.Output("Tokenizer loaded.")

	err = in.inspect(ctx, tok, log)
	sev := Classify(err)
	log.Info().Str("outcome", sev.String()).Dur("duration", time.Since(start)).Msg("Inspection run finished")
	if err == nil {
		return nil
	}

	log.Error().Err(err).Str("severity", sev.String()).Msg("Inspection failed")
	in.out.Error(sev.Hint(), err)
	if in.cfg.Inspect.Strict {
		return &ReportedError{Severity: sev, Err: err}
	}
	return nil
}

func (in *Inspector) setupTokenizer(ctx context.Context, log zerolog.Logger) (tokenizer.Tokenizer, error) {
	tok, err := in.loadTokenizer(ctx, tokenizer.Options{
		Path:        in.cfg.Model.Path,
		Backend:     in.cfg.Model.Backend,
		HubCacheDir: in.cfg.Model.HubCacheDir,
		AuthToken:   in.cfg.Model.AuthToken,
		Revision:    in.cfg.Model.Revision,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	patched, err := tokenizer.EnsurePadToken(tok)
	if err != nil {
		return nil, err
	}
	if patched {
		log.Info().Str("pad_token", tok.Special().Pad.Content).Int("pad_token_id", tok.Special().Pad.ID).Msg("Pad token unset, using eos token")
	}
	return tok, nil
}

func (in *Inspector) inspect(ctx context.Context, tok tokenizer.Tokenizer, log zerolog.Logger) error {
	ds, err := dataset.Get(ctx, dataset.Options{
		Task:          in.cfg.Data.Task,
		DataDir:       in.cfg.Data.Dir,
		Tokenizer:     tok,
		MaxLength:     in.cfg.Data.MaxLength,
		UseChatFormat: in.cfg.Data.UseChatFormat,
		ChatFormat:    in.cfg.Data.ChatFormat,
		Workers:       in.cfg.Data.Workers,
		CacheDir:      in.cfg.Data.CacheDir,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	in.out.Output(fmt.Sprintf("Dataset loaded successfully. Number of examples: %d", ds.Len()))
	if in.cfg.Inspect.Report && ds.Report != nil {
		in.printReport(ds.Report)
	}

	padID := tokenizer.PadID(tok)
	dl, err := loader.New(ds, loader.Options{
		BatchSize:   in.cfg.Loader.BatchSize,
		PadID:       padID,
		PaddingSide: in.cfg.Loader.PaddingSide,
	})
	if err != nil {
		return err
	}
	in.out.Output("Dataloader created.")

	limit := in.cfg.Inspect.Limit
	skip := in.cfg.Inspect.SkipSpecialTokens
	in.out.Output(fmt.Sprintf("\n--- Inspecting first %d examples ---", limit))
	for i, batch := range dl.All() {
		if i >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		in.out.Output(fmt.Sprintf("\n--- Example %d ---", i+1))

		inputText := tok.Decode(batch.InputIDs[0], skip)
		in.out.Output(fmt.Sprintf("** Decoded Input (%s):**\n%s", formatShape(loader.Shape(batch.InputIDs)), inputText))

		labels := dataset.ReplaceIgnored(batch.Labels[0], padID)
		labelText := tok.Decode(labels, skip)
		in.out.Output(fmt.Sprintf("** Decoded Labels (%s):**\n%s", formatShape(loader.Shape(batch.Labels)), labelText))

		in.out.Output(fmt.Sprintf("** Attention Mask Length:** %d", len(batch.AttentionMask[0])))
	}
	return nil
}

func (in *Inspector) printReport(r *dataset.Report) {
	in.out.Output(fmt.Sprintf("Input length: %s", formatStats(r.Input)))
	in.out.Output(fmt.Sprintf("Supervised tokens: %s", formatStats(r.Supervised)))
	if !r.Truncated.IsEmpty() {
		in.out.Warning(fmt.Sprintf("%d examples truncated to max length: %s",
			r.Truncated.GetCardinality(), formatIndexes(r.Truncated.ToArray())))
	}
	if !r.Unsupervised.IsEmpty() {
		in.out.Warning(fmt.Sprintf("%d examples have no supervised labels: %s",
			r.Unsupervised.GetCardinality(), formatIndexes(r.Unsupervised.ToArray())))
	}
}

func formatShape(s [2]int) string {
	return fmt.Sprintf("[%d, %d]", s[0], s[1])
}

func formatStats(s dataset.LengthStats) string {
	return fmt.Sprintf("mean=%.1f std=%.1f min=%d p50=%.0f p95=%.0f max=%d",
		s.Mean, s.StdDev, s.Min, s.P50, s.P95, s.Max)
}

func formatIndexes(idx []uint32) string {
	parts := make([]string, 0, min(len(idx), maxListedIndexes)+1)
	for i, v := range idx {
		if i == maxListedIndexes {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
