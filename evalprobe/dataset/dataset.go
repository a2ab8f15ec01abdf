// Package dataset builds tokenized evaluation datasets with loss masks.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/chatformat"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/tokenizer"

	"github.com/rs/zerolog"
)

// IgnoreIndex marks label positions excluded from the loss.
const IgnoreIndex = -100

var (
	// ErrDataNotFound is returned when no data file exists for a task. It also matches fs.ErrNotExist.
	ErrDataNotFound = fmt.Errorf("data file not found: %w", fs.ErrNotExist)
	// ErrInvalidData covers malformed files, missing fields and bad settings.
	ErrInvalidData = errors.New("invalid data")
	// ErrUnknownTask is an ErrInvalidData for unregistered task names.
	ErrUnknownTask = fmt.Errorf("%w: unknown task", ErrInvalidData)
)

// Example is one tokenized query/completion pair.
type Example struct {
	InputIDs      []int
	Labels        []int
	AttentionMask []int
}

// Dataset is an indexable collection of examples for one task.
type Dataset struct {
	Task     string
	Format   string
	Examples []Example
	Report   *Report
}

func (d *Dataset) Len() int { return len(d.Examples) }

func (d *Dataset) At(i int) Example { return d.Examples[i] }

// Options controls dataset construction.
type Options struct {
	Task          string
	DataDir       string
	Tokenizer     tokenizer.Tokenizer
	MaxLength     int
	UseChatFormat bool
	ChatFormat    string
	// Workers bounds parallel tokenization; <= 0 picks a CPU-based default.
	Workers int
	// CacheDir receives downloaded remote data files.
	CacheDir string
	// Source overrides the source derived from DataDir.
	Source Source
	Logger zerolog.Logger
}

// pair is an untokenized query and its completion.
type pair struct {
	Query      string
	Completion string
}

// taskLoader reads a task's raw data and renders it into pairs.
type taskLoader func(ctx context.Context, src Source, format chatformat.Format) ([]pair, error)

var tasks = map[string]taskLoader{
	"alpacaeval": loadAlpacaEval,
	"bbh":        loadBBH,
}

// Tasks lists registered task names in sorted order.
func Tasks() []string {
	out := make([]string, 0, len(tasks))
	for n := range tasks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Get builds the dataset for opts.Task.
func Get(ctx context.Context, opts Options) (*Dataset, error) {
	start := time.Now()
	if opts.Tokenizer == nil {
		return nil, fmt.Errorf("dataset: tokenizer is required")
	}
	if opts.MaxLength <= 0 {
		return nil, fmt.Errorf("%w: max length must be positive, got %d", ErrInvalidData, opts.MaxLength)
	}

	name := strings.ToLower(strings.TrimSpace(opts.Task))
	load, ok := tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownTask, opts.Task, strings.Join(Tasks(), ", "))
	}

	format, err := chatformat.Resolve(opts.UseChatFormat, opts.ChatFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	log := opts.Logger.With().Str("task", name).Str("chat_format", format.Name()).Logger()

	src := opts.Source
	if src == nil {
		src, err = NewSource(opts.DataDir, opts.CacheDir, log)
		if err != nil {
			return nil, err
		}
	}

	pairs, err := load(ctx, src, format)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: task %s has no examples in %s", ErrInvalidData, name, src)
	}

	built, err := buildExamples(ctx, opts.Tokenizer, pairs, opts.MaxLength, opts.Workers)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Task:     name,
		Format:   format.Name(),
		Examples: make([]Example, len(built)),
	}
	for i, b := range built {
		ds.Examples[i] = b.Example
	}
	ds.Report = newReport(built)

	log.Info().
		Int("examples", ds.Len()).
		Uint64("truncated", ds.Report.Truncated.GetCardinality()).
		Uint64("unsupervised", ds.Report.Unsupervised.GetCardinality()).
		Dur("duration", time.Since(start)).
		Msg("Dataset built")
	return ds, nil
}

// ReplaceIgnored returns a copy of labels with every IgnoreIndex replaced by padID.
func ReplaceIgnored(labels []int, padID int) []int {
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == IgnoreIndex {
			out[i] = padID
		} else {
			out[i] = l
		}
	}
	return out
}
