// Package loader batches a dataset into rectangular, padded batches.
package loader

import (
	"errors"
	"fmt"
	"iter"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/dataset"
)

// Batch field names.
const (
	FieldInputIDs      = "input_ids"
	FieldLabels        = "labels"
	FieldAttentionMask = "attention_mask"
)

// Padding sides.
const (
	PadRight = "right"
	PadLeft  = "left"
)

var (
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrUnknownField     = errors.New("unknown batch field")
)

// Batch holds rows of equal length for every field.
type Batch struct {
	InputIDs      [][]int
	Labels        [][]int
	AttentionMask [][]int
}

// Field returns the rows of the named field.
func (b *Batch) Field(name string) ([][]int, error) {
	switch name {
	case FieldInputIDs:
		return b.InputIDs, nil
	case FieldLabels:
		return b.Labels, nil
	case FieldAttentionMask:
		return b.AttentionMask, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Shape returns [rows, columns] of rows.
func Shape(rows [][]int) [2]int {
	if len(rows) == 0 {
		return [2]int{0, 0}
	}
	return [2]int{len(rows), len(rows[0])}
}

// Options controls batching and collation.
type Options struct {
	BatchSize int
	// PadID fills input_ids; labels use dataset.IgnoreIndex, attention_mask 0.
	PadID       int
	PaddingSide string
}

// DataLoader walks a dataset in order, without shuffling. The last batch may be short.
type DataLoader struct {
	ds   *dataset.Dataset
	opts Options
}

// New validates opts and returns a loader over ds.
func New(ds *dataset.Dataset, opts Options) (*DataLoader, error) {
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)
	}
	switch opts.PaddingSide {
	case "":
		opts.PaddingSide = PadRight
	case PadRight, PadLeft:
	default:
		return nil, fmt.Errorf("unknown padding side %q", opts.PaddingSide)
	}
	return &DataLoader{ds: ds, opts: opts}, nil
}

// Len returns the number of batches.
func (l *DataLoader) Len() int {
	return (l.ds.Len() + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// All yields batches with their index.
func (l *DataLoader) All() iter.Seq2[int, *Batch] {
	return func(yield func(int, *Batch) bool) {
		for i := 0; i < l.Len(); i++ {
			start := i * l.opts.BatchSize
			end := min(start+l.opts.BatchSize, l.ds.Len())
			if !yield(i, l.collate(l.ds.Examples[start:end])) {
				return
			}
		}
	}
}

// collate pads every field to the longest row of the batch.
func (l *DataLoader) collate(examples []dataset.Example) *Batch {
	longest := 0
	for _, ex := range examples {
		longest = max(longest, len(ex.InputIDs), len(ex.Labels), len(ex.AttentionMask))
	}

	b := &Batch{
		InputIDs:      make([][]int, len(examples)),
		Labels:        make([][]int, len(examples)),
		AttentionMask: make([][]int, len(examples)),
	}
	left := l.opts.PaddingSide == PadLeft
	for i, ex := range examples {
		b.InputIDs[i] = pad(ex.InputIDs, longest, l.opts.PadID, left)
		b.Labels[i] = pad(ex.Labels, longest, dataset.IgnoreIndex, left)
		b.AttentionMask[i] = pad(ex.AttentionMask, longest, 0, left)
	}
	return b
}

// pad returns a fresh row of length n holding row and value in the rest.
func pad(row []int, n, value int, left bool) []int {
	out := make([]int, n)
	fill := n - len(row)
	if left {
		for i := 0; i < fill; i++ {
			out[i] = value
		}
		copy(out[fill:], row)
		return out
	}
	copy(out, row)
	for i := len(row); i < n; i++ {
		out[i] = value
	}
	return out
}
