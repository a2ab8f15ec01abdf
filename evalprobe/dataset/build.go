package dataset

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/tokenizer"

	"github.com/sourcegraph/conc/pool"
)

// builtExample carries an example with facts the report needs.
type builtExample struct {
	Example
	Truncated bool
}

// tokenizeExample encodes query and query+completion, truncates both to
// maxLength and masks the query positions of the labels.
func tokenizeExample(tok tokenizer.Tokenizer, query, completion string, maxLength int) (builtExample, error) {
	promptIDs, err := tok.Encode(query)
	if err != nil {
		return builtExample{}, fmt.Errorf("encoding query: %w", err)
	}
	fullIDs, err := tok.Encode(query + completion)
	if err != nil {
		return builtExample{}, fmt.Errorf("encoding full text: %w", err)
	}

	truncated := len(fullIDs) > maxLength
	promptIDs = truncate(promptIDs, maxLength)
	fullIDs = truncate(fullIDs, maxLength)

	labels := make([]int, len(fullIDs))
	copy(labels, fullIDs)
	masked := min(len(promptIDs), len(labels))
	for i := 0; i < masked; i++ {
		labels[i] = IgnoreIndex
	}

	mask := make([]int, len(fullIDs))
	for i := range mask {
		mask[i] = 1
	}

	return builtExample{
		Example: Example{
			InputIDs:      fullIDs,
			Labels:        labels,
			AttentionMask: mask,
		},
		Truncated: truncated,
	}, nil
}

func truncate(ids []int, n int) []int {
	if len(ids) > n {
		return ids[:n]
	}
	return ids
}

// buildExamples tokenizes pairs on a bounded pool. Output order matches input order.
func buildExamples(ctx context.Context, tok tokenizer.Tokenizer, pairs []pair, maxLength, workers int) ([]builtExample, error) {
	if workers <= 0 {
		// tokenization is CPU bound
		workers = min(max(runtime.NumCPU(), 1), 16)
	}

	out := make([]builtExample, len(pairs))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, pr := range pairs {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ex, err := tokenizeExample(tok, pr.Query, pr.Completion, maxLength)
			if err != nil {
				return fmt.Errorf("example %d: %w", i, err)
			}
			out[i] = ex
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
