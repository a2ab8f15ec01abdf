package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/chatformat"
)

// AlpacaEvalFiles are the accepted locations of the AlpacaEval file, in lookup order.
var AlpacaEvalFiles = []string{
	"eval/alpaca_eval/alpaca_eval.json",
	"eval/alpacaeval/alpaca_eval.json",
	"alpaca_eval.json",
}

// alpacaRecord is one AlpacaEval entry. Extra fields (generator, dataset) are ignored.
type alpacaRecord struct {
	Instruction *string `json:"instruction"`
	Input       string  `json:"input"`
	Output      *string `json:"output"`
}

func loadAlpacaEval(ctx context.Context, src Source, format chatformat.Format) ([]pair, error) {
	rc, name, err := openFirst(ctx, src, AlpacaEvalFiles)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var records []alpacaRecord
	if err := json.NewDecoder(rc).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidData, name, err)
	}

	pairs := make([]pair, 0, len(records))
	for i, r := range records {
		if r.Instruction == nil || strings.TrimSpace(*r.Instruction) == "" {
			return nil, fmt.Errorf("%w: %s record %d: missing \"instruction\"", ErrInvalidData, name, i)
		}
		if r.Output == nil || strings.TrimSpace(*r.Output) == "" {
			return nil, fmt.Errorf("%w: %s record %d: missing \"output\"", ErrInvalidData, name, i)
		}
		user := *r.Instruction
		if in := strings.TrimSpace(r.Input); in != "" {
			user += "\n\n" + in
		}
		pairs = append(pairs, pair{
			Query:      format.Prompt(user),
			Completion: format.Completion(*r.Output),
		})
	}
	return pairs, nil
}

// openFirst opens the first of names that exists in src.
func openFirst(ctx context.Context, src Source, names []string) (io.ReadCloser, string, error) {
	for _, name := range names {
		rc, err := src.Open(ctx, name)
		if err == nil {
			return rc, name, nil
		}
		if !errors.Is(err, ErrDataNotFound) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("%w: none of %s under %s", ErrDataNotFound, strings.Join(names, ", "), src)
}
