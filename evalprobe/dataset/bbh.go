package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/chatformat"
)

// BBHFile holds the three-shot BIG-Bench-Hard prompts keyed by task.
const BBHFile = "eval/bbh/bbh-three-shot.json"

const bbhAnswerSep = "\nA:"

// loadBBH turns each task's three demonstrations into three examples: every
// demonstration is the target once, with the other two as in-context examples.
func loadBBH(ctx context.Context, src Source, format chatformat.Format) ([]pair, error) {
	rc, name, err := openFirst(ctx, src, []string{BBHFile})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var prompts map[string]string
	if err := json.NewDecoder(rc).Decode(&prompts); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidData, name, err)
	}

	taskNames := make([]string, 0, len(prompts))
	for t := range prompts {
		taskNames = append(taskNames, t)
	}
	sort.Strings(taskNames)

	var pairs []pair
	for _, task := range taskNames {
		blocks := strings.Split(prompts[task], "\n\n")
		if len(blocks) < 3 {
			return nil, fmt.Errorf("%w: %s task %q has %d blocks, want at least 3", ErrInvalidData, name, task, len(blocks))
		}
		exes := blocks[len(blocks)-3:]
		taskPrompt := strings.TrimSpace(strings.Join(blocks[:len(blocks)-3], "\n\n"))

		for i, target := range exes {
			others := make([]string, 0, 2)
			others = append(others, exes[:i]...)
			others = append(others, exes[i+1:]...)

			icl, err := formICL(others)
			if err != nil {
				return nil, fmt.Errorf("%w: %s task %q: %v", ErrInvalidData, name, task, err)
			}
			question, answer, err := splitAnswer(target)
			if err != nil {
				return nil, fmt.Errorf("%w: %s task %q example %d: %v", ErrInvalidData, name, task, i, err)
			}

			user := taskPrompt + "\n\n" + icl + question
			var query string
			if format.Name() == chatformat.None {
				query = user + bbhAnswerSep
			} else {
				query = format.Prompt(user)
				if !strings.HasSuffix(query, "\n") {
					query += " "
				}
				query += "A:"
			}
			pairs = append(pairs, pair{Query: query, Completion: answer})
		}
	}
	return pairs, nil
}

func formICL(exes []string) (string, error) {
	var sb strings.Builder
	for _, ex := range exes {
		question, answer, err := splitAnswer(ex)
		if err != nil {
			return "", fmt.Errorf("demonstration: %w", err)
		}
		sb.WriteString(question)
		sb.WriteString(bbhAnswerSep)
		sb.WriteString(answer)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// splitAnswer splits a demonstration at its single answer marker.
func splitAnswer(ex string) (question, answer string, err error) {
	if n := strings.Count(ex, bbhAnswerSep); n != 1 {
		return "", "", fmt.Errorf("want exactly one %q, found %d", bbhAnswerSep, n)
	}
	question, answer, _ = strings.Cut(ex, bbhAnswerSep)
	return question, answer, nil
}
