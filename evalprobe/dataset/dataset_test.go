package dataset

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/evalprobe/evalprobe/chatformat"
	"github.com/ZanzyTHEbar/evalprobe/evalprobe/tokenizer/tokenizertest"
)

const alpacaFixture = `[
  {"instruction": "Say hi", "output": "hi", "generator": "gpt4", "dataset": "helpful_base"},
  {"instruction": "Add", "input": "1+1", "output": "2"}
]`

const bbhFixture = `{
  "boolean_expressions": "Evaluate the result.\n\nQ: True and False is\nA: False\n\nQ: not True is\nA: False\n\nQ: True or False is\nA: True"
}`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func testOptions(dir string) Options {
	return Options{
		Task:          "alpacaeval",
		DataDir:       dir,
		Tokenizer:     tokenizertest.New(),
		MaxLength:     2048,
		UseChatFormat: true,
		ChatFormat:    "tulu",
		Workers:       2,
		Logger:        zerolog.Nop(),
	}
}

func TestTokenizeExample(t *testing.T) {
	tok := tokenizertest.New()
	a, b, c, d := int('a')+10, int('b')+10, int('c')+10, int('d')+10

	tests := []struct {
		name      string
		maxLength int
		inputs    []int
		labels    []int
		truncated bool
	}{
		{"fits", 10, []int{1, a, b, c, d}, []int{IgnoreIndex, IgnoreIndex, IgnoreIndex, c, d}, false},
		{"exact", 5, []int{1, a, b, c, d}, []int{IgnoreIndex, IgnoreIndex, IgnoreIndex, c, d}, false},
		{"truncated completion", 4, []int{1, a, b, c}, []int{IgnoreIndex, IgnoreIndex, IgnoreIndex, c}, true},
		{"truncated prompt", 2, []int{1, a}, []int{IgnoreIndex, IgnoreIndex}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := tokenizeExample(tok, "ab", "cd", tt.maxLength)
			require.NoError(t, err)
			assert.Equal(t, tt.inputs, ex.InputIDs)
			assert.Equal(t, tt.labels, ex.Labels)
			assert.Equal(t, tt.truncated, ex.Truncated)
			require.Len(t, ex.AttentionMask, len(ex.InputIDs))
			for _, m := range ex.AttentionMask {
				assert.Equal(t, 1, m)
			}
		})
	}
}

func TestReplaceIgnored(t *testing.T) {
	labels := []int{IgnoreIndex, IgnoreIndex, 15, 16, IgnoreIndex, 2}

	got := ReplaceIgnored(labels, 2)

	assert.Equal(t, []int{2, 2, 15, 16, 2, 2}, got)
	// input is not modified
	assert.Equal(t, []int{IgnoreIndex, IgnoreIndex, 15, 16, IgnoreIndex, 2}, labels)

	for i := range labels {
		if labels[i] != IgnoreIndex {
			assert.Equal(t, labels[i], got[i], "position %d changed", i)
		}
	}
	assert.Empty(t, ReplaceIgnored(nil, 0))
}

func TestGetAlpacaEval(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, AlpacaEvalFiles[0], alpacaFixture)

	opts := testOptions(dir)
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "alpacaeval", ds.Task)
	assert.Equal(t, "tulu", ds.Format)
	require.Equal(t, 2, ds.Len())

	tok := opts.Tokenizer
	first := ds.At(0)
	assert.Equal(t, "<s><|user|>\nSay hi\n<|assistant|>\nhi", tok.Decode(first.InputIDs, false))

	promptIDs, _ := tok.Encode("<|user|>\nSay hi\n<|assistant|>\n")
	for i, l := range first.Labels {
		if i < len(promptIDs) {
			assert.Equal(t, IgnoreIndex, l, "position %d should be masked", i)
		} else {
			assert.Equal(t, first.InputIDs[i], l, "position %d should be supervised", i)
		}
	}
	assert.Equal(t, "hi", tok.Decode(ReplaceIgnored(first.Labels, 2), true))

	second := ds.At(1)
	assert.Equal(t, "<s><|user|>\nAdd\n\n1+1\n<|assistant|>\n2", tok.Decode(second.InputIDs, false))

	require.NotNil(t, ds.Report)
	assert.Equal(t, 2, ds.Report.Examples)
	assert.True(t, ds.Report.Truncated.IsEmpty())
	assert.True(t, ds.Report.Unsupervised.IsEmpty())
}

func TestGetAlpacaEvalAlternateLocation(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "alpaca_eval.json", alpacaFixture)

	ds, err := Get(context.Background(), testOptions(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestGetAlpacaEvalLlamaChat(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, AlpacaEvalFiles[0], alpacaFixture)

	opts := testOptions(dir)
	opts.ChatFormat = "llama-chat"
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "<s>[INST] Say hi [/INST] hi", opts.Tokenizer.Decode(ds.At(0).InputIDs, false))
}

func TestGetAlpacaEvalWithoutChatFormat(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, AlpacaEvalFiles[0], alpacaFixture)

	opts := testOptions(dir)
	opts.UseChatFormat = false
	opts.ChatFormat = "ignored"
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "none", ds.Format)
	assert.Equal(t, "<s>Say hi\n\nhi", opts.Tokenizer.Decode(ds.At(0).InputIDs, false))
}

func TestGetTruncatesToMaxLength(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, AlpacaEvalFiles[0], alpacaFixture)

	opts := testOptions(dir)
	opts.MaxLength = 8
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)

	for i := 0; i < ds.Len(); i++ {
		ex := ds.At(i)
		assert.Len(t, ex.InputIDs, 8)
		assert.Len(t, ex.Labels, 8)
		assert.Len(t, ex.AttentionMask, 8)
	}
	assert.Equal(t, uint64(2), ds.Report.Truncated.GetCardinality())
	assert.Equal(t, uint64(2), ds.Report.Unsupervised.GetCardinality())
}

func TestGetErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Get(context.Background(), testOptions(t.TempDir()))
		assert.ErrorIs(t, err, ErrDataNotFound)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.NotErrorIs(t, err, ErrInvalidData)
	})

	t.Run("malformed json", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], `[{"instruction": "x",`)
		_, err := Get(context.Background(), testOptions(dir))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("wrong shape", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], `{"instruction": "x"}`)
		_, err := Get(context.Background(), testOptions(dir))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("missing output", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], `[{"instruction": "x"}]`)
		_, err := Get(context.Background(), testOptions(dir))
		require.ErrorIs(t, err, ErrInvalidData)
		assert.Contains(t, err.Error(), `"output"`)
	})

	t.Run("empty output", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], `[{"instruction": "x", "output": ""}]`)
		_, err := Get(context.Background(), testOptions(dir))
		require.ErrorIs(t, err, ErrInvalidData)
		assert.Contains(t, err.Error(), `"output"`)
	})

	t.Run("missing instruction", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], `[{"prompt": "x", "output": "y"}]`)
		_, err := Get(context.Background(), testOptions(dir))
		require.ErrorIs(t, err, ErrInvalidData)
		assert.Contains(t, err.Error(), `"instruction"`)
	})

	t.Run("empty dataset", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], `[]`)
		_, err := Get(context.Background(), testOptions(dir))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("unknown chat format", func(t *testing.T) {
		opts := testOptions(t.TempDir())
		opts.ChatFormat = "chatml"
		_, err := Get(context.Background(), opts)
		assert.ErrorIs(t, err, ErrInvalidData)
		assert.ErrorIs(t, err, chatformat.ErrUnknownFormat)
	})

	t.Run("unknown task", func(t *testing.T) {
		opts := testOptions(t.TempDir())
		opts.Task = "mmlu"
		_, err := Get(context.Background(), opts)
		assert.ErrorIs(t, err, ErrUnknownTask)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("bad max length", func(t *testing.T) {
		opts := testOptions(t.TempDir())
		opts.MaxLength = 0
		_, err := Get(context.Background(), opts)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("cancelled context", func(t *testing.T) {
		dir := t.TempDir()
		writeFixture(t, dir, AlpacaEvalFiles[0], alpacaFixture)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Get(ctx, testOptions(dir))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGetBBH(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, BBHFile, bbhFixture)

	opts := testOptions(dir)
	opts.Task = "bbh"
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	wantFirst := "<s><|user|>\nEvaluate the result.\n\n" +
		"Q: not True is\nA: False\n\nQ: True or False is\nA: True\n\n" +
		"Q: True and False is\n<|assistant|>\nA: False"
	assert.Equal(t, wantFirst, opts.Tokenizer.Decode(ds.At(0).InputIDs, false))
	assert.Equal(t, " False", opts.Tokenizer.Decode(ReplaceIgnored(ds.At(0).Labels, 2), true))
	assert.Equal(t, " True", opts.Tokenizer.Decode(ReplaceIgnored(ds.At(2).Labels, 2), true))
}

func TestGetBBHWithoutChatFormat(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, BBHFile, bbhFixture)

	opts := testOptions(dir)
	opts.Task = "bbh"
	opts.UseChatFormat = false
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	want := "<s>Evaluate the result.\n\n" +
		"Q: not True is\nA: False\n\nQ: True or False is\nA: True\n\n" +
		"Q: True and False is\nA: False"
	assert.Equal(t, want, opts.Tokenizer.Decode(ds.At(0).InputIDs, false))
	assert.Equal(t, " False", opts.Tokenizer.Decode(ReplaceIgnored(ds.At(0).Labels, 2), true))
}

func TestGetBBHMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, BBHFile, `{"t": "only one block"}`)

	opts := testOptions(dir)
	opts.Task = "bbh"
	_, err := Get(context.Background(), opts)
	assert.ErrorIs(t, err, ErrInvalidData)

	writeFixture(t, dir, BBHFile, `{"t": "desc\n\nQ: a\n\nQ: b\nA: x\n\nQ: c\nA: y"}`)
	_, err = Get(context.Background(), opts)
	assert.ErrorIs(t, err, ErrInvalidData)

	// two answer markers in one demonstration
	writeFixture(t, dir, BBHFile, `{"t": "desc\n\nQ: a\nA: 1\nA: 2\n\nQ: b\nA: x\n\nQ: c\nA: y"}`)
	_, err = Get(context.Background(), opts)
	require.ErrorIs(t, err, ErrInvalidData)
	assert.Contains(t, err.Error(), "found 2")
}

func TestTasks(t *testing.T) {
	assert.Equal(t, []string{"alpacaeval", "bbh"}, Tasks())
}

func TestParseGCSURL(t *testing.T) {
	bucket, prefix, err := parseGCSURL("gs://my-bucket/less/data/")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "less/data", prefix)

	bucket, prefix, err = parseGCSURL("gs://my-bucket")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "", prefix)

	_, _, err = parseGCSURL("gs:///data")
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource("gs://bucket/data", t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/data", src.String())

	src, err = NewSource("../data", "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, LocalSource("../data"), src)
}

func TestGCSSourceDownloadsIntoCache(t *testing.T) {
	cache := t.TempDir()
	var gotBucket, gotKey string
	src := &GCSSource{
		Bucket:   "bucket",
		Prefix:   "data",
		CacheDir: cache,
		log:      zerolog.Nop(),
		open: func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
			gotBucket, gotKey = bucket, key
			if key != "data/"+AlpacaEvalFiles[0] {
				return nil, storage.ErrObjectNotExist
			}
			return io.NopCloser(strings.NewReader(alpacaFixture)), nil
		},
	}

	opts := testOptions("")
	opts.Source = src
	ds, err := Get(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "bucket", gotBucket)
	assert.Equal(t, "data/"+AlpacaEvalFiles[0], gotKey)

	cached, err := os.ReadFile(filepath.Join(cache, "bucket", "data", filepath.FromSlash(AlpacaEvalFiles[0])))
	require.NoError(t, err)
	assert.Equal(t, alpacaFixture, string(cached))
}

func TestGCSSourceMissingObject(t *testing.T) {
	src := &GCSSource{
		Bucket:   "bucket",
		CacheDir: t.TempDir(),
		log:      zerolog.Nop(),
		open: func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
			return nil, storage.ErrObjectNotExist
		},
	}

	opts := testOptions("")
	opts.Source = src
	_, err := Get(context.Background(), opts)
	assert.ErrorIs(t, err, ErrDataNotFound)
}

func TestReportStats(t *testing.T) {
	built := []builtExample{
		{Example: Example{InputIDs: make([]int, 4), Labels: []int{IgnoreIndex, IgnoreIndex, 5, 6}}},
		{Example: Example{InputIDs: make([]int, 6), Labels: []int{IgnoreIndex, 1, 2, 3, 4, 5}}, Truncated: true},
		{Example: Example{InputIDs: make([]int, 2), Labels: []int{IgnoreIndex, IgnoreIndex}}},
	}

	r := newReport(built)
	assert.Equal(t, 3, r.Examples)
	assert.InDelta(t, 4.0, r.Input.Mean, 1e-9)
	assert.Equal(t, 2, r.Input.Min)
	assert.Equal(t, 6, r.Input.Max)
	assert.InDelta(t, 2.0, r.Input.StdDev, 1e-9)
	assert.Equal(t, 0, r.Supervised.Min)
	assert.Equal(t, 5, r.Supervised.Max)
	assert.Equal(t, []uint32{1}, r.Truncated.ToArray())
	assert.Equal(t, []uint32{2}, r.Unsupervised.ToArray())

	empty := newReport(nil)
	assert.Equal(t, LengthStats{}, empty.Input)
}
