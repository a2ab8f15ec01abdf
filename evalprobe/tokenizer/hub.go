package tokenizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/rs/zerolog"
)

// fileFetcher is the part of a hub repo used to fetch tokenizer files.
type fileFetcher interface {
	DownloadInfo(forceDownload bool) error
	HasFile(fileName string) bool
	DownloadFile(fileName string) (string, error)
}

// newFetcher builds the hub client; replaced in tests.
var newFetcher = func(opts Options) fileFetcher {
	repo := hub.New(opts.Path).WithCacheDir(opts.HubCacheDir)
	if opts.AuthToken != "" {
		repo = repo.WithAuth(opts.AuthToken)
	}
	if opts.Revision != "" {
		repo = repo.WithRevision(opts.Revision)
	}
	return repo
}

// resolveFiles maps tokenizer file names to local paths. A local directory is
// used in place; anything else is a hub repo id whose tokenizer files are
// downloaded into the hub cache.
func resolveFiles(ctx context.Context, opts Options, log zerolog.Logger) (map[string]string, error) {
	files := make(map[string]string)

	if fi, err := os.Stat(opts.Path); err == nil && fi.IsDir() {
		for _, name := range knownFiles {
			p := filepath.Join(opts.Path, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				files[name] = p
			}
		}
		log.Debug().Str("dir", opts.Path).Int("files", len(files)).Msg("Resolved tokenizer files from local directory")
	} else {
		if opts.HubCacheDir != "" {
			if err := os.MkdirAll(opts.HubCacheDir, 0o755); err != nil {
				return nil, fmt.Errorf("creating hub cache directory %q: %w", opts.HubCacheDir, err)
			}
		}
		repo := newFetcher(opts)
		// HasFile reports false on any repo info failure; surface the cause first.
		if err := repo.DownloadInfo(false); err != nil {
			return nil, fmt.Errorf("fetching repo info for %s: %w", opts.Path, err)
		}
		for _, name := range knownFiles {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !repo.HasFile(name) {
				continue
			}
			p, err := repo.DownloadFile(name)
			if err != nil {
				return nil, fmt.Errorf("downloading %s from %s: %w", name, opts.Path, err)
			}
			files[name] = p
			log.Debug().Str("repo", opts.Path).Str("file", name).Str("path", p).Msg("Fetched tokenizer file")
		}
	}

	if _, ok := files[SentencePieceFile]; ok {
		return files, nil
	}
	if _, ok := files[TokenizerJSONFile]; ok {
		return files, nil
	}
	return nil, fmt.Errorf("%s: %w", opts.Path, ErrNoTokenizerFiles)
}
