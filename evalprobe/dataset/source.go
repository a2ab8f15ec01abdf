package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

// Source opens task data files by their path relative to the data directory.
// A missing file yields an error matching ErrDataNotFound.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// NewSource returns a GCS source for gs:// URLs and a local source otherwise.
func NewSource(dataDir, cacheDir string, log zerolog.Logger) (Source, error) {
	if strings.HasPrefix(dataDir, "gs://") {
		bucket, prefix, err := parseGCSURL(dataDir)
		if err != nil {
			return nil, err
		}
		return &GCSSource{Bucket: bucket, Prefix: prefix, CacheDir: cacheDir, log: log}, nil
	}
	return LocalSource(dataDir), nil
}

// LocalSource reads files below a local directory.
type LocalSource string

func (s LocalSource) String() string { return string(s) }

func (s LocalSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(string(s), filepath.FromSlash(name))
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDataNotFound, p)
		}
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	return f, nil
}

// objectOpener opens a GCS object for reading; replaced in tests.
type objectOpener func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// GCSSource downloads objects below gs://Bucket/Prefix into CacheDir and
// serves the local copy.
type GCSSource struct {
	Bucket   string
	Prefix   string
	CacheDir string

	open objectOpener
	log  zerolog.Logger
}

func (s *GCSSource) String() string { return "gs://" + path.Join(s.Bucket, s.Prefix) }

func (s *GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join(s.Prefix, name)
	gcsURL := "gs://" + s.Bucket + "/" + key
	dest := filepath.Join(s.CacheDir, s.Bucket, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory for %q: %w", gcsURL, err)
	}

	open := s.open
	if open == nil {
		open = openGCSObject
	}

	startedAt := time.Now()
	r, err := open(ctx, s.Bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDataNotFound, gcsURL)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	defer r.Close()

	n, err := writeToFile(r, dest)
	if err != nil {
		return nil, fmt.Errorf("downloading %q: %w", gcsURL, err)
	}
	s.log.Info().Str("source", gcsURL).Str("destination", dest).Int64("bytes", n).Dur("duration", time.Since(startedAt)).Msg("Downloaded data file from GCS")

	return os.Open(dest)
}

// gcsObject closes the client together with the reader.
type gcsObject struct {
	*storage.Reader
	client *storage.Client
}

func (o *gcsObject) Close() error {
	err := o.Reader.Close()
	if cerr := o.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCSObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	r, err := client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gcsObject{Reader: r, client: client}, nil
}

// writeToFile copies src into a temp file next to dest and renames it into place.
func writeToFile(src io.Reader, dest string) (int64, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(dest), "download")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	n, err := io.Copy(tempFile, src)
	if err != nil {
		tempFile.Close()
		return n, fmt.Errorf("downloading from upstream source: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), dest); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func parseGCSURL(u string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(u, "gs://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: GCS URL %q has no bucket", ErrInvalidData, u)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
