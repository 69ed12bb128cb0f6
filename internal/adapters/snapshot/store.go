// Package snapshot keeps gate images on the local filesystem.
//
// Uploads are first staged under a random name. The decision engine then
// either keeps a staged image under its final {uid}_{ms}.jpg name or discards
// it, so only images of admitted taps are ever served.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hallpass/pkg/logger"
)

// URLPrefix is the path kept images are served under.
const URLPrefix = "/live_scans/"

const (
	stagingDir      = ".staging"
	stagingExt      = ".part"
	defaultMaxBytes = 5 << 20
	dirPerm         = 0o755
	filePerm        = 0o644
	maxNameAttempts = 8
)

var keptName = regexp.MustCompile(`^[A-Z0-9_-]+_[0-9]+\.jpg$`) //nolint:gochecknoglobals // compiled once

// Store writes staged and kept images below a root directory.
type Store struct {
	root     string
	maxBytes int64
	logger   logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxBytes bounds the size of a staged image.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates root and its staging directory.
func New(root string, opts ...Option) (*Store, error) {
	s := &Store{root: root, maxBytes: defaultMaxBytes}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("snapshot")
	}

	if err := os.MkdirAll(filepath.Join(root, stagingDir), dirPerm); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return s, nil
}

// Stage writes r to a staging file and returns its token.
func (s *Store) Stage(_ context.Context, r io.Reader) (string, error) {
	token := uuid.NewString()
	p := s.stagedPath(token)

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return "", fmt.Errorf("create staged snapshot: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("write staged snapshot: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close staged snapshot: %w", closeErr)
	case n > s.maxBytes:
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	case n == 0:
		err = ErrEmpty
	}
	if err != nil {
		_ = os.Remove(p)
		return "", err
	}
	return token, nil
}

// Keep moves a staged image to {credentialID}_{ms}.jpg and returns its URL
// path. Distinct ids can map to the same file name; a taken name is never
// overwritten, the image gets a numbered name instead.
func (s *Store) Keep(_ context.Context, staged, credentialID string, ts time.Time) (string, error) {
	if _, err := uuid.Parse(staged); err != nil {
		return "", fmt.Errorf("%w: staged token %q", ErrInvalidName, staged)
	}

	base := fmt.Sprintf("%s_%d", fileSafe(credentialID), ts.UnixMilli())
	src := s.stagedPath(staged)
	for i := 0; i <= maxNameAttempts; i++ {
		name := base + ".jpg"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.jpg", base, i)
		}
		if !keptName.MatchString(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}

		// Link fails on an existing target where Rename would replace it.
		err := os.Link(src, filepath.Join(s.root, name))
		switch {
		case errors.Is(err, fs.ErrExist):
			continue
		case err != nil:
			return "", fmt.Errorf("keep snapshot: %w", err)
		}
		_ = os.Remove(src)
		return URLPrefix + name, nil
	}
	return "", fmt.Errorf("keep snapshot %s: %w", base, fs.ErrExist)
}

// Discard removes a staged image. Unknown tokens are ignored.
func (s *Store) Discard(ctx context.Context, staged string) {
	if _, err := uuid.Parse(staged); err != nil {
		return
	}
	if err := os.Remove(s.stagedPath(staged)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn(ctx, "discard snapshot", logger.String("token", staged), logger.Error(err))
	}
}

// Remove deletes a kept image by its URL path.
func (s *Store) Remove(ctx context.Context, ref string) {
	name := path.Base(strings.TrimPrefix(ref, URLPrefix))
	if !keptName.MatchString(name) {
		return
	}
	if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn(ctx, "remove snapshot", logger.String("ref", ref), logger.Error(err))
	}
}

// Handler serves kept images. Mount it under URLPrefix.
func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, URLPrefix)
		if !keptName.MatchString(name) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// fileSafe maps characters outside [A-Z0-9_-] to '-'.
func fileSafe(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, strings.ToUpper(id))
}

func (s *Store) stagedPath(token string) string {
	return filepath.Join(s.root, stagingDir, token+stagingExt)
}
