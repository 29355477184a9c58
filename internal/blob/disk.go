// Package blob stores uploaded photo files and maps them to stable
// reference paths served by the static file boundary.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/lovebook/internal/content"
	"go.uber.org/zap"
)

// maxNameAttempts bounds how often Store bumps the timestamp on collision.
const maxNameAttempts = 1000

// DiskStorage writes blobs into a single local directory.
type DiskStorage struct {
	dir       string
	urlPrefix string
	now       func() time.Time
	logger    *zap.Logger
}

// NewDiskStorage creates the upload directory if needed. urlPrefix is the
// path under which dir is served, e.g. "/uploads".
func NewDiskStorage(dir, urlPrefix string, logger *zap.Logger) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &DiskStorage{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Dir returns the directory blobs are written to.
func (s *DiskStorage) Dir() string { return s.dir }

// URLPrefix returns the path prefix references start with.
func (s *DiskStorage) URLPrefix() string { return s.urlPrefix }

// Store writes body to <field>-<unix-millis><ext> and returns the reference
// path. The file is created exclusively, so two calls never share a name.
func (s *DiskStorage) Store(ctx context.Context, field, filename string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, name, err := s.createUnique(sanitizeField(field), strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", content.ErrUpload, err)
	}

	full := filepath.Join(s.dir, name)
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("%w: write %s: %w", content.ErrUpload, name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("%w: close %s: %w", content.ErrUpload, name, err)
	}

	ref := path.Join(s.urlPrefix, name)
	s.logger.Debug("blob stored", zap.String("ref", ref), zap.String("original", filename))
	return ref, nil
}

// Remove deletes the file behind ref. Missing files are not an error.
func (s *DiskStorage) Remove(_ context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, s.urlPrefix+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("reference %q is not under %s", ref, s.urlPrefix)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob %s: %w", name, err)
	}
	return nil
}

func (s *DiskStorage) createUnique(field, ext string) (*os.File, string, error) {
	ms := s.now().UnixMilli()
	for i := 0; i < maxNameAttempts; i++ {
		name := field + "-" + strconv.FormatInt(ms+int64(i), 10) + ext
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", name, err)
		}
	}
	return nil, "", fmt.Errorf("no free name for %s after %d attempts", field, maxNameAttempts)
}

// sanitizeField keeps the prefix to a safe file-name alphabet.
func sanitizeField(field string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, field)
	if clean == "" {
		return "file"
	}
	return clean
}
