package localfiles

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

const maxConcurrentReads = 8

// Load reads every path concurrently. Directories contribute their direct *.pdf children.
// Declared MIME types come from the file extension, falling back to content sniffing.
func Load(ctx context.Context, paths []string) ([]domain.IncomingFile, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}

	out := make([]domain.IncomingFile, len(files))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentReads)
	for i, path := range files {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			out[i] = domain.IncomingFile{
				Name:     filepath.Base(path),
				MimeType: declaredType(path, content),
				Content:  content,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load files", err)
	}
	return out, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "stat path", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(path, "*"))
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "list directory", err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			if strings.EqualFold(filepath.Ext(match), ".pdf") {
				if st, err := os.Stat(match); err == nil && !st.IsDir() {
					files = append(files, match)
				}
			}
		}
	}
	return files, nil
}

func declaredType(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return domain.MimeTypePDF
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return http.DetectContentType(content)
}
