// Package fetcher downloads the latest edition of a product into a
// version-named directory.
//
// A run authenticates, resolves the product and its latest delivery, and
// then downloads and extracts every file of that delivery in order. The
// existence of the version directory is the only record of a previous
// run: if it exists, nothing is downloaded.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"

	patstat "github.com/patent-dev/patstat-get"
	"github.com/patent-dev/patstat-get/internal/archive"
)

// AlreadyDownloadedError is returned when the version directory exists.
type AlreadyDownloadedError struct {
	Version string
	Dir     string
}

func (e *AlreadyDownloadedError) Error() string {
	return fmt.Sprintf("edition %s already downloaded: %s exists, delete it and try again", e.Version, e.Dir)
}

func (e *AlreadyDownloadedError) Code() patstat.ErrorCode { return patstat.CodeAlreadyExists }

// NotADirectoryError is returned when a file occupies the version
// directory's name.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("%s exists and is not a directory, move it out of the download folder", e.Path)
}

func (e *NotADirectoryError) Code() patstat.ErrorCode { return patstat.CodeInvalidConfig }

// Result describes a completed run.
type Result struct {
	Product  *patstat.Product
	Delivery *patstat.Delivery
	Dir      string   // version directory, relative to the root filesystem
	Files    []string // extracted paths, relative to Dir
}

// Fetcher runs the download workflow against a Catalog.
type Fetcher struct {
	catalog          patstat.Catalog
	root             billy.Filesystem
	product          string
	logger           *slog.Logger
	progressInterval time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. If logger is nil, logging is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithProduct sets the substring the product name must contain.
func WithProduct(name string) Option {
	return func(f *Fetcher) {
		if name != "" {
			f.product = name
		}
	}
}

// WithProgressInterval sets how often download progress is logged.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.progressInterval = d
	}
}

// New returns a Fetcher writing below root.
func New(catalog patstat.Catalog, root billy.Filesystem, opts ...Option) *Fetcher {
	f := &Fetcher{
		catalog:          catalog,
		root:             root,
		product:          patstat.DefaultProductName,
		progressInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f
}

// Run executes the workflow. The session is closed on every path once
// authentication has succeeded.
func (f *Fetcher) Run(ctx context.Context) (*Result, error) {
	if err := f.catalog.Authenticate(ctx); err != nil {
		return nil, err
	}
	defer func() {
		// Teardown must run even after an interrupt.
		if cerr := f.catalog.Close(context.WithoutCancel(ctx)); cerr != nil {
			f.logger.WarnContext(ctx, "closing session failed", "error", cerr)
		}
	}()

	product, delivery, err := f.resolve(ctx)
	if err != nil {
		return nil, err
	}

	dir := delivery.Version
	if dir == "" {
		return nil, fmt.Errorf("delivery %q has no usable version name", delivery.Name)
	}
	f.logger.InfoContext(ctx, "available edition",
		"product", product.Name,
		"delivery", delivery.Name,
		"version", dir,
		"published", delivery.PublicationDatetime,
		"files", len(delivery.Files))

	if info, err := f.root.Stat(dir); err == nil {
		path := f.root.Join(f.root.Root(), dir)
		if !info.IsDir() {
			return nil, &NotADirectoryError{Path: path}
		}
		return nil, &AlreadyDownloadedError{Version: dir, Dir: path}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}

	if err := f.root.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	dst, err := f.root.Chroot(dir)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dir, err)
	}

	result := &Result{Product: product, Delivery: delivery, Dir: dir}
	for i, file := range delivery.Files {
		f.logger.InfoContext(ctx, "downloading file",
			"file", file.Name,
			"size", file.Size,
			"n", i+1,
			"of", len(delivery.Files))

		written, err := f.fetchFile(ctx, file, dst)
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, written...)
	}

	f.logger.InfoContext(ctx, "edition downloaded", "dir", dir, "entries", len(result.Files))
	return result, nil
}

// resolve selects the target product and its latest delivery.
func (f *Fetcher) resolve(ctx context.Context) (*patstat.Product, *patstat.Delivery, error) {
	products, err := f.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	f.logger.DebugContext(ctx, "products listed", "count", len(products))

	product, err := patstat.FindProduct(products, f.product)
	if err != nil {
		return nil, nil, err
	}

	delivery, err := f.catalog.GetLatestDelivery(ctx, product)
	if err != nil {
		return nil, nil, err
	}
	return product, delivery, nil
}

// fetchFile spools one archive to a temporary file next to the version
// directory, then extracts it into dst.
func (f *Fetcher) fetchFile(ctx context.Context, file *patstat.DeliveryFile, dst billy.Filesystem) ([]string, error) {
	tmp, err := f.root.TempFile("", ".patstat-download-")
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}
	defer func() {
		tmp.Close()
		f.root.Remove(tmp.Name())
	}()

	if err := f.catalog.DownloadFile(ctx, file, tmp, f.progress(ctx, file.Name)); err != nil {
		return nil, err
	}

	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("size of %s: %w", file.Name, err)
	}

	written, err := archive.Extract(tmp, size, dst)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", file.Name, err)
	}
	f.logger.DebugContext(ctx, "file extracted", "file", file.Name, "entries", len(written))
	return written, nil
}

// progress logs download progress at debug level, at most once per interval.
func (f *Fetcher) progress(ctx context.Context, name string) patstat.ProgressFunc {
	var last time.Time
	return func(written, total int64) {
		now := time.Now()
		if now.Sub(last) < f.progressInterval && written != total {
			return
		}
		last = now
		attrs := []any{"file", name, "bytes", formatBytes(written)}
		if total > 0 {
			attrs = append(attrs, "total", formatBytes(total), "percent", fmt.Sprintf("%.1f", float64(written)*100/float64(total)))
		}
		f.logger.DebugContext(ctx, "download progress", attrs...)
	}
}

func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
