// Package storage persists raw uploads and their extracted-text sidecars.
//
// Three backends implement ObjectStore: a flat local directory (default),
// MinIO and Amazon S3. Keys are flat names produced by RawKey and SidecarKey.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

// SidecarSuffix is appended to a raw key to name its extracted-text object.
const SidecarSuffix = ".txt"

// MaxNameBytes caps a sanitised name so "<millis>-<name>.txt" stays under
// the 255-byte file name limit of common filesystems.
const MaxNameBytes = 200

// maxExtBytes bounds what counts as an extension worth keeping on truncation.
const maxExtBytes = 16

// ErrObjectNotFound is returned by Get for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore saves and loads opaque objects by key.
type ObjectStore interface {
	// Put stores r under key. A key is either fully written or absent.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RawKey is "<unix-millis>-<sanitized name>".
func RawKey(now time.Time, originalName string) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), SanitizeName(originalName))
}

// SidecarKey names the extracted-text object of rawKey.
func SidecarKey(rawKey string) string { return rawKey + SidecarSuffix }

// SanitizeName flattens a client-supplied file name into a single safe path
// segment of at most MaxNameBytes. Unicode letters are kept.
func SanitizeName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(s)
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return "document"
	}
	if len(s) > MaxNameBytes {
		s = truncateName(s)
	}
	return s
}

// truncateName shortens s to MaxNameBytes on a rune boundary, keeping a
// short extension.
func truncateName(s string) string {
	ext := path.Ext(s)
	if len(ext) > maxExtBytes {
		ext = ""
	}
	stem := strings.TrimSuffix(s, ext)
	cut := MaxNameBytes - len(ext)
	for cut > 0 && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}

// validKey rejects empty, absolute and traversing keys.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidKey
	}
	return nil
}

// Options selects and configures a backend for Open.
type Options struct {
	Driver    string // local|minio|s3
	UploadDir string
	Minio     MinioOptions
	S3        S3Options
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (ObjectStore, error) {
	switch opts.Driver {
	case "", "local":
		return NewLocal(opts.UploadDir), nil
	case "minio":
		return NewMinio(ctx, opts.Minio)
	case "s3":
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
