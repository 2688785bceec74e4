// Package intake validates uploaded documents and keeps them in transient local storage
// for the duration of one pipeline run.
package intake

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jonathan/docextract/internal/pipeline"
)

// DefaultMaxBytes is the upload ceiling used when none is configured.
const DefaultMaxBytes int64 = 10 << 20

// Accepted document types and the extension used for their transient copy.
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/plain": ".txt",
}

// Config configures a Store.
type Config struct {
	Dir      string
	MaxBytes int64
}

// Store holds transient files under one directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates the storage directory if needed.
func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dir == "" {
		return nil, &StorageError{Path: cfg.Dir, Message: "upload directory is not configured"}
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, &StorageError{Path: cfg.Dir, Message: "failed to create upload directory", Cause: err}
	}
	return &Store{dir: cfg.Dir, maxBytes: cfg.MaxBytes, logger: logger}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the upload ceiling.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Accept validates an uploaded document and stores it under a generated name. The
// declared type is trusted when it is specific; otherwise the content is sniffed.
func (s *Store) Accept(r io.Reader, filename, declaredType string) (pipeline.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == string(filepath.Separator) {
		filename = ""
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return pipeline.Document{}, &StorageError{Path: filename, Message: "failed to read upload", Cause: err}
	}
	if int64(len(data)) > s.maxBytes {
		return pipeline.Document{}, &RejectedError{
			Reason:   ReasonTooLarge,
			Filename: filename,
			Message:  fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes),
		}
	}
	if len(data) == 0 {
		return pipeline.Document{}, &RejectedError{Reason: ReasonEmptyFile, Filename: filename, Message: "file is empty"}
	}

	mimeType, ok := resolveType(declaredType, data)
	if !ok {
		return pipeline.Document{}, &RejectedError{
			Reason:   ReasonUnsupportedType,
			Filename: filename,
			Message:  fmt.Sprintf("unsupported file type %q", mimeType),
		}
	}
	if filename == "" {
		filename = "upload" + allowedTypes[mimeType]
	}

	path := filepath.Join(s.dir, uuid.NewString()+allowedTypes[mimeType])
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return pipeline.Document{}, &StorageError{Path: path, Message: "failed to store upload", Cause: err}
	}

	s.logger.Debug("intake.stored", "path", path, "filename", filename, "mime_type", mimeType, "bytes", len(data))
	return pipeline.Document{
		Path:     path,
		Filename: filename,
		MIMEType: mimeType,
		Size:     int64(len(data)),
	}, nil
}

// AcceptFile is Accept for a document on local disk. The original file is copied, never
// moved, so the caller's copy survives cleanup.
func (s *Store) AcceptFile(path string) (pipeline.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Document{}, &StorageError{Path: path, Message: "failed to open document", Cause: err}
	}
	defer func() { _ = f.Close() }()

	return s.Accept(f, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)))
}

// WriteText stores text as a transient markdown file derived from baseName.
func (s *Store) WriteText(baseName, text string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(baseName), filepath.Ext(baseName))
	if stem == "" || stem == "." {
		stem = "document"
	}
	path := filepath.Join(s.dir, uuid.NewString()+"-"+stem+".md")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return "", &StorageError{Path: path, Message: "failed to write text", Cause: err}
	}
	return path, nil
}

// Remove deletes a transient file. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Path: path, Message: "failed to remove", Cause: err}
	}
	return nil
}

// resolveType returns the canonical document type for an upload and whether it is
// accepted. A declared type that is missing or generic is replaced by the sniffed one.
func resolveType(declaredType string, data []byte) (string, bool) {
	declared := canonical(declaredType)
	if declared == "" || declared == "application/octet-stream" {
		return sniff(data)
	}
	return declared, allowed(declared)
}

// sniff detects the document type from content.
func sniff(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if allowed(m.String()) {
			return canonical(m.String()), true
		}
	}
	return canonical(detected.String()), false
}

// canonical strips parameters and case from a media type.
func canonical(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	return strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
}

// allowed reports whether a media type is an accepted document type.
func allowed(mediaType string) bool {
	_, ok := allowedTypes[canonical(mediaType)]
	return ok
}
