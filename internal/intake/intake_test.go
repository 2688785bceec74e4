package intake

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docextract/internal/logger"
)

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	store, err := NewStore(Config{Dir: filepath.Join(t.TempDir(), "uploads"), MaxBytes: maxBytes}, logger.Discard())
	require.NoError(t, err)
	return store
}

func TestNewStore_CreatesDir(t *testing.T) {
	store := newTestStore(t, 0)

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, DefaultMaxBytes, store.MaxBytes())
}

func TestNewStore_EmptyDir(t *testing.T) {
	_, err := NewStore(Config{}, nil)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestAccept_PDF(t *testing.T) {
	store := newTestStore(t, 1024)

	doc, err := store.Accept(strings.NewReader("%PDF-1.7\n1 0 obj\n"), "policy.pdf", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "policy.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.MIMEType)
	assert.Equal(t, int64(17), doc.Size)
	assert.Equal(t, store.Dir(), filepath.Dir(doc.Path))
	assert.Equal(t, ".pdf", filepath.Ext(doc.Path))

	content, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7\n1 0 obj\n", string(content))
}

func TestAccept_SniffsGenericType(t *testing.T) {
	store := newTestStore(t, 1024)

	doc, err := store.Accept(strings.NewReader("%PDF-1.4 sniffed"), "scan", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.MIMEType)

	doc, err = store.Accept(strings.NewReader("Policy #123\nInsured: Jane"), "notes", "")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MIMEType)
}

func TestAccept_DeclaredTypeWithParameters(t *testing.T) {
	store := newTestStore(t, 1024)

	doc, err := store.Accept(strings.NewReader("hello"), "a.txt", "Text/Plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MIMEType)
}

func TestAccept_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		filename string
		mimeType string
		reason   Reason
	}{
		{"too large", strings.Repeat("x", 33), "big.txt", "text/plain", ReasonTooLarge},
		{"empty", "", "empty.pdf", "application/pdf", ReasonEmptyFile},
		{"unsupported declared", "<html></html>", "page.html", "text/html", ReasonUnsupportedType},
		{"unsupported sniffed", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", "image", "", ReasonUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, 32)

			_, err := store.Accept(strings.NewReader(tt.body), tt.filename, tt.mimeType)
			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.reason, rejected.Reason)

			entries, err := os.ReadDir(store.Dir())
			require.NoError(t, err)
			assert.Empty(t, entries, "rejected uploads must not be stored")
		})
	}
}

func TestAccept_ExactlyAtLimit(t *testing.T) {
	store := newTestStore(t, 8)

	doc, err := store.Accept(bytes.NewReader([]byte("12345678")), "a.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(8), doc.Size)
}

func TestAcceptFile_CopiesOriginal(t *testing.T) {
	store := newTestStore(t, 1024)
	src := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(src, []byte("Policy #123"), 0o644))

	doc, err := store.AcceptFile(src)
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", doc.Filename)
	assert.Equal(t, "text/plain", doc.MIMEType)
	assert.NotEqual(t, src, doc.Path)

	require.NoError(t, store.Remove(doc.Path))
	_, err = os.Stat(src)
	assert.NoError(t, err, "original must survive cleanup")
}

func TestAcceptFile_Missing(t *testing.T) {
	store := newTestStore(t, 1024)

	_, err := store.AcceptFile(filepath.Join(t.TempDir(), "missing.pdf"))
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestWriteTextAndRemove(t *testing.T) {
	store := newTestStore(t, 1024)

	path, err := store.WriteText("policy.pdf", "# Policy #123")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "-policy.md"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Policy #123", string(content))

	require.NoError(t, store.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine.
	assert.NoError(t, store.Remove(path))
	assert.NoError(t, store.Remove(""))
}

func TestAllowedTypes(t *testing.T) {
	assert.True(t, allowed("application/pdf"))
	assert.True(t, allowed("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.True(t, allowed("application/vnd.openxmlformats-officedocument.presentationml.presentation"))
	assert.True(t, allowed("text/plain; charset=utf-8"))
	assert.False(t, allowed("image/png"))
	assert.False(t, allowed(""))
}

func TestResolveType(t *testing.T) {
	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	mimeType, ok := resolveType("", pdf)
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", mimeType)

	mimeType, ok = resolveType("Application/PDF; name=x.pdf", []byte("anything"))
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", mimeType)

	mimeType, ok = resolveType("image/png", pdf)
	assert.False(t, ok)
	assert.Equal(t, "image/png", mimeType)
}
