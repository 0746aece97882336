package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat reports a file extension the loader cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNotUTF8 reports text content that is not valid UTF-8.
	ErrNotUTF8 = errors.New("document is not valid UTF-8")
)

// Format enumerates supported document payload formats.
type Format string

const (
	FormatUnknown  Format = ""
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnknown
	}
}

// LoadFile reads a document from disk, decoding it according to its
// extension. The returned document's source is the file's base name.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	return FromBytes(data, filepath.Base(path), DetectFormat(path))
}

// FromBytes decodes raw upload bytes into a document. Text formats must be
// valid UTF-8; PDF payloads have their plain text extracted.
func FromBytes(data []byte, source string, format Format) (Document, error) {
	switch format {
	case FormatText, FormatMarkdown:
		if !utf8.Valid(data) {
			return Document{}, fmt.Errorf("decode %s: %w", source, ErrNotUTF8)
		}
		return Document{Source: source, Content: normalizePlainText(string(data))}, nil
	case FormatPDF:
		content, err := extractPDF(data)
		if err != nil {
			return Document{}, fmt.Errorf("parse %s: %w", source, err)
		}
		return Document{Source: source, Content: content}, nil
	default:
		return Document{}, fmt.Errorf("load %s: %w", source, ErrUnsupportedFormat)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizePlainText(buf.String()), nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}
