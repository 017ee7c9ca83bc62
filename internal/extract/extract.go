package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"legalmind/internal/logging"
)

// ErrUnsupported marks a file whose extension has no parser.
var ErrUnsupported = errors.New("unsupported file type")

var supported = map[string]bool{
	".pdf": true,
	".txt": true,
}

// Supported reports whether the filename's extension can be extracted.
func Supported(filename string) bool {
	return supported[strings.ToLower(filepath.Ext(filename))]
}

// Extractor turns uploaded bytes into plain text, dispatching on the file extension.
type Extractor struct {
	parser *parser.ExtParser
	loader *file.FileLoader
}

// New wires the extension parser (.pdf, .txt) and a file loader sharing it.
func New(ctx context.Context) (*Extractor, error) {
	ext, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf": pdfParser{},
			".txt": parser.TextParser{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init ext parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      ext,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{parser: ext, loader: loader}, nil
}

// Extract returns the text of an uploaded file.
// Unsupported extensions yield ErrUnsupported. Empty, encrypted or corrupt
// files of a supported type yield "" and a nil error.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	log := logging.FromContext(ctx).With("file", filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !supported[ext] {
		log.Warn("unsupported file type", "ext", ext)
		return "", ErrUnsupported
	}
	if len(content) == 0 {
		log.Warn("file is empty, no text to extract")
		return "", nil
	}
	// ExtParser matches extensions case-sensitively
	uri := strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
	docs, err := e.parser.Parse(ctx, bytes.NewReader(content), parser.WithURI(uri))
	if err != nil {
		if errors.Is(err, ErrEncrypted) {
			log.Warn("pdf is password protected, cannot extract text")
		} else {
			log.Error("text extraction failed", "error", err)
		}
		return "", nil
	}
	text := joinDocs(docs)
	log.Info("extracted text", "ext", ext, "characters", utf8.RuneCountInString(text))
	return text, nil
}

// LoadFile extracts text from a file on disk through the eino file loader.
func (e *Extractor) LoadFile(ctx context.Context, path string) (string, error) {
	if !Supported(path) {
		return "", ErrUnsupported
	}
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return joinDocs(docs), nil
}

func joinDocs(docs []*schema.Document) string {
	var b strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		b.WriteString(doc.Content)
	}
	return strings.ToValidUTF8(b.String(), "�")
}
