package ingestion

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Parser turns document bytes into text.
type Parser interface {
	Parse(ctx context.Context, data []byte) (string, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, data []byte) (string, error)

func (f ParserFunc) Parse(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Parsers maps file extensions to parsers. Extensions are accepted when they
// are allowed, even without a parser; such files fail individually.
type Parsers struct {
	mu       sync.RWMutex
	parsers  map[string]Parser
	accepted map[string]bool
}

// NewParsers returns a registry parsing .txt, .md and .markdown files as text
// and accepting .pdf, .docx and .doc files for external parsers.
func NewParsers() *Parsers {
	p := &Parsers{
		parsers:  make(map[string]Parser),
		accepted: make(map[string]bool),
	}
	for _, ext := range []string{".txt", ".md", ".markdown"} {
		p.Register(ext, TextParser{})
	}
	for _, ext := range []string{".pdf", ".docx", ".doc"} {
		p.accepted[ext] = true
	}
	return p
}

// Register installs parser for ext, replacing any previous one.
func (p *Parsers) Register(ext string, parser Parser) {
	ext = normalizeExt(ext)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parsers[ext] = parser
	p.accepted[ext] = true
}

// Restrict drops every extension not in exts. An empty list keeps them all.
func (p *Parsers) Restrict(exts ...string) {
	if len(exts) == 0 {
		return
	}
	keep := make(map[string]bool, len(exts))
	for _, ext := range exts {
		keep[normalizeExt(ext)] = true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for ext := range p.accepted {
		if !keep[ext] {
			delete(p.accepted, ext)
			delete(p.parsers, ext)
		}
	}
}

// Accepts reports whether filename has an accepted extension.
func (p *Parsers) Accepts(filename string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accepted[normalizeExt(filepath.Ext(filename))]
}

// Extensions returns the accepted extensions, sorted.
func (p *Parsers) Extensions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	exts := make([]string, 0, len(p.accepted))
	for ext := range p.accepted {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Lookup returns the parser for filename, or ErrNoParser.
func (p *Parsers) Lookup(filename string) (Parser, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	parser, ok := p.parsers[normalizeExt(filepath.Ext(filename))]
	if !ok {
		return nil, ErrNoParser
	}
	return parser, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextParser decodes plain text. Input that is not valid UTF-8 is decoded as
// Windows-1252. NUL bytes mark the file as binary.
type TextParser struct{}

func (TextParser) Parse(ctx context.Context, data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ErrCorruptFile
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", ErrCorruptFile
	}
	return string(decoded), nil
}
