// Package document loads local files and exposes the read accessors the
// extraction engine consumes: raw bytes, text, and page images.
//
// Text and images are computed lazily on first access and cached. PDF
// rendering is not implemented here; callers plug renderers in via
// WithTextRenderer and WithImageRenderer.
package document

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Kind classifies a document by its detected content type.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// Image is one page image of a document.
type Image struct {
	Data     []byte
	MimeType string
}

// TextRenderer converts raw document bytes to plain text (e.g. a
// pdftotext wrapper).
type TextRenderer func(data []byte) (string, error)

// ImageRenderer converts raw document bytes to one or more page images.
type ImageRenderer func(data []byte) ([]Image, error)

// File is a document backed by a local file. Safe for concurrent reads.
type File struct {
	path     string
	kind     Kind
	mimeType string
	binary   []byte

	textOnce sync.Once
	text     string
	textErr  error

	imagesOnce sync.Once
	images     []Image
	imagesErr  error

	renderText  TextRenderer
	renderImage ImageRenderer
}

// Option configures a File.
type Option func(*File)

// WithTextRenderer sets the renderer used to extract text from PDFs.
func WithTextRenderer(r TextRenderer) Option {
	return func(f *File) { f.renderText = r }
}

// WithImageRenderer sets the renderer used to turn PDFs into page images.
func WithImageRenderer(r ImageRenderer) Option {
	return func(f *File) { f.renderImage = r }
}

// Open loads a file into memory and detects its kind.
func Open(path string, opts ...Option) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	mt := mimetype.Detect(data)
	kind, err := classify(mt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f := &File{
		path:     path,
		kind:     kind,
		mimeType: mt.String(),
		binary:   data,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func classify(mt *mimetype.MIME) (Kind, error) {
	switch {
	case mt.Is("application/pdf"):
		return KindPDF, nil
	case strings.HasPrefix(mt.String(), "image/"):
		return KindImage, nil
	case strings.HasPrefix(mt.String(), "text/"), mt.Is("application/csv"):
		return KindText, nil
	default:
		return "", fmt.Errorf("unsupported document type: %s", mt.String())
	}
}

// Path returns the file path the document was loaded from.
func (f *File) Path() string { return f.path }

// Kind returns the detected document kind.
func (f *File) Kind() Kind { return f.kind }

// MimeType returns the detected mime type.
func (f *File) MimeType() string { return f.mimeType }

// Binary returns the raw file bytes.
func (f *File) Binary() ([]byte, error) {
	return f.binary, nil
}

// Text returns the document's text content. Computed on first call and
// cached. Text files decode directly; PDFs go through the configured
// text renderer.
func (f *File) Text() (string, error) {
	f.textOnce.Do(func() {
		switch f.kind {
		case KindText:
			f.text = string(f.binary)
		case KindPDF:
			if f.renderText == nil {
				f.textErr = fmt.Errorf("no text renderer configured for PDF documents")
				return
			}
			f.text, f.textErr = f.renderText(f.binary)
		default:
			f.textErr = fmt.Errorf("no text content for %s documents", f.kind)
		}
	})
	return f.text, f.textErr
}

// Images returns the document's page images. Computed on first call and
// cached. Image files yield themselves as a single page; PDFs go through
// the configured image renderer. May be empty.
func (f *File) Images() ([]Image, error) {
	f.imagesOnce.Do(func() {
		switch f.kind {
		case KindImage:
			f.images = []Image{{Data: f.binary, MimeType: f.mimeType}}
		case KindPDF:
			if f.renderImage == nil {
				return // no renderer: no images, not an error
			}
			f.images, f.imagesErr = f.renderImage(f.binary)
		}
	})
	return f.images, f.imagesErr
}
