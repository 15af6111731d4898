package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownSignature is returned when a binary stream matches none of the
// known file signatures. Binary uploads with no recognized signature must be
// rejected by the caller, never silently given a default extension.
var ErrUnknownSignature = errors.New("content: no matching file signature")

const (
	// sniffLen is how many bytes the binary/text heuristic inspects.
	sniffLen = 8000

	// htmlScanLen is how many bytes of a text stream are scanned for HTML
	// markers.
	htmlScanLen = 512
)

// signature is a known file signature: magic bytes expected at a fixed
// offset from the start of the stream.
type signature struct {
	offset    int
	magic     []byte
	extension string
	mimeType  string
}

// signatures is the static signature table. First match wins.
var signatures = []signature{
	{0, []byte{0xFF, 0xD8, 0xFF, 0xE0}, ".jpg", "image/jpeg"},
	{0, []byte{0xFF, 0xD8, 0xFF, 0xE1}, ".jpg", "image/jpeg"},
	{0, []byte{0xFF, 0xD8, 0xFF, 0xE2}, ".jpg", "image/jpeg"},
	{0, []byte{0xFF, 0xD8, 0xFF, 0xE3}, ".jpg", "image/jpeg"},
	{0, []byte{0xFF, 0xD8, 0xFF, 0xE8}, ".jpg", "image/jpeg"},
	{0, []byte{0x89, 0x50, 0x4E, 0x47}, ".png", "image/png"},
	{0, []byte{0x25, 0x50, 0x44, 0x46}, ".pdf", "application/pdf"},
	{0, []byte{0x50, 0x4B, 0x03, 0x04}, ".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	{0, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, ".doc", "application/msword"},
}

// Classification is the result of sniffing a file stream.
type Classification struct {
	Extension string
	MimeType  string
	Binary    bool
}

// Classify inspects the stream and decides which file extension its content
// warrants, ignoring any client-supplied metadata.
//
// Binary vs. text is decided by scanning up to the first 8000 bytes for a NUL
// byte. This is a heuristic borrowed from diff tooling, not a content-type
// guarantee, and must not be treated as a security boundary.
//
// Binary streams are matched against the static signature table; no match is
// an error. Text streams are scanned case-insensitively in their first 512
// bytes for "<!DOCTYPE HTML" or "<HTML" and classified as .html or .txt; text
// is never rejected.
//
// The stream is rewound to the start before reading and left at an
// unspecified position afterwards.
func Classify(r io.ReadSeeker) (Classification, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Classification{}, fmt.Errorf("rewinding stream: %w", err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Classification{}, fmt.Errorf("reading stream: %w", err)
	}
	head = head[:n]

	if bytes.IndexByte(head, 0x00) >= 0 {
		return classifyBinary(head)
	}
	return classifyText(head), nil
}

func classifyBinary(head []byte) (Classification, error) {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if end > len(head) {
			continue
		}
		if bytes.Equal(head[sig.offset:end], sig.magic) {
			return Classification{
				Extension: sig.extension,
				MimeType:  sig.mimeType,
				Binary:    true,
			}, nil
		}
	}
	return Classification{}, ErrUnknownSignature
}

func classifyText(head []byte) Classification {
	scan := head
	if len(scan) > htmlScanLen {
		scan = scan[:htmlScanLen]
	}
	lower := bytes.ToLower(scan)

	if bytes.Contains(lower, []byte("<!doctype html")) || bytes.Contains(lower, []byte("<html")) {
		return Classification{Extension: ".html", MimeType: "text/html"}
	}
	return Classification{Extension: ".txt", MimeType: "text/plain"}
}
