package process

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/h2non/filetype"
)

// file extensions accepted as stylesheet sources
var stylesheetExts = []string{".css", ".pcss", ".sss"}

// isStylesheet checks source name, names inside archives are slash separated.
func isStylesheet(name string) bool {
	return slices.Contains(stylesheetExts, strings.ToLower(filepath.Ext(name)))
}

// isSugar reports whether source uses indentation based syntax.
func isSugar(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".sss")
}

// isArchiveFile checks both extension and content, so renamed archives and
// files which only look like archives are skipped.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// enough for any matcher filetype has
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// binaryKind returns extension of known binary format data starts with, empty
// for text.
func binaryKind(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.Extension
}
