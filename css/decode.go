package css

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var charsetRule = regexp.MustCompile(`^@charset\s+"([^"]+)"\s*;`)

// Decode converts stylesheet bytes to UTF-8. Byte order mark wins, otherwise
// leading @charset rule selects encoding. When transcoding is necessary
// @charset rule is dropped since it no longer describes the data.
func Decode(data []byte) ([]byte, error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, fmt.Errorf("unable to decode stylesheet: %w", err)
		}
		return out, nil
	}

	m := charsetRule.FindSubmatchIndex(data)
	if m == nil {
		return data, nil
	}
	label := strings.ToLower(string(data[m[2]:m[3]]))
	if label == "utf-8" || label == "utf8" {
		return data, nil
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(data[m[1]:]))
	if err != nil {
		return nil, fmt.Errorf("unsupported stylesheet charset %q: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet from %q: %w", label, err)
	}
	return out, nil
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}
