// Package export writes acquisition results to the formats downstream
// consumers expect: delimited text in Excel-friendly encodings, and XLSX.
package export

import (
	"bufio"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodedWriter wraps w for the named encoding. "utf-8-sig" emits a BOM so
// Excel opens the file with the right charset; "latin-1" transcodes to
// ISO 8859-1 for legacy consumers.
func EncodedWriter(w io.Writer, encoding string) (io.Writer, error) {
	switch encoding {
	case "", "utf-8":
		return w, nil
	case "utf-8-sig":
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, eris.Wrap(err, "export: write bom")
		}
		return w, nil
	case "latin-1", "iso-8859-1":
		return transform.NewWriter(w, charmap.ISO8859_1.NewEncoder()), nil
	default:
		return nil, eris.Errorf("export: unsupported encoding %q", encoding)
	}
}

// EncodedReader wraps r for the named encoding, stripping a UTF-8 BOM
// when present.
func EncodedReader(r io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case "", "utf-8", "utf-8-sig":
		return stripBOM(r), nil
	case "latin-1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, eris.Errorf("export: unsupported encoding %q", encoding)
	}
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		_, _ = br.Discard(3)
	}
	return br
}

// DelimiterRune returns the single-rune delimiter for a config string,
// defaulting to semicolon, which is what Excel expects in es-CO locales.
func DelimiterRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ';'
}
