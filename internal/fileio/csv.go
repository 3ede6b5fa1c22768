package fileio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a CSV export with headerRow (1-based). Valid UTF-8 is kept
// as is; anything else goes through charset detection and is decoded to
// UTF-8. Both ',' and ';' separated files are accepted.
func readCSV(r io.Reader, headerRow int) ([]map[string]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	text, err := toUTF8(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sniffDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	h := pickHeader(rows, headerRow)
	return rowsToMaps(rows, h, headerRow), nil
}

func toUTF8(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	dec := detectDecoder(raw)
	out, _, err := transform.Bytes(dec.NewDecoder(), raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// detectDecoder maps the detector's guess onto the single-byte charsets
// spreadsheet exports actually use. cp1250 is the fallback.
func detectDecoder(raw []byte) encoding.Encoding {
	peek := raw
	if len(peek) > 4096 {
		peek = peek[:4096]
	}
	det, err := chardet.NewTextDetector().DetectBest(peek)
	if err != nil || det == nil {
		return charmap.Windows1250
	}
	switch strings.ToLower(det.Charset) {
	case "windows-1251":
		return charmap.Windows1251
	case "iso-8859-2":
		return charmap.ISO8859_2
	default:
		return charmap.Windows1250
	}
}

// sniffDelimiter picks ';' when the first line has more of them than commas.
func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	if strings.Count(line, "\t") > strings.Count(line, ",") {
		return '\t'
	}
	return ','
}
