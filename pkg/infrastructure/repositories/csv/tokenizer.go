package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// SplitLine splits one delimited line into cells. Quoted cells may contain the
// delimiter and doubled quotes.
func SplitLine(line string, delim rune) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return []string{}, nil
	}

	r := newReader(strings.NewReader(line), delim)
	cells, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("split line: %w", err)
	}
	return cells, nil
}

// DetectDelimiter picks the most frequent of comma, semicolon and tab over the
// first few non-empty lines, ignoring quoted text. Defaults to comma.
func DetectDelimiter(sample []byte) rune {
	candidates := []rune{',', ';', '\t'}
	counts := make(map[rune]int, len(candidates))

	lines := 0
	for _, line := range strings.Split(string(sample), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		inQuotes := false
		for _, ch := range line {
			if ch == '"' {
				inQuotes = !inQuotes
				continue
			}
			if !inQuotes {
				counts[ch]++
			}
		}
		lines++
		if lines >= 10 {
			break
		}
	}

	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// ReadTable tokenizes a whole delimited document into rows of cells.
// Input that is not valid UTF-8 is decoded as Windows-1252, which is what
// spreadsheet tools on Windows write by default.
func ReadTable(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		src = transform.NewReader(bytes.NewReader(raw), charmap.Windows1252.NewDecoder())
	}

	reader := newReader(src, DetectDelimiter(raw))
	var table [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
		table = append(table, record)
	}
	return table, nil
}

// LoadTable reads a delimited file from disk
func LoadTable(filename string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer file.Close()

	table, err := ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return table, nil
}

func newReader(r io.Reader, delim rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader
}
