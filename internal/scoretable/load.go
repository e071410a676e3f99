package scoretable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

var (
	// ErrDecode is returned when the input is neither UTF-8 nor Latin-1.
	ErrDecode = errors.New("cannot decode input")
	// ErrNoHeader is returned for inputs without a header row.
	ErrNoHeader = errors.New("input has no header row")
)

// Options controls how score sheets are read.
type Options struct {
	// Delimiter for CSV. If 0, ',' is used, or '\t' for .tsv files.
	Delimiter rune
	// DecimalSeparator for scores. If 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection; SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
}

// DefaultOptions returns comma-separated input with auto-detected decimals.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

// Loader reads one input format into a Table.
type Loader interface {
	CanLoad(filename string) bool
	Load(name string, r io.Reader, opt Options) (*Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(xlsxLoader{})
	Register(csvLoader{})
}

// Load picks a loader by filename and reads r. Unknown extensions are read as CSV.
func Load(name string, r io.Reader, opt Options) (*Table, error) {
	for _, l := range registry {
		if l.CanLoad(name) {
			return l.Load(name, r, opt)
		}
	}
	return csvLoader{}.Load(name, r, opt)
}

// LoadFile opens path and reads it with the matching loader.
func LoadFile(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open score sheet: %w", err)
	}
	defer f.Close()
	return Load(filepath.Base(path), f, opt)
}

// Decode returns data as UTF-8 text. A leading BOM is dropped. Input that is
// not valid UTF-8 is decoded as Latin-1 and the returned encoding says so.
func Decode(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), EncodingLatin1, nil
}

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvLoader) Load(name string, r io.Reader, opt Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text, enc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if blankRow(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	t, err := Build(name, header, rows, opt)
	if err != nil {
		return nil, err
	}
	t.Encoding = enc
	if enc == EncodingLatin1 {
		t.Warnings = append([]string{"file is not UTF-8; decoded as Latin-1"}, t.Warnings...)
	}
	return t, nil
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}

func blankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
