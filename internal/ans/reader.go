package ans

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Delimiter rune   // default ';'
	Encoding  string // WHATWG label, e.g. "utf-8", "iso-8859-1"; empty = utf-8
	NoHeader  bool   // when false the first record is treated as a header and skipped
}

// Reader streams records from a delimited text file as published by the ANS portal:
// semicolon separated, optionally double-quoted, header on the first line, sometimes
// prefixed with a UTF-8 byte-order mark.
type Reader struct {
	f      *os.File
	csv    *csv.Reader
	header []string
	line   int
}

// OpenReader opens path for streaming. An empty file is valid and yields no records.
func OpenReader(path string, opts ReaderOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ans: open %s", path)
	}

	src, err := decoded(f, opts.Encoding)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	br := bufio.NewReaderSize(src, 64*1024)
	if r, _, err := br.ReadRune(); err == nil && r != '\uFEFF' {
		_ = br.UnreadRune()
	}

	cr := csv.NewReader(br)
	cr.Comma = ';'
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	r := &Reader{f: f, csv: cr}
	if !opts.NoHeader {
		hdr, err := cr.Read()
		switch {
		case err == io.EOF:
		case err != nil:
			_ = f.Close()
			return nil, eris.Wrapf(err, "ans: read header of %s", path)
		default:
			r.header = hdr
			r.line = 1
		}
	}
	return r, nil
}

// Header returns the skipped header record, if any.
func (r *Reader) Header() []string { return r.header }

// Line returns the 1-based line number of the last record returned.
func (r *Reader) Line() int { return r.line }

// Next returns the next record, or io.EOF at the end of the file. Blank lines are
// skipped by the underlying csv reader.
func (r *Reader) Next() ([]string, error) {
	rec, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, eris.Wrapf(err, "ans: read record after line %d", r.line)
	}
	r.line, _ = r.csv.FieldPos(0)
	return rec, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

func decoded(r io.Reader, label string) (io.Reader, error) {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "ans: unknown csv encoding %q", label)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
