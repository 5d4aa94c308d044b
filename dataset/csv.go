package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

type readOptions struct {
	delimiter  rune
	continuous map[string]bool
}

// ReadOption configures ReadCSV.
type ReadOption func(*readOptions)

// WithDelimiter sets the field delimiter (default ',').
func WithDelimiter(r rune) ReadOption {
	return func(o *readOptions) { o.delimiter = r }
}

// WithContinuous forces the named columns to be parsed as numbers.
// A value that does not parse is a ParseError instead of turning the
// column categorical.
func WithContinuous(names ...string) ReadOption {
	return func(o *readOptions) {
		for _, n := range names {
			o.continuous[n] = true
		}
	}
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, opts ...ReadOption) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	frame, err := ReadCSV(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", path)
	}
	return frame, nil
}

// ReadCSV reads a CSV document with a header row into a Frame.
//
// A column is continuous when every non-empty value parses as a float
// (empty cells become NaN); otherwise it is categorical and keeps its raw
// strings. Column names must be unique and every row must have as many
// fields as the header.
func ReadCSV(r io.Reader, opts ...ReadOption) (*Frame, error) {
	o := readOptions{delimiter: ',', continuous: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}

	cr := csv.NewReader(r)
	cr.Comma = o.delimiter
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewModelError("ReadCSV", "missing header row", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	raw := make([][]string, len(header))
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}
		row++
		for j, v := range rec {
			raw[j] = append(raw[j], v)
		}
	}

	columns := make([]*Column, len(header))
	for j, name := range header {
		col, err := buildColumn(name, raw[j], o.continuous[name])
		if err != nil {
			return nil, err
		}
		columns[j] = col
	}
	for name := range o.continuous {
		found := false
		for _, h := range header {
			if h == name {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.NewColumnNotFoundError("ReadCSV", name)
		}
	}
	return NewFrame(columns...)
}

func buildColumn(name string, values []string, forceContinuous bool) (*Column, error) {
	floats := make([]float64, len(values))
	nonEmpty := 0
	for i, v := range values {
		s := strings.TrimSpace(v)
		if s == "" {
			floats[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			if forceContinuous {
				return nil, errors.NewParseError(i+1, name, v, err)
			}
			return &Column{Name: name, Kind: Categorical, Strings: values}, nil
		}
		floats[i] = f
		nonEmpty++
	}
	if nonEmpty == 0 && !forceContinuous {
		return &Column{Name: name, Kind: Categorical, Strings: values}, nil
	}
	return &Column{Name: name, Kind: Continuous, Floats: floats}, nil
}

// wrapCSVError converts encoding/csv errors into ParseErrors keyed by data row.
func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		// StartLine counts the header as line 1
		return errors.NewParseError(pe.StartLine-1, "", "", pe.Err)
	}
	return errors.Wrap(err, "read csv")
}
