// Package dataset holds the in-memory record table the pipeline works on:
// an ordered set of named columns, each either categorical (string values)
// or continuous (float64 values).
package dataset

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// Kind は列の型を表す
type Kind int

const (
	// Categorical は文字列ラベルを持つ列
	Categorical Kind = iota
	// Continuous は数値を持つ列
	Continuous
)

func (k Kind) String() string {
	if k == Continuous {
		return "continuous"
	}
	return "categorical"
}

// Column は1列分のデータ
// Kind に応じて Strings か Floats のどちらか一方だけが使われる
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Floats  []float64
}

// Len は列の行数を返す
func (c *Column) Len() int {
	if c.Kind == Continuous {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Format は i 行目の値を表示用の文字列にする
func (c *Column) Format(i int) string {
	if c.Kind == Categorical {
		return c.Strings[i]
	}
	return formatFloat(c.Floats[i])
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatInt(int64(v), 10)
	default:
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
}

// Frame はレコードテーブル
// 列の順序はCSVのヘッダー順を保つ
type Frame struct {
	columns []*Column
	index   map[string]int
	nRows   int
}

// NewFrame は列から Frame を作成する
// 全列の行数が一致し、列名が重複していないことを検証する
func NewFrame(columns ...*Column) (*Frame, error) {
	f := &Frame{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValueError("NewFrame", fmt.Sprintf("duplicate column name %q", c.Name))
		}
		f.index[c.Name] = i
		if i == 0 {
			f.nRows = c.Len()
		} else if c.Len() != f.nRows {
			return nil, errors.NewDimensionError("NewFrame", f.nRows, c.Len(), 0)
		}
	}
	return f, nil
}

// NRows は行数を返す
func (f *Frame) NRows() int { return f.nRows }

// NCols は列数を返す
func (f *Frame) NCols() int { return len(f.columns) }

// Names は列名をヘッダー順で返す
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Has は列が存在するかを返す
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column は名前で列を取得する
// 存在しない場合は ColumnNotFoundError を返す
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewColumnNotFoundError("Frame.Column", name)
	}
	return f.columns[i], nil
}

// SetFloats は列の値を数値で置き換え、列を Continuous にする
// エンコーダーがテーブルをその場で書き換えるために使う
func (f *Frame) SetFloats(name string, values []float64) error {
	c, err := f.Column(name)
	if err != nil {
		return err
	}
	if len(values) != f.nRows {
		return errors.NewDimensionError("Frame.SetFloats", f.nRows, len(values), 0)
	}
	c.Kind = Continuous
	c.Floats = values
	c.Strings = nil
	return nil
}

// Drop は指定した列を除いた Frame を返す
// 列データは共有される（コピーしない）
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !f.Has(n) {
			return nil, errors.NewColumnNotFoundError("Frame.Drop", n)
		}
		drop[n] = true
	}
	kept := make([]*Column, 0, len(f.columns)-len(drop))
	for _, c := range f.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	out, err := NewFrame(kept...)
	if err != nil {
		return nil, err
	}
	out.nRows = f.nRows
	return out, nil
}

// Matrix は全列を n_samples × n_columns の行列に変換する
// Categorical な列が残っている場合はエラー
func (f *Frame) Matrix() (*mat.Dense, error) {
	if f.nRows == 0 || len(f.columns) == 0 {
		return nil, errors.NewModelError("Frame.Matrix", "empty data", errors.ErrEmptyData)
	}
	m := mat.NewDense(f.nRows, len(f.columns), nil)
	for j, c := range f.columns {
		if c.Kind != Continuous {
			return nil, errors.NewValueError("Frame.Matrix",
				fmt.Sprintf("column %q is categorical; encode it first", c.Name))
		}
		m.SetCol(j, c.Floats)
	}
	return m, nil
}

// ColumnVector は1列を n × 1 の行列として返す
func (f *Frame) ColumnVector(name string) (*mat.Dense, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Continuous {
		return nil, errors.NewValueError("Frame.ColumnVector",
			fmt.Sprintf("column %q is categorical; encode it first", c.Name))
	}
	values := make([]float64, len(c.Floats))
	copy(values, c.Floats)
	return mat.NewDense(len(values), 1, values), nil
}

// Preview は先頭 n 行と末尾 n 行を表形式で w に書き出す
// 行数が 2n 以下なら全行を出力する
func (f *Frame) Preview(w io.Writer, n int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := append([]string{""}, f.Names()...)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")+"\t"); err != nil {
		return err
	}

	writeRow := func(i int) error {
		cells := make([]string, 0, len(f.columns)+1)
		cells = append(cells, strconv.Itoa(i))
		for _, c := range f.columns {
			cells = append(cells, c.Format(i))
		}
		_, err := fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
		return err
	}

	if f.nRows <= 2*n {
		for i := 0; i < f.nRows; i++ {
			if err := writeRow(i); err != nil {
				return err
			}
		}
	} else {
		for i := 0; i < n; i++ {
			if err := writeRow(i); err != nil {
				return err
			}
		}
		dots := make([]string, len(f.columns)+1)
		for i := range dots {
			dots[i] = "..."
		}
		if _, err := fmt.Fprintln(tw, strings.Join(dots, "\t")+"\t"); err != nil {
			return err
		}
		for i := f.nRows - n; i < f.nRows; i++ {
			if err := writeRow(i); err != nil {
				return err
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "[%d rows x %d columns]\n", f.nRows, len(f.columns))
	return err
}

// Head は先頭 n 行の Frame を返す
func (f *Frame) Head(n int) *Frame {
	return f.rows(0, min(n, f.nRows))
}

// Tail は末尾 n 行の Frame を返す
func (f *Frame) Tail(n int) *Frame {
	return f.rows(max(f.nRows-n, 0), f.nRows)
}

// rows は [start, end) の行をコピーした Frame を返す
func (f *Frame) rows(start, end int) *Frame {
	cols := make([]*Column, len(f.columns))
	for j, c := range f.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Continuous {
			nc.Floats = append([]float64(nil), c.Floats[start:end]...)
		} else {
			nc.Strings = append([]string(nil), c.Strings[start:end]...)
		}
		cols[j] = nc
	}
	out := &Frame{columns: cols, index: f.index, nRows: end - start}
	return out
}
