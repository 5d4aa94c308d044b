package dataset

import (
	stderrors "errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

const sampleCSV = `Age,Gender,Polyuria,class
40,Male,No,Positive
58,Male,No,Positive
41,Male,Yes,Positive
45,Male,No,Negative
60,Female,Yes,Negative
`

func TestReadCSV_InfersKinds(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	if f.NRows() != 5 || f.NCols() != 4 {
		t.Fatalf("shape = (%d, %d), want (5, 4)", f.NRows(), f.NCols())
	}

	want := map[string]Kind{"Age": Continuous, "Gender": Categorical, "Polyuria": Categorical, "class": Categorical}
	for name, kind := range want {
		c, err := f.Column(name)
		if err != nil {
			t.Fatalf("Column(%q): %v", name, err)
		}
		if c.Kind != kind {
			t.Errorf("%s kind = %v, want %v", name, c.Kind, kind)
		}
	}

	age, _ := f.Column("Age")
	if age.Floats[4] != 60 {
		t.Errorf("Age[4] = %v, want 60", age.Floats[4])
	}
	class, _ := f.Column("class")
	if class.Strings[3] != "Negative" {
		t.Errorf("class[3] = %q, want Negative", class.Strings[3])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []ReadOption
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty document",
			input: "",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, errors.ErrEmptyData) {
					t.Errorf("expected ErrEmptyData, got %v", err)
				}
			},
		},
		{
			name:  "ragged row",
			input: "Age,class\n40,Positive\n41\n",
			check: func(t *testing.T, err error) {
				var pe *errors.ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				if pe.Row != 2 {
					t.Errorf("Row = %d, want 2", pe.Row)
				}
			},
		},
		{
			name:  "duplicate header",
			input: "Age,Age\n1,2\n",
			check: func(t *testing.T, err error) {
				var ve *errors.ValueError
				if !errors.As(err, &ve) {
					t.Errorf("expected ValueError, got %v", err)
				}
			},
		},
		{
			name:  "forced continuous with text",
			input: "Age,class\n40,Positive\nforty,Negative\n",
			opts:  []ReadOption{WithContinuous("Age")},
			check: func(t *testing.T, err error) {
				var pe *errors.ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				if pe.Column != "Age" || pe.Row != 2 || pe.Value != "forty" {
					t.Errorf("unexpected ParseError %+v", pe)
				}
			},
		},
		{
			name:  "forced continuous column missing",
			input: "Gender,class\nMale,Positive\n",
			opts:  []ReadOption{WithContinuous("Age")},
			check: func(t *testing.T, err error) {
				var ce *errors.ColumnNotFoundError
				if !errors.As(err, &ce) {
					t.Errorf("expected ColumnNotFoundError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestReadCSV_EmptyCellsBecomeNaN(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("Age,class\n40,Positive\n,Negative\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	age, _ := f.Column("Age")
	if age.Kind != Continuous || !math.IsNaN(age.Floats[1]) {
		t.Errorf("expected NaN for empty numeric cell, got %v (%v)", age.Floats, age.Kind)
	}
}

func TestReadCSV_DelimiterAndBOM(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("\ufeffAge;class\n40;Positive\n"), WithDelimiter(';'))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if !f.Has("Age") {
		t.Errorf("BOM should be stripped from the first header, got %v", f.Names())
	}
}

func TestReadCSVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := ReadCSVFile(path, WithContinuous("Age"))
	if err != nil {
		t.Fatalf("ReadCSVFile: %v", err)
	}
	if f.NRows() != 5 {
		t.Errorf("NRows = %d, want 5", f.NRows())
	}

	_, err = ReadCSVFile(filepath.Join(dir, "missing.csv"))
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
