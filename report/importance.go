package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// FeatureImportance is one row of the importance table. Index is the
// feature's column position in the training matrix.
type FeatureImportance struct {
	Index      int
	Feature    string
	Importance float64
}

// ImportanceTable は重要度の降順に並んだ行
type ImportanceTable []FeatureImportance

// FeatureImportances pairs names with scores and sorts by descending
// importance. Ties keep column order.
func FeatureImportances(names []string, scores []float64) (ImportanceTable, error) {
	if len(names) != len(scores) {
		return nil, errors.NewDimensionError("FeatureImportances", len(names), len(scores), 0)
	}
	t := make(ImportanceTable, len(names))
	for i := range names {
		t[i] = FeatureImportance{Index: i, Feature: names[i], Importance: scores[i]}
	}
	sort.SliceStable(t, func(a, b int) bool { return t[a].Importance > t[b].Importance })
	return t, nil
}

// Features returns the feature names in table order.
func (t ImportanceTable) Features() []string {
	out := make([]string, len(t))
	for i, r := range t {
		out[i] = r.Feature
	}
	return out
}

// Total sums the importances; 1 for a fitted forest with at least one split.
func (t ImportanceTable) Total() float64 {
	var s float64
	for _, r := range t {
		s += r.Importance
	}
	return s
}

// WriteTable writes the table with the original column index on the left:
//
//	              Feature  Importance
//	2          Polydipsia    0.231046
func (t ImportanceTable) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintln(tw, "\tFeature\tImportance\t"); err != nil {
		return err
	}
	for _, r := range t {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%.6f\t\n", strconv.Itoa(r.Index), r.Feature, r.Importance); err != nil {
			return err
		}
	}
	return tw.Flush()
}
