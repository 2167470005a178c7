package diary

import (
	"fmt"
	"math"
	"sort"

	"solodiary/domain/core"
)

// Table is the joined observation table in column-major form. Rows are
// sorted by (subject, day); day indices per subject are consecutive from 1.
// Derived feature columns are added in place by the feature builder.
type Table struct {
	subjects []core.SubjectID
	days     []int
	columns  map[core.VariableKey][]float64
	gender   map[core.SubjectID]string
}

// NewTable creates an empty table with capacity for n rows.
func NewTable(n int) *Table {
	return &Table{
		subjects: make([]core.SubjectID, 0, n),
		days:     make([]int, 0, n),
		columns:  make(map[core.VariableKey][]float64),
		gender:   make(map[core.SubjectID]string),
	}
}

// AppendRow adds one observation. Columns not present in values are padded
// with NaN so all columns stay rectangular.
func (t *Table) AppendRow(subject core.SubjectID, day int, values map[core.VariableKey]float64) {
	t.subjects = append(t.subjects, subject)
	t.days = append(t.days, day)
	n := len(t.subjects)
	for key := range values {
		if _, ok := t.columns[key]; !ok {
			col := make([]float64, n-1)
			for i := range col {
				col[i] = math.NaN()
			}
			t.columns[key] = col
		}
	}
	for key, col := range t.columns {
		v, ok := values[key]
		if !ok {
			v = math.NaN()
		}
		t.columns[key] = append(col, v)
	}
}

// SetGender records the categorical gender for a subject.
func (t *Table) SetGender(subject core.SubjectID, gender string) {
	t.gender[subject] = gender
}

// Gender returns the recorded gender for a subject.
func (t *Table) Gender(subject core.SubjectID) string {
	return t.gender[subject]
}

// NumRows returns the number of observations.
func (t *Table) NumRows() int {
	return len(t.subjects)
}

// Subjects returns the per-row subject IDs.
func (t *Table) Subjects() []core.SubjectID {
	return t.subjects
}

// Days returns the per-row day indices.
func (t *Table) Days() []int {
	return t.days
}

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(key core.VariableKey) bool {
	_, ok := t.columns[key]
	return ok
}

// Column returns a column by key.
func (t *Table) Column(key core.VariableKey) ([]float64, error) {
	col, ok := t.columns[key]
	if !ok {
		return nil, core.NewSchemaError("table", key.String())
	}
	return col, nil
}

// MustColumn returns a column that is known to exist.
func (t *Table) MustColumn(key core.VariableKey) []float64 {
	col, err := t.Column(key)
	if err != nil {
		panic(err)
	}
	return col
}

// SetColumn adds or replaces a derived column. The column must match the
// table's row count.
func (t *Table) SetColumn(key core.VariableKey, values []float64) error {
	if len(values) != t.NumRows() {
		return fmt.Errorf("column %s: expected %d values, got %d", key, t.NumRows(), len(values))
	}
	t.columns[key] = values
	return nil
}

// ColumnKeys returns all column keys in sorted order.
func (t *Table) ColumnKeys() []core.VariableKey {
	keys := make([]core.VariableKey, 0, len(t.columns))
	for k := range t.columns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// SubjectRows returns, per subject, the row indices ordered by day.
// Iteration order over the returned map is not defined; use SubjectList
// for a stable ordering.
func (t *Table) SubjectRows() map[core.SubjectID][]int {
	rows := make(map[core.SubjectID][]int)
	for i, s := range t.subjects {
		rows[s] = append(rows[s], i)
	}
	for _, idx := range rows {
		days := t.days
		sort.Slice(idx, func(a, b int) bool { return days[idx[a]] < days[idx[b]] })
	}
	return rows
}

// SubjectList returns distinct subjects in sorted order.
func (t *Table) SubjectList() []core.SubjectID {
	seen := make(map[core.SubjectID]bool)
	var list []core.SubjectID
	for _, s := range t.subjects {
		if !seen[s] {
			seen[s] = true
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

// ValidateDays checks that every subject's day indices are consecutive
// integers starting at 1, the invariant lagging depends on.
func (t *Table) ValidateDays() error {
	for subject, idx := range t.SubjectRows() {
		for pos, i := range idx {
			if t.days[i] != pos+1 {
				return fmt.Errorf("%w: subject %s has day %d at position %d",
					core.ErrDayGap, subject, t.days[i], pos+1)
			}
		}
	}
	return nil
}

// SortRows orders rows by (subject, day). Loaders call this once after
// ingest; derived columns must be added only after sorting.
func (t *Table) SortRows() {
	n := t.NumRows()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if t.subjects[order[a]] != t.subjects[order[b]] {
			return t.subjects[order[a]] < t.subjects[order[b]]
		}
		return t.days[order[a]] < t.days[order[b]]
	})

	subjects := make([]core.SubjectID, n)
	days := make([]int, n)
	for i, o := range order {
		subjects[i] = t.subjects[o]
		days[i] = t.days[o]
	}
	t.subjects = subjects
	t.days = days

	for key, col := range t.columns {
		sorted := make([]float64, n)
		for i, o := range order {
			sorted[i] = col[o]
		}
		t.columns[key] = sorted
	}
}

// Fingerprint hashes the table content (columns plus row identity) so cache
// keys change whenever the underlying data changes.
func (t *Table) Fingerprint() core.DataFingerprint {
	cols := make(map[string][]float64, len(t.columns)+2)
	for k, v := range t.columns {
		cols[k.String()] = v
	}
	rowID := make([]float64, t.NumRows())
	for i := range rowID {
		rowID[i] = float64(t.days[i])
	}
	cols["__day"] = rowID
	subj := make([]float64, t.NumRows())
	for i, s := range t.subjects {
		subj[i] = float64(len(s)) // cheap marker; subject names are folded below
	}
	cols["__subjects"] = subj

	fp := core.ComputeColumnsFingerprint(cols)
	var names []byte
	for _, s := range t.subjects {
		names = append(names, []byte(s)...)
		names = append(names, ';')
	}
	return core.NewDataFingerprint([]byte(fp.String() + core.NewHash(names).String()))
}
