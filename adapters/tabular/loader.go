package tabular

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	applog "solodiary/internal"
)

// Source column headers as they appear in the survey exports.
const (
	hdrSubject      = "ID"
	hdrDay          = "Day"
	hdrSatisfaction = "Satisfaction"
	hdrLonely       = "Lonely"
	hdrAlonely      = "Alonely"
	hdrStress       = "Stress"
	hdrAutonomy     = "Autonomy"
	hdrChoice       = "Choice"
	hdrSolitudeTime = "STime"
	hdrMotivation   = "SDMotivation"
	hdrAge          = "Age"
	hdrGender       = "Gender"
)

var diaryHeaderByColumn = map[core.VariableKey]string{
	diary.ColSatisfaction: hdrSatisfaction,
	diary.ColLonely:       hdrLonely,
	diary.ColAlonely:      hdrAlonely,
	diary.ColStress:       hdrStress,
	diary.ColAutonomy:     hdrAutonomy,
	diary.ColChoice:       hdrChoice,
	diary.ColSolitudeTime: hdrSolitudeTime,
}

// Loader reads the diary and baseline tables, coerces types, joins them by
// subject and validates the day structure. Implements ports.DatasetLoaderPort.
type Loader struct {
	config  LoaderConfig
	fetcher *Fetcher
	logger  *applog.Logger
}

// LoaderConfig locates the two source tables.
type LoaderConfig struct {
	DiaryFile    string
	BaselineFile string
	DiaryURL     string
	BaselineURL  string
}

// NewLoader creates a dataset loader.
func NewLoader(config LoaderConfig, logger *applog.Logger) *Loader {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	return &Loader{
		config:  config,
		fetcher: NewFetcher(),
		logger:  logger,
	}
}

// Load produces the joined observation table.
func (l *Loader) Load(ctx context.Context) (*diary.Table, error) {
	if err := l.fetcher.Ensure(ctx, l.config.DiaryFile, l.config.DiaryURL); err != nil {
		return nil, err
	}
	if err := l.fetcher.Ensure(ctx, l.config.BaselineFile, l.config.BaselineURL); err != nil {
		return nil, err
	}

	diaryRaw, err := NewDataReader(l.config.DiaryFile).ReadTable()
	if err != nil {
		return nil, err
	}
	baselineRaw, err := NewDataReader(l.config.BaselineFile).ReadTable()
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded %s (%d rows) and %s (%d rows)",
		diaryRaw.Source, len(diaryRaw.Rows), baselineRaw.Source, len(baselineRaw.Rows))

	baselines, err := parseBaselines(baselineRaw)
	if err != nil {
		return nil, err
	}

	table, err := joinDiary(diaryRaw, baselines)
	if err != nil {
		return nil, err
	}

	table.SortRows()
	if err := table.ValidateDays(); err != nil {
		return nil, err
	}

	l.logger.Info("joined table: %d observations, %d subjects",
		table.NumRows(), len(table.SubjectList()))
	return table, nil
}

// parseBaselines reads the person-level table and grand-mean-centers the
// self-determined motivation score across subjects.
func parseBaselines(raw *RawTable) (map[core.SubjectID]diary.Baseline, error) {
	idIdx, err := raw.ColumnIndex(hdrSubject)
	if err != nil {
		return nil, err
	}
	motIdx, err := raw.ColumnIndex(hdrMotivation)
	if err != nil {
		return nil, err
	}
	ageIdx, err := raw.ColumnIndex(hdrAge)
	if err != nil {
		return nil, err
	}
	genderIdx, err := raw.ColumnIndex(hdrGender)
	if err != nil {
		return nil, err
	}

	baselines := make(map[core.SubjectID]diary.Baseline)
	var motivations []float64
	for i, row := range raw.Rows {
		subject, err := core.ParseSubjectID(row[idIdx])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", raw.Source, i+2, err)
		}
		b := diary.Baseline{
			Subject:    subject,
			Motivation: parseCell(row[motIdx]),
			Age:        parseCell(row[ageIdx]),
			Gender:     row[genderIdx],
		}
		baselines[subject] = b
		if !math.IsNaN(b.Motivation) {
			motivations = append(motivations, b.Motivation)
		}
	}

	grandMean, err := stats.Mean(motivations)
	if err != nil {
		return nil, fmt.Errorf("%s: no usable motivation scores: %w", raw.Source, err)
	}
	for subject, b := range baselines {
		b.Motivation -= grandMean
		baselines[subject] = b
	}
	return baselines, nil
}

// joinDiary coerces the diary rows and joins the baseline record of each
// subject onto every one of its observations.
func joinDiary(raw *RawTable, baselines map[core.SubjectID]diary.Baseline) (*diary.Table, error) {
	idIdx, err := raw.ColumnIndex(hdrSubject)
	if err != nil {
		return nil, err
	}
	dayIdx, err := raw.ColumnIndex(hdrDay)
	if err != nil {
		return nil, err
	}

	colIdx := make(map[core.VariableKey]int, len(diaryHeaderByColumn))
	for col, hdr := range diaryHeaderByColumn {
		idx, err := raw.ColumnIndex(hdr)
		if err != nil {
			return nil, err
		}
		colIdx[col] = idx
	}

	table := diary.NewTable(len(raw.Rows))
	for i, row := range raw.Rows {
		subject, err := core.ParseSubjectID(row[idIdx])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", raw.Source, i+2, err)
		}
		day, err := strconv.Atoi(row[dayIdx])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad day %q: %w", raw.Source, i+2, row[dayIdx], err)
		}

		baseline, ok := baselines[subject]
		if !ok {
			return nil, fmt.Errorf("%s row %d: subject %s has no baseline record",
				raw.Source, i+2, subject)
		}

		values := make(map[core.VariableKey]float64, len(colIdx)+3)
		for col, idx := range colIdx {
			values[col] = parseCell(row[idx])
		}
		values[diary.ColDay] = float64(day)
		values[diary.ColMotivation] = baseline.Motivation
		values[diary.ColAge] = baseline.Age

		table.AppendRow(subject, day, values)
		table.SetGender(subject, baseline.Gender)
	}
	return table, nil
}

// parseCell coerces a cell to float64, mapping empty and NA markers to NaN.
func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
