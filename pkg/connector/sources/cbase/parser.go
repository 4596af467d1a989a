package cbase

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/models"
)

// MissingValue marks a value the forecast could not compute
const MissingValue = "NA"

// timeLayouts are tried in order. Layouts without a zone parse as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseForecast decodes a forecast CSV document. The header decides the
// column order; unknown columns are ignored and every known column must be
// present.
func ParseForecast(data []byte) ([]models.ForecastRow, error) {
	// Excel exports carry a BOM
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrorTypeData, "forecast is empty")
	}
	if err != nil {
		return nil, csvError(err)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []models.ForecastRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := r.FieldPos(0)

		row, err := parseRecord(record, index, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// columnIndex maps each known column to its position in the header
func columnIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}

	index := make(map[string]int, len(models.ForecastColumns)+1)
	required := append([]string{models.TimeColumn}, models.ForecastColumns...)
	var missing []string
	for _, name := range required {
		i, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		index[name] = i
	}

	if len(missing) > 0 {
		return nil, errors.New(errors.ErrorTypeData, "forecast header is missing columns").
			WithDetail("missing", strings.Join(missing, ","))
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int, line int) (models.ForecastRow, error) {
	ts, err := parseTime(record[index[models.TimeColumn]])
	if err != nil {
		return models.ForecastRow{}, errors.Wrap(err, errors.ErrorTypeData, "invalid timestamp").
			WithDetail("line", line).
			WithDetail("column", models.TimeColumn)
	}

	row := models.ForecastRow{
		Time:   ts,
		Values: make(map[string]float64, len(models.ForecastColumns)),
	}

	for _, col := range models.ForecastColumns {
		raw := strings.TrimSpace(record[index[col]])
		if raw == "" || raw == MissingValue {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.ForecastRow{}, errors.Wrap(err, errors.ErrorTypeData, "invalid number").
				WithDetail("line", line).
				WithDetail("column", col).
				WithDetail("value", raw)
		}
		row.Values[col] = v
	}

	return row, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func csvError(err error) error {
	var perr *csv.ParseError
	if stderrors.As(err, &perr) {
		return errors.Wrap(err, errors.ErrorTypeData, "malformed forecast CSV").
			WithDetail("line", perr.Line)
	}
	return errors.Wrap(err, errors.ErrorTypeData, "failed to read forecast CSV")
}
