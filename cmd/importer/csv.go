package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
)

// columnAliases maps accepted header names onto the canonical column.
var columnAliases = map[string]string{
	"test_id":    "test_id",
	"id":         "test_id",
	"latitude":   "latitude",
	"lat":        "latitude",
	"longitude":  "longitude",
	"lon":        "longitude",
	"lng":        "longitude",
	"download":   "download",
	"dlstatus":   "download",
	"upload":     "upload",
	"ulstatus":   "upload",
	"ping":       "ping",
	"pingstatus": "ping",
}

// importStats counts what happened to the rows of one file.
type importStats struct {
	Rows     int
	Imported int
	Skipped  int
}

// batchSink stores one batch and reports how many records it wrote.
type batchSink func(ctx context.Context, records []domain.MeasurementRecord) (int, error)

// importCSV streams r in batches of batchSize into sink. Rows without a
// usable location are skipped; rows without a test id get one from gen.
func importCSV(ctx context.Context, r io.Reader, batchSize int, gen ports.IDGenerator, sink batchSink) (importStats, error) {
	var stats importStats
	if batchSize <= 0 {
		batchSize = 500
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, required := range []string{"latitude", "longitude", "download"} {
		if _, ok := cols[required]; !ok {
			return stats, fmt.Errorf("missing column %q", required)
		}
	}

	batch := make([]domain.MeasurementRecord, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := sink(ctx, batch)
		if err != nil {
			return err
		}
		stats.Imported += n
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.Skipped++
			continue
		}
		stats.Rows++

		rec, ok, err := parseRow(record, cols, gen)
		if err != nil {
			return stats, err
		}
		if !ok {
			stats.Skipped++
			continue
		}
		batch = append(batch, rec)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// parseRow converts one CSV row. ok is false for rows that cannot be placed
// on the map; err is only returned when the id generator fails.
func parseRow(record []string, cols map[string]int, gen ports.IDGenerator) (domain.MeasurementRecord, bool, error) {
	loc, err := domain.ParseGeoPoint(getField(record, cols, "latitude"), getField(record, cols, "longitude"))
	if err != nil {
		return domain.MeasurementRecord{}, false, nil
	}

	rec := domain.MeasurementRecord{Location: &loc}
	var errs [3]error
	rec.Download, errs[0] = domain.ParseSpeedValue(getField(record, cols, "download"))
	rec.Upload, errs[1] = domain.ParseSpeedValue(getField(record, cols, "upload"))
	rec.PingMs, errs[2] = domain.ParseSpeedValue(getField(record, cols, "ping"))
	if errors.Join(errs[:]...) != nil {
		// Same rule as live submissions: one bad figure zeroes all three.
		rec.Download, rec.Upload, rec.PingMs = 0, 0, 0
	}

	if raw := getField(record, cols, "test_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return domain.MeasurementRecord{}, false, nil
		}
		rec.TestID = id
		return rec, true, nil
	}

	id, err := gen.Next()
	if err != nil {
		return domain.MeasurementRecord{}, false, fmt.Errorf("generate test id: %w", err)
	}
	rec.TestID = id
	return rec, true, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		if canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(col))]; ok {
			if _, seen := m[canonical]; !seen {
				m[canonical] = i
			}
		}
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
