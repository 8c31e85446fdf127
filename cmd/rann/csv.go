package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/rann"
	"github.com/hupe1980/rann/matrix"
)

// readPointsCSV loads a point set with one point per row and one
// coordinate per column. The file must be purely numeric.
func readPointsCSV(path string) (*matrix.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	var points [][]float64
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		point := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, len(points)+1, err)
			}
			point[i] = v
		}
		points = append(points, point)
	}

	m, err := matrix.FromPoints(points)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// writeNeighborsCSV writes one row per query holding the k neighbor
// indices into the reference set.
func writeNeighborsCSV(path string, res *rann.Result) error {
	return writeRowsCSV(path, res.NumQueries(), func(q int) []string {
		indices := res.Indices(q)
		row := make([]string, len(indices))
		for i, idx := range indices {
			row[i] = strconv.Itoa(idx)
		}

		return row
	})
}

// writeDistancesCSV writes one row per query holding the k neighbor
// distances, aligned with the neighbor index output.
func writeDistancesCSV(path string, res *rann.Result) error {
	return writeRowsCSV(path, res.NumQueries(), func(q int) []string {
		distances := res.Distances(q)
		row := make([]string, len(distances))
		for i, d := range distances {
			row[i] = strconv.FormatFloat(d, 'g', -1, 64)
		}

		return row
	})
}

func writeRowsCSV(path string, rows int, rowFn func(q int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	for q := range rows {
		if err := w.Write(rowFn(q)); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}
