package taxonomy

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
)

//go:embed taxonomy.csv
var referenceCSV string

// ParseReference reads a two-column common,scientific CSV. A header row is
// detected and skipped; blank and short rows are ignored.
func ParseReference(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var entries []Entry
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse taxonomy csv: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		common := strings.TrimSpace(record[0])
		scientific := strings.TrimSpace(record[1])
		if first {
			first = false
			if strings.EqualFold(common, "common") {
				continue
			}
		}
		if common == "" || scientific == "" {
			continue
		}
		entries = append(entries, Entry{Common: common, Scientific: scientific})
	}
	return entries, nil
}

var (
	defaultOnce  sync.Once
	defaultIndex *Index
	defaultErr   error
)

// Default returns the index over the bundled reference list. The dataset is
// parsed once per process.
func Default() (*Index, error) {
	defaultOnce.Do(func() {
		entries, err := ParseReference(strings.NewReader(referenceCSV))
		if err != nil {
			defaultErr = err
			return
		}
		defaultIndex = NewIndex(entries)
	})
	return defaultIndex, defaultErr
}
