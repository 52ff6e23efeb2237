package sink

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Table is a sink read back into memory.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads the CSV file at path. The first record is the header.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return Table{}, nil
	}

	return Table{Header: records[0], Rows: records[1:]}, nil
}

// Column returns the values of the named column, or nil if it is absent.
func (t Table) Column(name string) []string {
	idx := -1
	for i, h := range t.Header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values
}
