package listing

import "strconv"

// Fixed leading columns written by the sink rather than extracted from records.
const (
	ColumnID   = "ID"
	ColumnCity = "City"
)

// Column maps one output column to a path inside a Record.
type Column struct {
	Name string

	// Path is the sequence of object keys leading to the value.
	Path []string

	// Default is written when the value is absent or null.
	Default string

	// Format overrides FormatValue for this column.
	Format func(v any, def string) string
}

// Extract returns the cell value of this column for r.
func (c Column) Extract(r Record) string {
	v := r.Lookup(c.Path...)
	if c.Format != nil {
		return c.Format(v, c.Default)
	}
	return FormatValue(v, c.Default)
}

// Schema is the ordered set of record columns in an output row.
type Schema struct {
	Columns []Column
}

var (
	colName     = Column{Name: "Restaurant Name", Path: []string{"info", "name"}}
	colArea     = Column{Name: "Area Name", Path: []string{"info", "areaName"}}
	colCost     = Column{Name: "Cost for Two", Path: []string{"info", "costForTwo"}}
	colCuisines = Column{Name: "Cuisines", Path: []string{"info", "cuisines"}, Format: JoinList}
	colRating   = Column{Name: "Average Rating", Path: []string{"info", "avgRating"}}
	colTotal    = Column{Name: "Total Ratings", Path: []string{"info", "totalRatingsString"}}
	colOpen     = Column{Name: "Is Open", Path: []string{"info", "isOpen"}}
	colClose    = Column{Name: "Next Close Time", Path: []string{"info", "availability", "nextCloseTime"}}
	colDiscount = Column{Name: "Aggregated Discount Info", Path: []string{"info", "aggregatedDiscountInfoV3", "header"}}
	colService  = Column{Name: "Serviceability", Path: []string{"info", "sla", "serviceability"}, Default: "N/A"}
	colLink     = Column{Name: "Restaurant Link", Path: []string{"cta", "link"}}
)

// DefaultSchema returns the 12-column restaurant row layout.
func DefaultSchema() Schema {
	return Schema{Columns: []Column{
		colName, colArea, colCost, colCuisines, colRating, colTotal,
		colOpen, colClose, colDiscount, colLink,
	}}
}

// ExtendedSchema is DefaultSchema with the delivery serviceability column
// inserted before the restaurant link.
func ExtendedSchema() Schema {
	return Schema{Columns: []Column{
		colName, colArea, colCost, colCuisines, colRating, colTotal,
		colOpen, colClose, colDiscount, colService, colLink,
	}}
}

// Header returns the full header row including ID and City.
func (s Schema) Header() []string {
	header := make([]string, 0, len(s.Columns)+2)
	header = append(header, ColumnID, ColumnCity)
	for _, c := range s.Columns {
		header = append(header, c.Name)
	}
	return header
}

// Flatten extracts the record columns of r in schema order.
func (s Schema) Flatten(r Record) []string {
	values := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		values[i] = c.Extract(r)
	}
	return values
}

// Row builds a complete output row for r.
func (s Schema) Row(id int64, city string, r Record) []string {
	row := make([]string, 0, len(s.Columns)+2)
	row = append(row, strconv.FormatInt(id, 10), city)
	return append(row, s.Flatten(r)...)
}
