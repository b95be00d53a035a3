package export

import "fmt"

// Sheet is a rectangular gradebook extract: one header row, then one row per student.
type Sheet struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer turns a Sheet into a downloadable document.
type Renderer interface {
	Render(sheet Sheet) ([]byte, error)
	ContentType() string
	Extension() string
}

func (s Sheet) validate() error {
	if len(s.Headers) == 0 {
		return fmt.Errorf("sheet requires at least one header")
	}
	for i, row := range s.Rows {
		if len(row) != len(s.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(s.Headers))
		}
	}
	return nil
}
