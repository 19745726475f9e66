package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet is the first worksheet of a workbook, split into its header row
// and the ragged data rows below it.
type Sheet struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// ReadSheet reads an XLSX workbook from r and returns its first worksheet.
// Header cells are trimmed; when a name repeats the leftmost column wins.
func ReadSheet(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: read input")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	s := &Sheet{index: map[string]int{}}
	for i, row := range f.Sheets[0].Rows {
		cells := rowToStrings(row)
		if i == 0 {
			s.Header = cells
			continue
		}
		s.Rows = append(s.Rows, cells)
	}
	for i, h := range s.Header {
		h = strings.TrimSpace(h)
		s.Header[i] = h
		if _, dup := s.index[h]; !dup {
			s.index[h] = i
		}
	}
	return s, nil
}

// Has reports whether the header contains col.
func (s *Sheet) Has(col string) bool {
	_, ok := s.index[col]
	return ok
}

// Cell returns the trimmed value of col in row, or "" when the row is
// shorter than the header or the column is absent.
func (s *Sheet) Cell(row []string, col string) string {
	i, ok := s.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
