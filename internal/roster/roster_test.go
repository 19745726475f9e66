package roster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func workbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Responses")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

var header = []string{"Timestamp", ColStudentName, ColClass, ColWhatsApp}

func TestPrepare(t *testing.T) {
	buf := workbook(t, [][]string{
		header,
		{"1/1/2024", "john. doe, 12", "VIII - A", "9876543210"},
		{"1/1/2024", "  PRIYA  sharma/ ", "Class 10", " 9123456780 "},
		{"", "", "", ""},
		{"1/1/2024", "Ravi", "UKG", "9000000000"},
	})

	entries, err := Prepare(buf, Options{SchoolID: "S42", SchoolName: "Green Valley", ClassOffset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, Entry{FirstName: "John Doe", Grade: 1, Phone: "9876543210", SchoolID: "S42"}, entries[0])
	assert.Equal(t, "Priya Sharma", entries[1].FirstName)
	assert.Equal(t, 11, entries[1].Grade)
	assert.Equal(t, "9123456780", entries[1].Phone)
	assert.Equal(t, 1, entries[2].Grade)
}

func TestPrepare_MissingColumns(t *testing.T) {
	buf := workbook(t, [][]string{
		{ColStudentName, "Class"},
		{"a", "1"},
	})

	_, err := Prepare(buf, Options{SchoolID: "S", SchoolName: "N"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "WhatsApp No")
}

func TestPrepare_MissingSchool(t *testing.T) {
	_, err := Prepare(strings.NewReader(""), Options{SchoolID: " ", SchoolName: "N"})
	assert.ErrorIs(t, err, ErrMissingSchool)
}

func TestPrepare_NotAWorkbook(t *testing.T) {
	_, err := Prepare(strings.NewReader("not a zip"), Options{SchoolID: "S", SchoolName: "N"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roster: read sheet")
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"john. doe, 12":       "John Doe",
		"A.B.SINGH":           "A B Singh",
		"  mary   ann  ":      "Mary Ann",
		"12/34":               "",
		"anjali k. / 7th std": "Anjali K Th Std",
		// Apostrophes stay inside the word.
		"o'brien": "O'brien",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanName(in), in)
	}
}

func TestParseGrade(t *testing.T) {
	assert.Equal(t, 8, ParseGrade("VIII - 8B"))
	assert.Equal(t, 10, ParseGrade("Class 10"))
	assert.Equal(t, 0, ParseGrade("UKG"))
	assert.Equal(t, 0, ParseGrade(""))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Entry{
		{FirstName: "John Doe", Grade: 9, Phone: "9876543210", SchoolID: "S42"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"isd_code,first_name,last_name,grade,phone,school_id\n"+
			"91,John Doe,,9,9876543210,S42\n",
		buf.String())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Green_Valley_School.csv", FileName(" Green Valley School "))
}
