// Package roster converts a school's student registration sheet into the
// contest platform's bulk upload CSV.
package roster

import (
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/school-cli/internal/fetcher"
)

// Required sheet columns.
const (
	ColStudentName = "Name Of The Student"
	ColClass       = "Class"
	ColWhatsApp    = "WhatsApp No (Provide your correct WhatsApp Number)\n(Login Id & password Will Be Shared On whatsapp Only)"
)

// ISDCode is written on every output row.
const ISDCode = "91"

// Header is the output CSV header.
var Header = []string{"isd_code", "first_name", "last_name", "grade", "phone", "school_id"}

var (
	// ErrMissingColumns is returned when the sheet lacks a required column.
	ErrMissingColumns = eris.New("roster: missing required columns")
	// ErrMissingSchool is returned when the school id or name is empty.
	ErrMissingSchool = eris.New("roster: school id and school name are required")
)

var (
	stripChars = regexp.MustCompile(`[,\d/]`)
	spaces     = regexp.MustCompile(`\s+`)
	firstInt   = regexp.MustCompile(`\d+`)
	titleCaser = cases.Title(language.Und)
)

// Options identifies the school the roster belongs to.
type Options struct {
	SchoolID   string
	SchoolName string
	// ClassOffset is added to each parsed class number, e.g. 1 when
	// registering for next year's contest.
	ClassOffset int
}

func (o Options) validate() error {
	if strings.TrimSpace(o.SchoolID) == "" || strings.TrimSpace(o.SchoolName) == "" {
		return ErrMissingSchool
	}
	return nil
}

// Entry is one student row of the upload file.
type Entry struct {
	FirstName string
	LastName  string
	Grade     int
	Phone     string
	SchoolID  string
}

// Record renders the entry in Header order.
func (e Entry) Record() []string {
	return []string{ISDCode, e.FirstName, e.LastName, strconv.Itoa(e.Grade), e.Phone, e.SchoolID}
}

// Prepare reads the first sheet of an XLSX workbook and builds one entry per
// non-blank student row.
func Prepare(r io.Reader, opts Options) ([]Entry, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	sheet, err := fetcher.ReadSheet(r)
	if err != nil {
		return nil, eris.Wrap(err, "roster: read sheet")
	}

	var missing []string
	for _, col := range []string{ColStudentName, ColClass, ColWhatsApp} {
		if !sheet.Has(col) {
			missing = append(missing, strings.SplitN(col, "\n", 2)[0])
		}
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrMissingColumns, "roster: %s", strings.Join(missing, ", "))
	}

	schoolID := strings.TrimSpace(opts.SchoolID)
	entries := make([]Entry, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		name := sheet.Cell(row, ColStudentName)
		class := sheet.Cell(row, ColClass)
		phone := sheet.Cell(row, ColWhatsApp)
		if name == "" && class == "" && phone == "" {
			continue
		}
		entries = append(entries, Entry{
			FirstName: CleanName(name),
			Grade:     ParseGrade(class) + opts.ClassOffset,
			Phone:     phone,
			SchoolID:  schoolID,
		})
	}

	zap.L().Info("roster: prepared",
		zap.String("school_id", schoolID),
		zap.Int("rows", len(sheet.Rows)),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

// CleanName turns dots into spaces, drops commas, digits and slashes,
// collapses whitespace and title-cases the result.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, ".", " ")
	name = stripChars.ReplaceAllString(name, "")
	name = strings.TrimSpace(spaces.ReplaceAllString(name, " "))
	return titleCaser.String(name)
}

// ParseGrade returns the first integer in a class label such as "VIII - 8B",
// or 0 when there is none.
func ParseGrade(class string) int {
	m := firstInt.FindString(class)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// WriteCSV writes entries with the upload header.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "roster: write header")
	}
	for _, e := range entries {
		if err := cw.Write(e.Record()); err != nil {
			return eris.Wrap(err, "roster: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "roster: flush")
}

// FileName returns the download name for a school's roster.
func FileName(schoolName string) string {
	return strings.ReplaceAll(strings.TrimSpace(schoolName), " ", "_") + ".csv"
}
