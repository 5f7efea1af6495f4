// Package export renders pin and result listings as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/xuri/excelize/v2"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" (case-insensitive); empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename builds a dated download name such as pins-2024-05-01.csv.
func (f Format) Filename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), f)
}

// Table is a sheet of string cells with a header row.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// PinsTable lays out pins as Pin, Exam, Status, Created.
func PinsTable(pins []model.Pin) Table {
	t := Table{Sheet: "Pins", Header: []string{"Pin", "Exam", "Status", "Created"}}
	for _, p := range pins {
		t.Rows = append(t.Rows, []string{
			p.Pin,
			safeText(p.ExamTitle),
			string(p.Status),
			p.CreatedAt.Format("2006-01-02"),
		})
	}
	return t
}

// ResultsTable lays out results one row per submission.
func ResultsTable(results []model.Result) Table {
	t := Table{Sheet: "Results", Header: []string{
		"Student", "Exam", "Pin", "Score", "Total Points", "Percentage", "Passed", "Reason", "Submitted",
	}}
	for _, r := range results {
		passed := "no"
		if r.Passed {
			passed = "yes"
		}
		t.Rows = append(t.Rows, []string{
			safeText(r.StudentName),
			safeText(r.ExamTitle),
			r.Pin,
			strconv.Itoa(r.Score),
			strconv.Itoa(r.TotalPoints),
			strconv.Itoa(r.Percentage) + "%",
			passed,
			string(r.SubmitReason),
			r.CreatedAt.Format(time.RFC3339),
		})
	}
	return t
}

// safeText stops spreadsheet applications from evaluating user-entered
// text as a formula by quoting cells that start with a formula trigger.
func safeText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// Write encodes t to w in the given format.
func Write(w io.Writer, f Format, t Table) error {
	if f == FormatXLSX {
		return WriteXLSX(w, t)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes t as RFC 4180 CSV.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes t as a single-sheet workbook.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := writeRow(sw, 1, t.Header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := writeRow(sw, i+2, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

func writeRow(sw *excelize.StreamWriter, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return sw.SetRow(cell, values)
}
