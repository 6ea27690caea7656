// Package export renders claim lists as spreadsheets.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"p9e.in/reasonsform/models"
)

const sheetName = "Claims"

// Format is a supported export format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat defaults to xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType is the response media type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename is the attachment name for an export taken at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("claims_%s.%s", t.Format("20060102_150405"), f)
}

type column struct {
	header string
	width  float64
	value  func(models.RequestListItem) any
}

var columns = []column{
	{"Request code", 22, func(r models.RequestListItem) any { return r.RequestCode }},
	{"Type", 18, func(r models.RequestListItem) any { return r.RequestType.Label() }},
	{"Status", 12, func(r models.RequestListItem) any { return string(r.Status) }},
	{"Request date", 12, func(r models.RequestListItem) any { return r.RequestDate }},
	{"Deposit date", 12, func(r models.RequestListItem) any { return r.DepositDate }},
	{"Deposit time", 10, func(r models.RequestListItem) any {
		if r.DepositTime == nil {
			return ""
		}
		return *r.DepositTime
	}},
	{"Deposit amount", 16, func(r models.RequestListItem) any { return r.DepositAmount }},
	{"Bank", 16, func(r models.RequestListItem) any { return r.BankName }},
	{"Beneficiary account", 20, func(r models.RequestListItem) any { return r.BeneficiaryAccount }},
	{"Account holder", 16, func(r models.RequestListItem) any { return r.BeneficiaryAccountName }},
	{"Contractor code", 14, func(r models.RequestListItem) any { return r.ContractorCode }},
	{"Merchant code", 14, func(r models.RequestListItem) any { return r.MerchantCode }},
	{"Applicant", 14, func(r models.RequestListItem) any { return r.ApplicantName }},
	{"Phone", 14, func(r models.RequestListItem) any { return r.ApplicantPhone }},
	{"Details", 40, func(r models.RequestListItem) any { return r.Details }},
	{"Files", 8, func(r models.RequestListItem) any { return r.FileCount }},
	{"Created at", 20, func(r models.RequestListItem) any { return r.CreatedAt.Format("2006-01-02 15:04:05") }},
}

// Headers returns the column headers in output order.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// Write renders items in format f.
func Write(f Format, items []models.RequestListItem) ([]byte, error) {
	if f == FormatCSV {
		return CSV(items)
	}
	return XLSX(items)
}

// XLSX renders items as a workbook with a styled, frozen header row.
func XLSX(items []models.RequestListItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return nil, err
	}

	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, c.header); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, c.width); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return nil, err
	}

	amountCol := -1
	for i, c := range columns {
		if c.header == "Deposit amount" {
			amountCol = i + 1
		}
	}
	for r, item := range items {
		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := f.SetCellValue(sheetName, cell, c.value(item)); err != nil {
				return nil, err
			}
		}
		if amountCol > 0 {
			cell, _ := excelize.CoordinatesToCellName(amountCol, r+2)
			if err := f.SetCellStyle(sheetName, cell, cell, amountStyle); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSV renders items with a UTF-8 BOM so spreadsheet tools detect the encoding
// of non-ASCII names.
func CSV(items []models.RequestListItem) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)

	if err := w.Write(Headers()); err != nil {
		return nil, err
	}
	record := make([]string, len(columns))
	for _, item := range items {
		for i, c := range columns {
			record[i] = toString(c.value(item))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
