package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXFilename is the download name for spreadsheet exports.
const XLSXFilename = "roofing_companies.xlsx"

const sheetName = "Companies"

// WriteXLSX writes the sheet as a single-worksheet XLSX workbook.
func WriteXLSX(w io.Writer, s Sheet) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, s.Header)
	for _, r := range s.Rows {
		addRow(sheet, r)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
