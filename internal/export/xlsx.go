// Package export writes activity listings to XLSX workbooks.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/clubscout/clubscout-cli/internal/model"
)

var activityHeader = []string{
	"ID", "Name", "Category", "Subcategory", "Address", "Postal Code", "City",
	"Phone", "Email", "Website", "Latitude", "Longitude", "Updated At",
}

// WriteActivitiesXLSX writes activities to an XLSX workbook at path, one
// row per activity under a header row.
func WriteActivitiesXLSX(path string, activities []model.Activity) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Activities")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range activityHeader {
		header.AddCell().SetString(h)
	}

	for _, a := range activities {
		row := sheet.AddRow()
		row.AddCell().SetString(a.ID)
		row.AddCell().SetString(a.Name)
		row.AddCell().SetString(string(a.Category))
		row.AddCell().SetString(a.Subcategory)
		row.AddCell().SetString(a.Address)
		row.AddCell().SetString(a.PostalCode)
		row.AddCell().SetString(a.City)
		row.AddCell().SetString(a.Phone)
		row.AddCell().SetString(a.Email)
		row.AddCell().SetString(a.Website)
		row.AddCell().SetString(formatCoord(a.Latitude))
		row.AddCell().SetString(formatCoord(a.Longitude))
		row.AddCell().SetString(a.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// Coordinates are exported as text so that unknown positions stay blank
// instead of becoming zero.
func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
