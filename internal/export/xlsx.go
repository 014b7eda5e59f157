// Package export writes state summaries and installations as XLSX workbooks
// and GeoJSON feature collections.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/solar-cli/pkg/solar"
)

var summaryHeader = []string{
	"State", "Installations", "Total Capacity AC (MW)", "Total Capacity DC (MW)",
	"Average Capacity (MW)", "Total Area", "Latest Year",
}

var installationHeader = []string{
	"Case ID", "Name", "State", "County", "Latitude", "Longitude", "Year",
	"Capacity AC (MW)", "Capacity DC (MW)", "Technology", "Axis Type", "Area", "Battery",
}

// WriteSummariesXLSX writes one row per state summary to a single-sheet workbook.
func WriteSummariesXLSX(w io.Writer, rows []solar.StateSummary) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("State Summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	addHeader(sheet, summaryHeader)

	for _, s := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(s.State)
		row.AddCell().SetInt(s.InstallationCount)
		row.AddCell().SetFloat(s.TotalCapacityAC)
		row.AddCell().SetFloat(s.TotalCapacityDC)
		row.AddCell().SetFloat(s.AvgCapacity)
		row.AddCell().SetFloat(s.TotalArea)
		setOptInt(row.AddCell(), s.LatestYear)
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

// WriteInstallationsXLSX writes one row per installation. Null fields are
// left blank.
func WriteInstallationsXLSX(w io.Writer, insts []solar.Installation) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Installations")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	addHeader(sheet, installationHeader)

	for _, in := range insts {
		row := sheet.AddRow()
		row.AddCell().SetInt64(in.CaseID)
		setOptString(row.AddCell(), in.Name)
		row.AddCell().SetString(in.State)
		row.AddCell().SetString(in.County)
		row.AddCell().SetFloat(in.Latitude)
		row.AddCell().SetFloat(in.Longitude)
		setOptInt(row.AddCell(), in.Year)
		setOptFloat(row.AddCell(), in.CapacityAC)
		setOptFloat(row.AddCell(), in.CapacityDC)
		setOptString(row.AddCell(), in.Technology)
		setOptString(row.AddCell(), in.AxisType)
		setOptFloat(row.AddCell(), in.Area)
		row.AddCell().SetBool(in.HasBattery)
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func setOptString(c *xlsx.Cell, v *string) {
	if v != nil {
		c.SetString(*v)
	}
}

func setOptInt(c *xlsx.Cell, v *int) {
	if v != nil {
		c.SetInt(*v)
	}
}

func setOptFloat(c *xlsx.Cell, v *float64) {
	if v != nil {
		c.SetFloat(*v)
	}
}
