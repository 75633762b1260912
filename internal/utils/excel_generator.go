package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"rainsync/internal/models"
)

const readingsSheet = "Readings"

// CreateExcelFile writes rainfall readings into an xlsx workbook with a
// data sheet and a small summary sheet.
func CreateExcelFile(path string, readings []models.RainfallReading) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(readingsSheet)
	if err != nil {
		return err
	}

	headers := []string{
		"Sensor ID", "Sensor Name", "Unit", "Device", "Latitude", "Longitude",
		"Measured At", "Calibrated", "Raw", "Synced At",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(readingsSheet, cell, header)
	}

	for rowIdx, r := range readings {
		rowNum := rowIdx + 2 // header occupies row 1

		f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", rowNum), r.SensorCompanyID)
		f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", rowNum), r.SensorName)
		f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", rowNum), r.SensorUnit)
		if r.DeviceName != nil {
			f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", rowNum), *r.DeviceName)
		}
		if r.GPSLocationLat != nil {
			f.SetCellValue(readingsSheet, fmt.Sprintf("E%d", rowNum), *r.GPSLocationLat)
		}
		if r.GPSLocationLng != nil {
			f.SetCellValue(readingsSheet, fmt.Sprintf("F%d", rowNum), *r.GPSLocationLng)
		}
		f.SetCellValue(readingsSheet, fmt.Sprintf("G%d", rowNum),
			r.Datetime.Format("2006-01-02 15:04:05"))
		if r.ValueCalibration != nil {
			f.SetCellValue(readingsSheet, fmt.Sprintf("H%d", rowNum), *r.ValueCalibration)
		}
		if r.ValueRaw != nil {
			f.SetCellValue(readingsSheet, fmt.Sprintf("I%d", rowNum), *r.ValueRaw)
		}
		f.SetCellValue(readingsSheet, fmt.Sprintf("J%d", rowNum),
			r.SyncedAt.Format("2006-01-02 15:04:05"))
	}

	for i := 1; i <= len(headers); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(readingsSheet, colName, colName, 20)
	}

	if len(readings) > 0 {
		createInfoSheet(f, readings)
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	return f.SaveAs(path)
}

func createInfoSheet(f *excelize.File, readings []models.RainfallReading) {
	f.NewSheet("Info")

	total := 0.0
	sensors := make(map[string]bool)
	for _, r := range readings {
		sensors[r.SensorCompanyID] = true
		if r.ValueCalibration != nil {
			total += *r.ValueCalibration
		}
	}

	rows := [][2]interface{}{
		{"Report Generated", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{"Total Records", len(readings)},
		{"Sensors", len(sensors)},
		{"Time Range", fmt.Sprintf("%s to %s",
			readings[len(readings)-1].Datetime.Format("2006-01-02 15:04:05"),
			readings[0].Datetime.Format("2006-01-02 15:04:05"))},
		{"Total Rainfall (calibrated)", fmt.Sprintf("%.2f", total)},
	}

	for i, row := range rows {
		f.SetCellValue("Info", fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue("Info", fmt.Sprintf("B%d", i+1), row[1])
	}
	f.SetColWidth("Info", "A", "B", 30)
}

// SaveAsJSON writes the readings as an indented JSON array.
func SaveAsJSON(path string, data interface{}) error {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0644)
}
