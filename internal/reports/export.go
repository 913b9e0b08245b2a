// Package reports renders downloadable sensor and watering reports.
package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	registry "watering-cloud/internal/registry/domain"
	relay "watering-cloud/internal/relay/domain"
	sensors "watering-cloud/internal/sensors/domain"
)

// BuildSensorLogXLSX renders a spreadsheet of recent sensor readings.
func BuildSensorLogXLSX(device *registry.Device, logs []sensors.Log) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	logsSheet := "readings"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(logsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Sensor Log Export")
	_ = f.SetCellValue(summarySheet, "A3", "Device")
	_ = f.SetCellValue(summarySheet, "B3", device.Name)
	_ = f.SetCellValue(summarySheet, "A4", "IP Address")
	_ = f.SetCellValue(summarySheet, "B4", device.IPAddress)
	_ = f.SetCellValue(summarySheet, "A5", "Status")
	_ = f.SetCellValue(summarySheet, "B5", string(device.Status))
	if device.LastSeenAt != nil {
		_ = f.SetCellValue(summarySheet, "A6", "Last Seen")
		_ = f.SetCellValue(summarySheet, "B6", device.LastSeenAt.Format(time.RFC3339))
	}
	_ = f.SetCellValue(summarySheet, "A7", "Readings")
	_ = f.SetCellValue(summarySheet, "B7", len(logs))

	_ = f.SetCellValue(logsSheet, "A1", "Recorded At")
	_ = f.SetCellValue(logsSheet, "B1", "Sensor")
	_ = f.SetCellValue(logsSheet, "C1", "Status")
	for i, log := range logs {
		row := i + 2
		_ = f.SetCellValue(logsSheet, fmt.Sprintf("A%d", row), log.CreatedAt.Format(time.RFC3339))
		_ = f.SetCellValue(logsSheet, fmt.Sprintf("B%d", row), log.SensorNumber)
		_ = f.SetCellValue(logsSheet, fmt.Sprintf("C%d", row), log.Status)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildWateringPDF renders a device summary plus its recent relay activity.
func BuildWateringPDF(device *registry.Device, logs []relay.Log) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Watering Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Device: %s", device.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("IP Address: %s", device.IPAddress))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", device.Status))
	pdf.Ln(5)
	if device.LastSeenAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Last Seen: %s", device.LastSeenAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	// Activity table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Action", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Duration (s)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, log := range logs {
		duration := "-"
		if log.DurationSeconds != nil {
			duration = fmt.Sprintf("%d", *log.DurationSeconds)
		}
		pdf.CellFormat(60, 6, log.CreatedAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, log.Action, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, duration, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
