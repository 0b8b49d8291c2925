package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	domain "fleet-analytics/internal/reporting/domain"
)

type excelRenderer struct{}

// Render writes a summary sheet plus a data sheet holding the report's
// tabular section.
func (excelRenderer) Render(report *domain.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: nil report", domain.ErrRender)
	}

	f := excelize.NewFile()
	summarySheet := "summary"
	dataSheet := "data"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(dataSheet); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}

	_ = f.SetCellValue(summarySheet, "A1", pdfTitle(report.Type))
	_ = f.SetCellValue(summarySheet, "A3", "Scope")
	_ = f.SetCellValue(summarySheet, "B3", report.Scope.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Scope ID")
	_ = f.SetCellValue(summarySheet, "B4", report.Scope.ID())
	_ = f.SetCellValue(summarySheet, "A5", "Period Start")
	_ = f.SetCellValue(summarySheet, "B5", report.Period.Start.UTC().Format(domain.DateLayout))
	_ = f.SetCellValue(summarySheet, "A6", "Period End")
	_ = f.SetCellValue(summarySheet, "B6", report.Period.End.UTC().Format(domain.DateLayout))
	_ = f.SetCellValue(summarySheet, "A7", "Generated")
	_ = f.SetCellValue(summarySheet, "B7", report.GeneratedAt.UTC().Format(time.RFC3339))

	row := 9
	if report.Production != nil {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total Production")
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), report.Production.Sum)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), report.Production.Unit)
		row++
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Average")
		setOptCell(f, summarySheet, fmt.Sprintf("B%d", row), report.Production.Avg)
		row++
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Sample Count")
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), report.Production.Count)
		row++
	}
	if report.Uptime != nil {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Uptime Percent")
		setOptCell(f, summarySheet, fmt.Sprintf("B%d", row), report.Uptime.UptimePercent)
		row++
	}
	if report.Alarms != nil {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Total Alarms")
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), report.Alarms.Total)
		row++
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Resolved Alarms")
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), report.Alarms.Resolution.TotalResolved)
	}

	switch {
	case report.AlarmList != nil:
		writeExcelAlarmRows(f, dataSheet, report.AlarmList)
	case report.Production != nil:
		writeExcelDailyRows(f, dataSheet, report.Production)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func (excelRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (excelRenderer) Ext() string { return "xlsx" }

func writeExcelAlarmRows(f *excelize.File, sheet string, alarms []domain.AlarmEvent) {
	headers := []string{"ID", "Plant", "Device", "Severity", "Status", "Message", "Triggered", "Resolved"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, alarm := range alarms {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), alarm.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), alarm.PlantID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), alarm.DeviceID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), string(alarm.Severity))
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), string(alarm.Status))
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), alarm.Message)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), alarm.TriggeredAt.UTC().Format(time.RFC3339))
		if alarm.ResolvedAt != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), alarm.ResolvedAt.UTC().Format(time.RFC3339))
		}
	}
}

func writeExcelDailyRows(f *excelize.File, sheet string, production *domain.AggregationResult) {
	headers := []string{"Date", "Sum", "Avg", "Max", "Min", "Count", "Unit"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, day := range production.DailyData {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), day.Date)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), day.Sum)
		setOptCell(f, sheet, fmt.Sprintf("C%d", row), day.Avg)
		setOptCell(f, sheet, fmt.Sprintf("D%d", row), day.Max)
		setOptCell(f, sheet, fmt.Sprintf("E%d", row), day.Min)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), day.Count)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), production.Unit)
	}
}

// setOptCell leaves the cell empty for the no-data marker.
func setOptCell(f *excelize.File, sheet, cell string, value *float64) {
	if value == nil {
		return
	}
	_ = f.SetCellValue(sheet, cell, *value)
}
