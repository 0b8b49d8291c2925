package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	domain "fleet-analytics/internal/reporting/domain"
)

type pdfRenderer struct{}

// Render lays out a summary block followed by whichever tabular section
// the report carries: alarms for alarm reports, daily production buckets
// otherwise.
func (pdfRenderer) Render(report *domain.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: nil report", domain.ErrRender)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, pdfTitle(report.Type))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Scope: %s (%s)", report.Scope.Name, report.Scope.ID()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s",
		report.Period.Start.UTC().Format(domain.DateLayout),
		report.Period.End.UTC().Format(domain.DateLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	if report.Production != nil {
		writePDFProductionSummary(pdf, report.Production)
	}
	if report.Uptime != nil {
		writePDFUptimeSummary(pdf, report.Uptime)
	}
	if report.Alarms != nil {
		writePDFAlarmSummary(pdf, report.Alarms)
	}

	switch {
	case report.AlarmList != nil:
		writePDFAlarmTable(pdf, report.AlarmList)
	case report.Production != nil:
		writePDFDailyTable(pdf, report.Production)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func (pdfRenderer) ContentType() string { return "application/pdf" }

func (pdfRenderer) Ext() string { return "pdf" }

func pdfTitle(reportType domain.ReportType) string {
	switch reportType {
	case domain.ReportPlantPerformance:
		return "Plant Performance Report"
	case domain.ReportDevicePerformance:
		return "Device Performance Report"
	case domain.ReportAlarms:
		return "Alarm Report"
	case domain.ReportEnergyProduction:
		return "Energy Report"
	default:
		return "Report"
	}
}

func writePDFProductionSummary(pdf *gofpdf.Fpdf, production *domain.AggregationResult) {
	pdf.Cell(0, 6, fmt.Sprintf("Total Production: %s %s", formatFloat(production.Sum), production.Unit))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average: %s", pdfOptFloat(production.Avg)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Max: %s  Min: %s", pdfOptFloat(production.Max), pdfOptFloat(production.Min)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d", production.Count))
	pdf.Ln(8)
}

func writePDFUptimeSummary(pdf *gofpdf.Fpdf, uptime *domain.UptimeStats) {
	pdf.Cell(0, 6, fmt.Sprintf("Uptime: %s%%", pdfOptFloat(uptime.UptimePercent)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Online: %.1f min  Offline: %.1f min  Error: %.1f min  Maintenance: %.1f min",
		uptime.OnlineMinutes, uptime.OfflineMinutes, uptime.ErrorMinutes, uptime.MaintenanceMinutes))
	pdf.Ln(8)
}

func writePDFAlarmSummary(pdf *gofpdf.Fpdf, stats *domain.AlarmStats) {
	pdf.Cell(0, 6, fmt.Sprintf("Total Alarms: %d", stats.Total))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Resolved: %d  Avg Resolution: %s min",
		stats.Resolution.TotalResolved, pdfOptFloat(stats.Resolution.AvgMinutes)))
	pdf.Ln(8)
}

func writePDFAlarmTable(pdf *gofpdf.Fpdf, alarms []domain.AlarmEvent) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(80, 6, "Message", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, "Triggered", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, alarm := range alarms {
		pdf.CellFormat(30, 6, string(alarm.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, string(alarm.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(80, 6, alarm.Message, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, alarm.TriggeredAt.UTC().Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
}

func writePDFDailyTable(pdf *gofpdf.Fpdf, production *domain.AggregationResult) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Sum", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Avg", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, day := range production.DailyData {
		pdf.CellFormat(35, 6, day.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, formatFloat(day.Sum), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, pdfOptFloat(day.Avg), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, pdfOptFloat(day.Max), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, pdfOptFloat(day.Min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", day.Count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
}

func pdfOptFloat(value *float64) string {
	if value == nil {
		return "-"
	}
	return formatFloat(*value)
}
