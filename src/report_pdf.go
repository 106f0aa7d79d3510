package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	reportTitle = "Photograph Analysis Report"
	pageMargin  = 20.0 // mm
	dateLayout  = "2006-01-02 15:04:05"
)

// DefaultCharts is the chart sequence used when the config names none
var DefaultCharts = []ChartSpec{
	{Kind: ChartBar, Rule: "camera"},
	{Kind: ChartBar, Rule: "lens"},
	{Kind: ChartScatter},
}

// ReportAssembler turns metadata records into a PDF report
type ReportAssembler struct {
	log    *logrus.Entry
	charts []ChartSpec
	topN   int
	dpi    int
}

// NewReportAssembler creates an assembler for the given chart sequence
func NewReportAssembler(log *logrus.Logger, charts []ChartSpec, topN, dpi int) *ReportAssembler {
	if len(charts) == 0 {
		charts = DefaultCharts
	}
	return &ReportAssembler{
		log:    log.WithField("component", "report"),
		charts: charts,
		topN:   topN,
		dpi:    dpi,
	}
}

// Summarize computes the summary table. It fails when no record has a
// capture date, since the table needs both ends of the range.
func Summarize(sourceDir string, records []*PhotoMetadata, stats ReadStats, now time.Time) (ReportSummary, error) {
	earliest, latest, err := CaptureRange(records)
	if err != nil {
		return ReportSummary{}, err
	}
	return ReportSummary{
		RunID:       uuid.NewString(),
		SourceDir:   sourceDir,
		Photos:      len(records),
		Skipped:     stats.Skipped + stats.NoAperture,
		Earliest:    earliest,
		Latest:      latest,
		GeneratedAt: now,
	}, nil
}

// Build writes the full report for records to outputPath
func (ra *ReportAssembler) Build(outputPath, sourceDir string, records []*PhotoMetadata, stats ReadStats) (ReportSummary, error) {
	summary, err := Summarize(sourceDir, records, stats, time.Now())
	if err != nil {
		return ReportSummary{}, err
	}

	charts, err := ra.RenderCharts(records, nil)
	if err != nil {
		return ReportSummary{}, err
	}

	if err := ra.Write(outputPath, summary, charts); err != nil {
		return ReportSummary{}, err
	}
	return summary, nil
}

// RenderCharts renders the configured charts in order
func (ra *ReportAssembler) RenderCharts(records []*PhotoMetadata, progressChan chan<- ScanProgress) ([]*ChartImage, error) {
	images := make([]*ChartImage, 0, len(ra.charts))
	for i, spec := range ra.charts {
		img, err := RenderChart(spec, records, ra.topN, ra.dpi)
		if err != nil {
			return nil, fmt.Errorf("render chart %d: %w", i+1, err)
		}
		ra.log.WithFields(logrus.Fields{
			"chart": img.Name,
			"bytes": len(img.PNG),
		}).Debug("chart rendered")
		images = append(images, img)

		if progressChan != nil {
			select {
			case progressChan <- ScanProgress{
				ProcessedFiles: i + 1,
				TotalFiles:     len(ra.charts),
				CurrentFile:    img.Title,
			}:
			default:
			}
		}
	}
	return images, nil
}

// Write assembles the document in a temp file and moves it to outputPath
// once complete. A failed write leaves no file at outputPath.
func (ra *ReportAssembler) Write(outputPath string, summary ReportSummary, charts []*ChartImage) error {
	tmp, err := os.CreateTemp("", "photo-report-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writePDF(tmp, summary, charts); err != nil {
		tmp.Close()
		return fmt.Errorf("assemble pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	// CreateTemp uses 0600
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod temp report: %w", err)
	}

	if err := finalizeReport(tmp.Name(), outputPath); err != nil {
		return err
	}
	ra.log.WithFields(logrus.Fields{
		"path":   outputPath,
		"run_id": summary.RunID,
		"charts": len(charts),
	}).Info("report written")
	return nil
}

// writePDF lays out the title, summary table and charts on A4 pages
func writePDF(w io.Writer, summary ReportSummary, charts []*ChartImage) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(reportTitle, true)
	pdf.SetCreator("photo-report", true)
	pdf.SetSubject("run "+summary.RunID, true)
	pdf.AliasNbPages("")

	// Core fonts are cp1252; translate labels that carry other characters
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, reportTitle, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, tr("Source: "+summary.SourceDir), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Generated: "+summary.GeneratedAt.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	rows := [][2]string{
		{"Photos", humanize.Comma(int64(summary.Photos))},
		{"Skipped files", humanize.Comma(int64(summary.Skipped))},
		{"Earliest capture", summary.Earliest.Format(dateLayout)},
		{"Latest capture", summary.Latest.Format(dateLayout)},
	}
	pdf.SetFillColor(235, 235, 235)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 7, row[0], "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, row[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	left, _, right, bottom := pdf.GetMargins()
	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - left - right
	opts := fpdf.ImageOptions{ImageType: "PNG"}

	for i, chart := range charts {
		h := contentW * chart.Height / chart.Width
		if pdf.GetY()+8+h > pageH-bottom {
			pdf.AddPage()
		}

		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, tr(chart.Title), "", 1, "L", false, 0, "")

		name := fmt.Sprintf("%02d-%s", i, chart.Name)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(chart.PNG))
		pdf.ImageOptions(name, left, pdf.GetY(), contentW, h, false, opts, 0, "")
		pdf.SetY(pdf.GetY() + h + 4)
	}

	return pdf.Output(w)
}
