// Package export writes review artifacts to files reviewers actually
// open.
package export

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/aegis/internal/model"
)

var findingsHeader = []string{
	"Finding ID", "Document", "Unit", "Checker", "Severity", "Confidence",
	"Status", "Suppressed", "Message", "Signature", "Reviewed By", "Reviewed At", "Created At",
}

// WriteFindingsXLSX writes findings to an XLSX workbook at path, one
// row per finding plus a summary sheet with per-severity counts of the
// active set.
func WriteFindingsXLSX(path string, findings []model.Finding) error {
	wb := xlsx.NewFile()

	sheet, err := wb.AddSheet("Findings")
	if err != nil {
		return eris.Wrap(err, "export: add findings sheet")
	}

	header := sheet.AddRow()
	for _, h := range findingsHeader {
		header.AddCell().SetString(h)
	}

	bySeverity := map[model.Severity]int{}
	for _, f := range findings {
		row := sheet.AddRow()
		row.AddCell().SetString(f.ID)
		row.AddCell().SetString(f.DocumentID)
		row.AddCell().SetString(f.UnitID)
		row.AddCell().SetString(f.CheckerID)
		row.AddCell().SetString(string(f.Severity))
		row.AddCell().SetFloat(f.Confidence)
		row.AddCell().SetString(string(f.Status))
		row.AddCell().SetBool(f.AutoSuppressed)
		row.AddCell().SetString(f.Message)
		row.AddCell().SetString(f.ContextSignature)
		row.AddCell().SetString(f.ReviewedBy)
		row.AddCell().SetString(formatTime(f.ReviewedAt))
		row.AddCell().SetString(f.CreatedAt.Format(time.RFC3339))

		if f.Active() && !f.AutoSuppressed {
			bySeverity[f.Severity]++
		}
	}

	summary, err := wb.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	sh := summary.AddRow()
	sh.AddCell().SetString("Severity")
	sh.AddCell().SetString("Active Findings")
	for _, sev := range []model.Severity{
		model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow, model.SeverityInfo,
	} {
		row := summary.AddRow()
		row.AddCell().SetString(string(sev))
		row.AddCell().SetString(fmt.Sprintf("%d", bySeverity[sev]))
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
