package app

import (
	"bufio"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// writeOutputPDF renders the parse output as a one-column PDF. "Key: value"
// lines get a bold key; blank lines separate drug blocks.
func writeOutputPDF(output string, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Prescription extraction", true)
	pdf.SetCreator(UserAgent(), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Prescription extraction", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, time.Now().UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			pdf.Ln(4)
			continue
		}
		if key, val, ok := strings.Cut(line, ": "); ok && !strings.ContainsAny(key, " {}[]\"") {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.Write(5, tr(key+": "))
			pdf.SetFont("Helvetica", "", 11)
			pdf.Write(5, tr(val))
			pdf.Ln(6)
			continue
		}
		pdf.SetFont("Courier", "", 10)
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(outPath)
}
