package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/bblgate/internal/common"
)

// PDFOptions controls PDF rendering. Zero values select the defaults.
type PDFOptions struct {
	Title  string
	QRSize int
}

// SavePDF renders the summary into a PDF document. When the summary carries
// a digest, a QR code of it is placed next to the title.
func SavePDF(sum Summary, out string, opts PDFOptions) error {
	if opts.Title == "" {
		opts.Title = "Flight Log Report"
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(opts.Title, false)
	pdf.SetAuthor("bblctl", false)
	pdf.SetCreator("bblctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	if sum.SHA256 != "" {
		if err := addDigestQR(pdf, sum.SHA256, opts.QRSize); err != nil {
			return err
		}
	}
	addPDFTitle(pdf, opts.Title)
	addLogSection(pdf, sum)
	addDecodeSection(pdf, sum)
	addFrameSection(pdf, sum)
	addEventSection(pdf, sum)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string, size int) error {
	png, err := HashToQR(digest, size)
	if err != nil {
		return fmt.Errorf("digest QR: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest", opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.ImageOptions("digest", pageW-right-30, 15, 30, 30, false, opts, 0, "")
	return nil
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSection(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
}

type labelValue struct {
	label string
	value string
}

func addItems(pdf *gofpdf.Fpdf, items []labelValue) {
	pdf.SetFont("Helvetica", "", 10)
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, emptyFallback(item.value, "-"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addLogSection(pdf *gofpdf.Fpdf, sum Summary) {
	addSection(pdf, "Log")
	m := sum.Metadata
	addItems(pdf, []labelValue{
		{"File", sum.File},
		{"Size", common.FormatBytes(sum.Size)},
		{"SHA-256", sum.SHA256},
		{"Log", fmt.Sprintf("%d of %d", sum.LogIndex, sum.LogCount)},
		{"Product", m.Product},
		{"Data version", strconv.Itoa(m.DataVersion)},
		{"Firmware", strings.TrimSpace(m.FirmwareType + " " + m.FirmwareRevision)},
		{"Firmware date", m.FirmwareDate},
		{"Board", m.BoardInformation},
		{"Craft", m.CraftName},
		{"Log start", m.LogStartDatetime},
	})
}

func addDecodeSection(pdf *gofpdf.Fpdf, sum Summary) {
	addSection(pdf, "Decoding")
	duration := time.Duration(sum.DurationUs) * time.Microsecond
	addItems(pdf, []labelValue{
		{"Iterations", fmt.Sprintf("%d to %d", sum.FirstIteration, sum.LastIteration)},
		{"Duration", duration.Round(time.Millisecond).String()},
		{"Frames decoded", strconv.Itoa(sum.FramesDecoded)},
		{"Frames failed", strconv.Itoa(sum.FramesFailed)},
		{"Frames rejected", strconv.Itoa(sum.FramesRejected)},
		{"Failure rate", fmt.Sprintf("%.2f%%", sum.FailureRate*100)},
		{"Bytes skipped", fmt.Sprintf("%d of %d", sum.BytesSkipped, sum.DataBytes)},
		{"Resyncs", strconv.Itoa(sum.Resyncs)},
		{"End of log", yesNo(sum.EndOfLog)},
		{"Truncated", yesNo(sum.Truncated)},
	})
}

func addFrameSection(pdf *gofpdf.Fpdf, sum Summary) {
	addSection(pdf, "Frames")
	headers := []string{"Type", "Decoded", "Failed", "Rejected", "Fields"}
	widths := []float64{16, 22, 18, 20, 104}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, letter := range sum.FrameLetters() {
		fs := sum.Frames[letter]
		renderTableRow(pdf, widths, []string{
			letter,
			strconv.Itoa(fs.Decoded),
			strconv.Itoa(fs.Failed),
			strconv.Itoa(fs.Rejected),
			strings.Join(fs.Fields, ", "),
		}, 5)
	}
	pdf.Ln(4)
}

func addEventSection(pdf *gofpdf.Fpdf, sum Summary) {
	addSection(pdf, "Events")
	if len(sum.Events) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, "No events recorded.", "", "L", false)
		return
	}
	items := make([]labelValue, 0, len(sum.Events)+1)
	for _, name := range sum.EventNames() {
		items = append(items, labelValue{name, strconv.Itoa(sum.Events[name])})
	}
	if sum.EventsFailed > 0 {
		items = append(items, labelValue{"Undecodable", strconv.Itoa(sum.EventsFailed)})
	}
	addItems(pdf, items)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		lines := pdf.SplitText(emptyFallback(val, "-"), widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
