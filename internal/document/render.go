package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

type CertificateData struct {
	DonorName  string
	Date       time.Time
	CenterName string
}

type DonationRow struct {
	DonorName  string
	Date       time.Time
	CenterName string
	Status     string
}

type RequestRow struct {
	PatientName string
	BloodGroup  string
	Quantity    int
	Status      string
}

type ReportData struct {
	GeneratedAt time.Time
	Donations   []DonationRow
	Requests    []RequestRow
}

// Renderer produces the PDF documents handed to donors and admins.
type Renderer interface {
	Certificate(data CertificateData) ([]byte, error)
	Report(data ReportData) ([]byte, error)
}

const dateLayout = "2006-01-02"

type PDFRenderer struct {
	// Title is printed at the foot of certificates and the head of reports.
	Title    string
	compress bool
}

func NewPDFRenderer(title string) *PDFRenderer {
	return &PDFRenderer{Title: title, compress: true}
}

func (r *PDFRenderer) newDoc() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.compress)
	pdf.SetAutoPageBreak(true, 50)
	pdf.SetTitle(r.Title, false)
	return pdf
}

func (r *PDFRenderer) Certificate(data CertificateData) ([]byte, error) {
	pdf := r.newDoc()
	pdf.AddPage()

	centred := func(y float64, style string, size float64, text string) {
		pdf.SetFont("Helvetica", style, size)
		pdf.SetXY(0, y)
		w, _ := pdf.GetPageSize()
		pdf.CellFormat(w, size+4, text, "", 0, "C", false, 0, "")
	}

	centred(100, "B", 20, "Certificate of Appreciation")
	centred(150, "", 14, "This is to certify that")
	centred(180, "B", 16, data.DonorName)
	centred(210, "", 14, fmt.Sprintf("donated blood on %s at %s.", data.Date.Format(dateLayout), data.CenterName))
	centred(240, "", 14, "Thank you for your valuable contribution!")
	centred(270, "I", 12, r.Title)

	return output(pdf)
}

func (r *PDFRenderer) Report(data ReportData) ([]byte, error) {
	pdf := r.newDoc()
	pdf.SetMargins(50, 50, 50)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 20, r.Title+" Report", "", 1, "L", false, 0, "")
	if !data.GeneratedAt.IsZero() {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 14, "Generated "+data.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 18, "Donations:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, d := range data.Donations {
		line := fmt.Sprintf("%s | %s | %s | %s", d.DonorName, d.Date.Format(dateLayout), d.CenterName, d.Status)
		pdf.CellFormat(0, 15, line, "", 1, "L", false, 0, "")
	}

	pdf.Ln(20)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 18, "Blood Requests:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, q := range data.Requests {
		line := fmt.Sprintf("%s | %s | %d | %s", q.PatientName, q.BloodGroup, q.Quantity, q.Status)
		pdf.CellFormat(0, 15, line, "", 1, "L", false, 0, "")
	}

	return output(pdf)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
