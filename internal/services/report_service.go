package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	qrcode "github.com/skip2/go-qrcode"
)

type ReportService struct {
	cfg      *config.Config
	campaign *CampaignService
}

func NewReportService(cfg *config.Config, campaign *CampaignService) *ReportService {
	return &ReportService{cfg: cfg, campaign: campaign}
}

// CampaignPDF renders an A4 summary of the release's campaign with a QR code linking
// to the release in the web app.
func (s *ReportService) CampaignPDF(ctx context.Context, release *models.Release) ([]byte, error) {
	view, err := s.campaign.Progress(ctx, release.ID)
	if err != nil {
		return nil, err
	}
	releaseURL := fmt.Sprintf("%s/releases/%s", s.cfg.FrontendURL, release.ID)

	png, err := qrcode.Encode(releaseURL, qrcode.Medium, 512)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(release.Title+" campaign", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, tr(release.Title))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 6, tr(fmt.Sprintf("%s - %s", release.ArtistName, release.Type)))
	pdf.Ln(8)
	pdf.Cell(0, 6, fmt.Sprintf("Progress: %d%% (%d of about %d tasks, %d batches)",
		view.ProgressPercent, view.CompletedCount, view.TotalTasksEstimate, view.BatchCount))
	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 5, "Generated "+time.Now().UTC().Format("2006-01-02 15:04")+" UTC")
	pdf.Ln(10)

	if view.Current != nil {
		section(pdf, "Current task")
		taskLine(pdf, tr, *view.Current)
	}
	if len(view.Pending) > 0 {
		section(pdf, "Up next")
		for _, t := range view.Pending {
			taskLine(pdf, tr, t)
		}
	}
	if len(view.Completed) > 0 {
		section(pdf, "Completed")
		for _, t := range view.Completed {
			taskLine(pdf, tr, t)
		}
	}
	if len(view.Skipped) > 0 {
		section(pdf, "Skipped")
		for _, t := range view.Skipped {
			taskLine(pdf, tr, t)
		}
	}

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opt, bytes.NewReader(png))
	if pdf.GetY()+50 > 280 {
		pdf.AddPage()
	}
	y := pdf.GetY() + 6
	pdf.ImageOptions("qr", 160, y, 40, 40, false, opt, 0, "")
	pdf.SetXY(10, y+16)
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(140, 5, "Open the release: "+releaseURL, "", "L", false)

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to render campaign report: %w", err)
	}
	return out.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
}

func taskLine(pdf *gofpdf.Fpdf, tr func(string) string, t models.CampaignTask) {
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. %s  [%s, %s]", t.Sequence, t.Title, t.Phase, t.Platform)), "", "L", false)
}
