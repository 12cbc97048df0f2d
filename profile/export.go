package profile

import (
	"bytes"
	"fmt"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"pixelfeed/apperr"
	"pixelfeed/utils"
)

func profileURL(userID string) string {
	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		base = "https://pixelfeed.app"
	}
	return fmt.Sprintf("%s/profile/%s", base, userID)
}

// ShareQR handles GET /api/profile/:id/qr — a QR code PNG pointing at
// the public profile page.
func (h *Handlers) ShareQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("id")
	if _, err := h.Store.User(r.Context(), userID); err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	png, err := qrcode.Encode(profileURL(userID), qrcode.Medium, 256)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ProfileCard handles GET /api/profile/:id/card — a downloadable PDF
// card with the profile summary and share QR.
func (h *Handlers) ProfileCard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("id")

	resp, err := h.Agg.Aggregate(r.Context(), userID, "")
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	qrPNG, err := qrcode.Encode(profileURL(userID), qrcode.Medium, 256)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 15, resp.UserName, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	if resp.Biography != "" {
		pdf.MultiCell(0, 8, resp.Biography, "", "C", false)
		pdf.Ln(3)
	}
	pdf.CellFormat(0, 8, fmt.Sprintf("%d posts  |  %d followers  |  %d following",
		resp.PostCount, resp.FollowersCount, resp.FollowingCount), "", 1, "C", false, 0, "")

	imgOpts := gofpdf.ImageOptions{ImageType: "png"}
	pdf.RegisterImageOptionsReader("qr", imgOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 85, 90, 40, 40, false, imgOpts, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 10, "Scan to open the profile.", "T", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=profile-"+userID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
