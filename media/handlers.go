package media

import (
	"bytes"
	"io"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"pixelfeed/apperr"
	"pixelfeed/utils"
)

type Handlers struct {
	Uploader *Uploader
}

// UploadImage handles POST /api/media/upload: multipart "file" in,
// public URL out. A local thumbnail is generated best effort.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Image file missing")
		return
	}
	defer file.Close()

	if !utils.ValidateImageFileType(w, header) {
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	imageURL, err := h.Uploader.Upload(r.Context(), header.Filename, bytes.NewReader(data))
	if err != nil {
		utils.RespondWithError(w, apperr.Status(err), err.Error())
		return
	}

	thumbURL, err := SaveThumbnail(bytes.NewReader(data), 300, 300)
	if err != nil {
		log.Printf("thumbnail generation failed: %v", err)
		thumbURL = ""
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"imageUrl": imageURL,
		"thumbUrl": thumbURL,
	})
}
