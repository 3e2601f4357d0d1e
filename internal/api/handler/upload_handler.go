package handler

import (
	"errors"
	"html/template"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tradepoll/delivery-service/internal/domain"
	"github.com/tradepoll/delivery-service/internal/service"
)

// maxUploadBytes bounds a single screenshot upload.
const maxUploadBytes = 10 << 20

// UploadHandler serves the admin artifact upload and the tokenised
// execution-proof upload page.
type UploadHandler struct {
	svc    *service.UploadService
	logger *zap.Logger
}

func NewUploadHandler(svc *service.UploadService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{svc: svc, logger: logger}
}

// AttachArtifact handles POST /api/v1/polls/{id}/options/{optionID}/artifact
//
// @Summary  Attach the reference screenshot to a poll option
// @Tags     polls
// @Accept   multipart/form-data
// @Produce  json
// @Param    id        path      int   true  "Poll ID"
// @Param    optionID  path      int   true  "Option ID"
// @Param    file      formData  file  true  "Screenshot"
// @Success  201       {object}  map[string]string
// @Failure  404       {object}  map[string]string
// @Router   /api/v1/polls/{id}/options/{optionID}/artifact [post]
func (h *UploadHandler) AttachArtifact(w http.ResponseWriter, r *http.Request) {
	key, ok := selectionPath(w, r)
	if !ok {
		return
	}

	file, header, err := formFile(r)
	if err != nil {
		mapError(w, err)
		return
	}
	defer file.Close()

	artifact, err := h.svc.AttachArtifact(r.Context(), key.PollID, key.OptionID, header.Filename, file)
	if err != nil {
		h.logger.Warn("attach artifact failed",
			zap.Int64("poll_id", key.PollID),
			zap.Int64("option_id", key.OptionID),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"file_path": artifact.FilePath})
}

var uploadFormTmpl = template.Must(template.New("upload").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Upload execution proof</title></head>
<body>
<h2>Upload your execution screenshot</h2>
<p>Poll #{{.PollID}}, option #{{.OptionID}}. This link works exactly once.</p>
<form method="post" enctype="multipart/form-data">
  <input type="file" name="file" accept="image/*" required>
  <button type="submit">Upload</button>
</form>
</body>
</html>`))

var uploadDoneTmpl = template.Must(template.New("done").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Upload received</title></head>
<body>
<h2>Thanks, your execution proof was recorded.</h2>
<p>This upload link is now used up.</p>
</body>
</html>`))

// ShowForm handles GET /upload/{token}. An invalid, expired, or spent token
// gets a plain 410 page instead of the form.
func (h *UploadHandler) ShowForm(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	row, err := h.svc.PeekToken(r.Context(), tok)
	if err != nil {
		uploadGone(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = uploadFormTmpl.Execute(w, map[string]int64{
		"PollID":   row.Key.PollID,
		"OptionID": row.Key.OptionID,
	})
}

// SubmitProof handles POST /upload/{token}. The token is consumed only when
// the file has been stored; losing the single-use race yields the same 410
// as an expired link.
func (h *UploadHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	file, header, err := formFile(r)
	if err != nil {
		mapError(w, err)
		return
	}
	defer file.Close()

	exec, err := h.svc.SubmitExecution(r.Context(), tok, header.Filename, file)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			uploadGone(w)
			return
		}
		h.logger.Error("execution upload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("execution uploaded via token link",
		zap.Int64("poll_id", exec.Key.PollID),
		zap.Int64("user_id", exec.Key.UserID),
	)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = uploadDoneTmpl.Execute(w, nil)
}

func uploadGone(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusGone)
	_, _ = w.Write([]byte("<!doctype html><html><body><h2>This upload link has expired or was already used.</h2></body></html>"))
}

// formFile pulls the single expected multipart file field out of the request.
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, domain.ErrFileRequired
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, domain.ErrFileRequired
	}
	return file, header, nil
}
