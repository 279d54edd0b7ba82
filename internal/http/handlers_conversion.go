// Package httpx provides the HTTP API of the conversion service.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/converti/converti-api/internal/service"
)

// multipartMemory is how much of an upload is buffered in memory before
// the rest spills to temporary files.
const multipartMemory = 32 << 20

// ConversionHandlers provides HTTP handlers for conversion jobs.
type ConversionHandlers struct {
	Svc            *service.ConversionService
	AppName        string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Categories lists the available categories with their target formats.
func (h *ConversionHandlers) Categories(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.Svc.Catalog())
}

type convertResponse struct {
	JobID string `json:"jobId"`
}

// Convert accepts a multipart upload and queues a conversion job.
func (h *ConversionHandlers) Convert(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("Upload exceeds the limit of %d bytes", tooLarge.Limit))
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	job, err := h.Svc.Submit(r.Context(), service.SubmitRequest{
		Category:     r.FormValue("category"),
		TargetFormat: r.FormValue("target_format"),
		Files:        uploadsFrom(r.MultipartForm.File["files"]),
	})
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, convertResponse{JobID: job.ID})
}

func uploadsFrom(headers []*multipart.FileHeader) []service.Upload {
	uploads := make([]service.Upload, len(headers))
	for i, fh := range headers {
		uploads[i] = service.Upload{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}
	return uploads
}

// GetJob returns the public view of a job.
func (h *ConversionHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job.View())
}

// Download streams the zip bundle of a completed job.
func (h *ConversionHandlers) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	archive, err := h.Svc.Archive(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	name := fmt.Sprintf("%s_%s.zip", strings.ToLower(h.AppName), id)
	h.serveFile(w, r, archive, name)
}

// DownloadFile streams one converted file of a job.
func (h *ConversionHandlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.OutputFile(r.PathValue("id"), r.PathValue("filename"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	h.serveFile(w, r, res.OutputPath, res.OutputName)
}

// serveFile sends path as an attachment called name. The content type is
// derived from name unless the caller already set one.
func (h *ConversionHandlers) serveFile(w http.ResponseWriter, r *http.Request, path, name string) {
	f, err := os.Open(path) // #nosec G304 - path comes from job storage, not the client
	if err != nil {
		writeServiceError(w, r, h.Logger, fmt.Errorf("open %s: %w", name, err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeServiceError(w, r, h.Logger, fmt.Errorf("stat %s: %w", name, err))
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type deleteResponse struct {
	Deleted    bool `json:"deleted"`
	Cancelling bool `json:"cancelling,omitempty"`
}

// DeleteJob removes a finished job or cancels a running one.
func (h *ConversionHandlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	if res.Cancelling {
		WriteJSON(w, http.StatusAccepted, deleteResponse{Cancelling: true})
		return
	}
	WriteJSON(w, http.StatusOK, deleteResponse{Deleted: true})
}
