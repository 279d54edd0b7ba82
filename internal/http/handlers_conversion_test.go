package httpx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/converti/converti-api/internal/adapters/converter"
	"github.com/converti/converti-api/internal/adapters/jobrunner"
	"github.com/converti/converti-api/internal/data"
	"github.com/converti/converti-api/internal/domain/model"
	"github.com/converti/converti-api/internal/service"
	"github.com/converti/converti-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type apiHarness struct {
	svc      *service.ConversionService
	registry *data.JobRegistry
	storage  *data.JobStorage
	queue    *jobrunner.Queue
	handler  http.Handler
}

type harnessOptions struct {
	queueCapacity  int
	maxUploadBytes int64
	limiter        *rate.Limiter
}

func newAPIHarness(t *testing.T, opts harnessOptions) *apiHarness {
	t.Helper()

	storage, err := data.NewJobStorage(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)
	registry := data.NewJobRegistry(data.JobRegistryOptions{})
	queue := jobrunner.NewQueue(opts.queueCapacity)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// No external tools: only the built-in image codecs are available.
	dispatcher := converter.NewDispatcher(converter.DispatcherOptions{
		LookPath: func(string) (string, error) { return "", errors.New("not installed") },
	})

	svc, err := service.NewConversionService(service.ConversionServiceOptions{
		Registry:   registry,
		Storage:    storage,
		Queue:      queue,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	require.NoError(t, err)

	return &apiHarness{
		svc:      svc,
		registry: registry,
		storage:  storage,
		queue:    queue,
		handler: NewRouter(RouterServices{
			Conversions:    svc,
			APIPrefix:      "/api",
			AppName:        "Converti",
			MaxUploadBytes: opts.maxUploadBytes,
			ConvertLimiter: opts.limiter,
			Logger:         logger,
		}),
	}
}

func (h *apiHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type uploadPart struct {
	name string
	data []byte
}

func convertRequest(t *testing.T, category, format string, files ...uploadPart) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if category != "" {
		require.NoError(t, mw.WriteField("category", category))
	}
	if format != "" {
		require.NoError(t, mw.WriteField("target_format", format))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (h *apiHarness) submit(t *testing.T, files ...uploadPart) string {
	t.Helper()

	rec := h.do(convertRequest(t, "images", "JPG", files...))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp convertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouterHealth(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodHead, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"bmp", "jpeg", "jpg", "png", "tiff"}, got["images"])
	assert.NotContains(t, got, "audio")
	assert.NotContains(t, got, "documents")
}

func TestConvertLifecycle(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{})
	png := testutil.PNGBytes(t, 8, 8)

	id := h.submit(t, uploadPart{name: "photo.png", data: png})
	assert.Equal(t, 1, h.queue.Len())

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view model.JobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.JobStatusPending, view.Status)
	assert.Equal(t, "jpg", view.TargetFormat)
	assert.Equal(t, 1, view.TotalFiles)
	require.Len(t, view.Results, 1)
	assert.Equal(t, "photo.jpg", view.Results[0].OutputName)

	h.svc.Process(context.Background(), id)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.InDelta(t, 100.0, view.Progress, 0.001)
	assert.Nil(t, view.Error)

	t.Run("download bundle", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/download", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=converti_"+id+".zip", rec.Header().Get("Content-Disposition"))

		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 1)
		assert.Equal(t, "photo.jpg", zr.File[0].Name)
	})

	t.Run("single file", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/files/photo.jpg", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=photo.jpg", rec.Header().Get("Content-Disposition"))
		assert.NotZero(t, rec.Body.Len())

		rec = h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/files/other.jpg", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "File not found for this job", decodeError(t, rec).Message)
	})

	t.Run("delete", func(t *testing.T) {
		rec := h.do(httptest.NewRequest(http.MethodDelete, "/api/jobs/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())
		assert.NoDirExists(t, h.storage.JobDir(id))

		rec = h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConvertValidation(t *testing.T) {
	png := testutil.PNGBytes(t, 2, 2)

	tests := []struct {
		name     string
		category string
		format   string
		files    []uploadPart
		message  string
	}{
		{
			name:     "unknown category",
			category: "spreadsheets",
			format:   "csv",
			files:    []uploadPart{{name: "a.xls", data: []byte("x")}},
			message:  "Unsupported category 'spreadsheets'",
		},
		{
			name:     "unavailable category",
			category: "audio",
			format:   "mp3",
			files:    []uploadPart{{name: "a.wav", data: []byte("x")}},
			message:  "Unsupported category 'audio'",
		},
		{
			name:     "unsupported format",
			category: "images",
			format:   "gif",
			files:    []uploadPart{{name: "a.png", data: png}},
			message:  "Unsupported target format 'gif'",
		},
		{
			name:     "webp without encoder",
			category: "images",
			format:   "WEBP",
			files:    []uploadPart{{name: "a.png", data: png}},
			message:  "Unsupported target format 'webp'",
		},
		{
			name:     "no files",
			category: "images",
			format:   "png",
			message:  "No files were provided for conversion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAPIHarness(t, harnessOptions{})

			rec := h.do(convertRequest(t, tt.category, tt.format, tt.files...))
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, "validation", body.Error)
			assert.Equal(t, tt.message, body.Message)
			assert.Empty(t, h.registry.List())
			assert.Zero(t, h.queue.Len())
		})
	}
}

func TestConvertRejectsMalformedForm(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewBufferString(`{"category":"images"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := h.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_form", decodeError(t, rec).Error)
}

func TestConvertPayloadTooLarge(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{maxUploadBytes: 1024})

	rec := h.do(convertRequest(t, "images", "jpg", uploadPart{name: "big.png", data: bytes.Repeat([]byte("x"), 8192)}))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, rec).Error)
	assert.Empty(t, h.registry.List())
}

func TestConvertQueueFull(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{queueCapacity: 1})
	png := testutil.PNGBytes(t, 2, 2)

	h.submit(t, uploadPart{name: "a.png", data: png})

	rec := h.do(convertRequest(t, "images", "jpg", uploadPart{name: "b.png", data: png}))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "unavailable", body.Error)
	assert.Equal(t, "Too many jobs in progress, try again later", body.Message)
	assert.Len(t, h.registry.List(), 1)
}

func TestConvertRateLimited(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{limiter: rate.NewLimiter(rate.Limit(0.001), 1)})

	rec := h.do(convertRequest(t, "images", "png"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(convertRequest(t, "images", "png"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Error)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other routes are not throttled.
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobRoutesUnknownJob(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil),
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing/download", nil),
		httptest.NewRequest(http.MethodGet, "/api/jobs/missing/files/a.jpg", nil),
		httptest.NewRequest(http.MethodDelete, "/api/jobs/missing", nil),
	} {
		t.Run(req.Method+" "+req.URL.Path, func(t *testing.T) {
			rec := h.do(req)
			require.Equal(t, http.StatusNotFound, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "not_found", body.Error)
			assert.Equal(t, "Job not found", body.Message)
		})
	}
}

func TestDownloadBeforeCompletion(t *testing.T) {
	h := newAPIHarness(t, harnessOptions{})
	id := h.submit(t, uploadPart{name: "a.png", data: testutil.PNGBytes(t, 2, 2)})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/download", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Job is not completed yet", decodeError(t, rec).Message)
}

func TestDeleteJob(t *testing.T) {
	t.Run("processing job is cancelled", func(t *testing.T) {
		h := newAPIHarness(t, harnessOptions{})
		id := h.submit(t, uploadPart{name: "a.png", data: testutil.PNGBytes(t, 2, 2)})
		_, err := h.registry.Update(id, func(j *model.Job) error {
			j.Status = model.JobStatusProcessing
			return nil
		})
		require.NoError(t, err)

		rec := h.do(httptest.NewRequest(http.MethodDelete, "/api/jobs/"+id, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"deleted":false,"cancelling":true}`, rec.Body.String())

		job, ok := h.registry.Get(id)
		require.True(t, ok)
		assert.Equal(t, model.JobStatusCancelled, job.Status)
	})

	t.Run("pending job is removed", func(t *testing.T) {
		h := newAPIHarness(t, harnessOptions{})
		id := h.submit(t, uploadPart{name: "a.png", data: testutil.PNGBytes(t, 2, 2)})

		rec := h.do(httptest.NewRequest(http.MethodDelete, "/api/jobs/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"deleted":true}`, rec.Body.String())

		_, ok := h.registry.Get(id)
		assert.False(t, ok)
		assert.NoDirExists(t, h.storage.JobDir(id))
	})
}
