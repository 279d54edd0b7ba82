package httpx

import (
	"log/slog"
	"net/http"

	"github.com/converti/converti-api/internal/service"
	"golang.org/x/time/rate"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Conversions *service.ConversionService
	// APIPrefix is prepended to every route, e.g. "/api". Empty mounts at the root.
	APIPrefix string
	// AppName is used in download file names.
	AppName string
	// MaxUploadBytes caps the body of a conversion request; 0 disables the cap.
	MaxUploadBytes int64
	// ConvertLimiter throttles conversion requests (optional).
	ConvertLimiter *rate.Limiter
	Logger         *slog.Logger
}

// NewRouter creates the API router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()
	p := services.APIPrefix

	mux.Handle("GET "+p+"/health", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD "+p+"/health", http.HandlerFunc(healthHandler))

	if services.Conversions != nil {
		h := &ConversionHandlers{
			Svc:            services.Conversions,
			AppName:        services.AppName,
			MaxUploadBytes: services.MaxUploadBytes,
			Logger:         services.Logger,
		}
		registerConversionRoutes(mux, p, h, services.ConvertLimiter)
	}

	mux.Handle("/", http.HandlerFunc(notFoundHandler))
	return mux
}

func registerConversionRoutes(mux *http.ServeMux, p string, h *ConversionHandlers, limiter *rate.Limiter) {
	mux.Handle("GET "+p+"/categories", http.HandlerFunc(h.Categories))
	mux.Handle("POST "+p+"/convert", RateLimit(limiter)(http.HandlerFunc(h.Convert)))
	mux.Handle("GET "+p+"/jobs/{id}", http.HandlerFunc(h.GetJob))
	mux.Handle("GET "+p+"/jobs/{id}/download", http.HandlerFunc(h.Download))
	mux.Handle("GET "+p+"/jobs/{id}/files/{filename}", http.HandlerFunc(h.DownloadFile))
	mux.Handle("DELETE "+p+"/jobs/{id}", http.HandlerFunc(h.DeleteJob))
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	writeErrorMessage(w, http.StatusNotFound, "not_found", "Not found")
}
