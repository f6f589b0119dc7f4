package scraper

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new chi router with all service endpoints
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// basic cors
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE", "PUT"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// health check
	r.Get("/health", handler.Health)

	// api routes
	r.Route("/api", func(r chi.Router) {
		// scraping
		r.Post("/scrape", handler.Scrape)

		// downloads (require a prior scrape in this process)
		r.Route("/download", func(r chi.Router) {
			r.Get("/json/{channelID}", handler.DownloadJSON)
			r.Get("/attachments/{channelID}", handler.DownloadAttachments)
			r.Get("/dataset/{channelID}", handler.DownloadDataset)
		})

		// saved credentials & channels
		r.Post("/credentials/save", handler.SaveCredential)
		r.Get("/credentials/latest", handler.LatestCredential)
		r.Post("/channels/save", handler.SaveChannel)
		r.Get("/channels", handler.ListChannels)
	})

	return r
}
