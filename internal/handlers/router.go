package handlers

import (
	"net/http"

	_ "contacts-crm/docs"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter builds the full HTTP handler: API routes under basePath, the
// Swagger UI, middleware and CORS.
func NewRouter(h *HTTPHandler, basePath string, corsOrigins []string) http.Handler {
	mainRouter := mux.NewRouter()
	api := mainRouter.PathPrefix(basePath).Subrouter()

	h.RegisterRoutes(api)

	api.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL(basePath+"/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
	))

	mainRouter.Use(RequestIDMiddleware, RecoveryMiddleware, LoggingMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	return c.Handler(mainRouter)
}
