package http

import (
	_ "github.com/materia-tech/vector-backend/docs" // Импорт сгенерированных файлов
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(genUC usecase.GenerationUC, searchUC usecase.SearchUC) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		embHandler := NewEmbeddingHandler(genUC, r.logger)
		registerEmbeddingRoutes(v1, embHandler)

		searchHandler := NewSearchHandler(searchUC, r.logger)
		registerSearchRoutes(v1, searchHandler)
	})
}

func registerEmbeddingRoutes(router chi.Router, h *EmbeddingHandler) {
	router.Route("/embeddings", func(emb chi.Router) {
		emb.Post("/generate", h.generate)
		emb.Post("/batch", h.batchGenerate)
		emb.Get("/statistics", h.statistics)
		emb.Get("/{kind}/{id}", h.records)
	})
}

func registerSearchRoutes(router chi.Router, h *SearchHandler) {
	router.Post("/search", h.search)
}
