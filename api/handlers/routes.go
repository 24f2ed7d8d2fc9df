package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/local/docqa/api/config"
)

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(h *Handler, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(Timeout(cfg.Timeout()))

	router.MaxMultipartMemory = cfg.MaxUploadSize

	router.GET("/", h.Root)
	router.GET("/api/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/upload", h.UploadPDF)
		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id", h.GetDocument)
		api.DELETE("/documents/:id", h.DeleteDocument)
		api.POST("/ask", h.Ask)
		api.POST("/summarize", h.Summarize)
	}

	return router
}
