package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orquidea/providers/orcid"
	"orquidea/services"
	"orquidea/storage"
)

// ResearcherSearcher looks researchers up in the public registry.
type ResearcherSearcher interface {
	Search(ctx context.Context, query string, rows int) (*orcid.SearchResult, error)
}

type addMonitoringRequest struct {
	UserEmail  string `json:"userEmail" binding:"required"`
	Researcher struct {
		ID   string `json:"id" binding:"required"`
		Name string `json:"name" binding:"required"`
	} `json:"researcher" binding:"required"`
	Publications []services.PublicationInput `json:"publications"`
}

type removeMonitoringRequest struct {
	UserEmail string `json:"userEmail" binding:"required"`
	Orcid     string `json:"orcid" binding:"required"`
}

type syncUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type subscribeRequest struct {
	UserEmail    string          `json:"userEmail" binding:"required"`
	Subscription json.RawMessage `json:"subscription" binding:"required"`
}

type unsubscribeRequest struct {
	UserEmail string `json:"userEmail" binding:"required"`
}

type monitoredResearcher struct {
	OrcidID string `json:"orcid_id"`
	Name    string `json:"name"`
}

func newRouter(monitoring *services.MonitoringService, updater *services.UpdateService, searcher ResearcherSearcher, cronSecret string, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	setupMonitoringRoutes(router, monitoring, log)
	setupUserRoutes(router, monitoring, log)
	setupPushRoutes(router, monitoring, log)
	setupSearchRoutes(router, searcher, log)
	setupCronRoutes(router, updater, cronSecret, log)
	return router
}

// respondError maps service errors to status codes; unexpected errors are
// logged and answered with a generic message.
func respondError(c *gin.Context, log *zap.Logger, msg string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg + ": not found"})
	default:
		log.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func setupMonitoringRoutes(router *gin.Engine, svc *services.MonitoringService, log *zap.Logger) {
	rg := router.Group("/monitoring")
	rg.POST("/add", func(c *gin.Context) {
		var req addMonitoringRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userEmail, researcher.id and researcher.name are required"})
			return
		}
		if !orcid.ValidID(req.Researcher.ID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ORCID iD"})
			return
		}
		err := svc.Add(c.Request.Context(), services.AddMonitoringInput{
			UserEmail:      req.UserEmail,
			ResearcherID:   req.Researcher.ID,
			ResearcherName: req.Researcher.Name,
			Publications:   req.Publications,
		})
		if err != nil {
			respondError(c, log, "user", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Researcher is now monitored"})
	})

	rg.POST("/remove", func(c *gin.Context) {
		var req removeMonitoringRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userEmail and orcid are required"})
			return
		}
		if err := svc.Remove(c.Request.Context(), req.UserEmail, req.Orcid); err != nil {
			respondError(c, log, "monitoring", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Monitoring removed"})
	})

	rg.GET("/status", func(c *gin.Context) {
		monitored, err := svc.Status(c.Request.Context(), c.Query("userEmail"), c.Query("orcid"))
		if err != nil {
			respondError(c, log, "monitoring status", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"isMonitored": monitored})
	})

	rg.GET("/monitored-researchers", func(c *gin.Context) {
		researchers, err := svc.Monitored(c.Request.Context(), c.Query("userEmail"))
		if err != nil {
			respondError(c, log, "monitored researchers", err)
			return
		}
		out := make([]monitoredResearcher, 0, len(researchers))
		for _, r := range researchers {
			out = append(out, monitoredResearcher{OrcidID: r.OrcidID, Name: r.Name})
		}
		c.JSON(http.StatusOK, out)
	})
}

func setupUserRoutes(router *gin.Engine, svc *services.MonitoringService, log *zap.Logger) {
	router.POST("/users/sync", func(c *gin.Context) {
		var req syncUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
			return
		}
		created, err := svc.SyncUser(c.Request.Context(), req.Name, req.Email)
		if err != nil {
			respondError(c, log, "user", err)
			return
		}
		if created {
			c.JSON(http.StatusCreated, gin.H{"message": "User created"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User already exists"})
	})
}

func setupPushRoutes(router *gin.Engine, svc *services.MonitoringService, log *zap.Logger) {
	rg := router.Group("/push")
	rg.POST("/subscribe", func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userEmail and subscription are required"})
			return
		}
		created, err := svc.Subscribe(c.Request.Context(), req.UserEmail, req.Subscription)
		if err != nil {
			respondError(c, log, "user", err)
			return
		}
		if created {
			c.JSON(http.StatusCreated, gin.H{"message": "Subscription saved"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Subscription updated"})
	})

	rg.POST("/unsubscribe", func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userEmail is required"})
			return
		}
		if err := svc.Unsubscribe(c.Request.Context(), req.UserEmail); err != nil {
			respondError(c, log, "subscription", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Subscription removed"})
	})
}

func setupSearchRoutes(router *gin.Engine, searcher ResearcherSearcher, log *zap.Logger) {
	router.GET("/researchers/search", func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
			return
		}
		result, err := searcher.Search(c.Request.Context(), q, 20)
		if err != nil {
			log.Warn("Researcher search failed", zap.String("query", q), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "ORCID search unavailable"})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupCronRoutes(router *gin.Engine, updater *services.UpdateService, secret string, log *zap.Logger) {
	router.POST("/cron/check-updates", cronAuthMiddleware(secret), func(c *gin.Context) {
		// A dropped client must not abort a run mid-way.
		report, err := updater.RunOnce(context.WithoutCancel(c.Request.Context()))
		switch {
		case errors.Is(err, services.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "an update run is already in progress"})
		case err != nil:
			log.Error("Update check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update check failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"message": "Update check completed", "report": report})
		}
	})
}

// cronAuthMiddleware requires "Authorization: Bearer <secret>". An empty
// secret locks the trigger entirely.
func cronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
