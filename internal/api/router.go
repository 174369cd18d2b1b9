package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const refreshTimeout = 2 * time.Minute

// Refresher 由 scheduler.Scheduler 实现
type Refresher interface {
	RefreshNow(ctx context.Context) (ingest.Report, error)
}

// ArticleLister 由 storage.Store 实现
type ArticleLister interface {
	ListTrending(ctx context.Context, limit int) ([]storage.Article, error)
	ListLatest(ctx context.Context, category collector.Category, limit int) ([]storage.Article, error)
}

type Server struct {
	refresher Refresher
	articles  ArticleLister
	adminUser string
	adminPass string
	log       zerolog.Logger
}

func NewServer(refresher Refresher, articles ArticleLister) *Server {
	return &Server{
		refresher: refresher,
		articles:  articles,
		log:       logger.Component("api"),
	}
}

// WithBasicAuth 配置后管理接口需要 Basic Auth
func (s *Server) WithBasicAuth(user, pass string) *Server {
	s.adminUser = user
	s.adminPass = pass
	return s
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.GET("/news/trending", s.listTrending)
	}

	admin := v1.Group("/admin")
	if s.adminUser != "" && s.adminPass != "" {
		admin.Use(basicAuthMiddleware(s.adminUser, s.adminPass))
	}
	admin.POST("/refresh", s.refresh)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	return limit
}

func (s *Server) listTrending(c *gin.Context) {
	items, err := s.articles.ListTrending(c.Request.Context(), parseLimit(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) listNews(c *gin.Context) {
	category := collector.Category(c.Query("category"))
	if category != "" && !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_category",
			"message": "unknown category: " + string(category),
		})
		return
	}
	items, err := s.articles.ListLatest(c.Request.Context(), category, parseLimit(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

// refresh 同步执行一轮采集并返回本轮统计
func (s *Server) refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	report, err := s.refresher.RefreshNow(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", report.RunID).Msg("manual refresh failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "refresh_failed",
			"message": err.Error(),
			"data":    report,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "news refreshed",
		"data":    report,
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
