// Package api exposes the reconcile service over HTTP.
package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ledgermatch/ledgermatch-backend/internal/api/dto"
	"github.com/ledgermatch/ledgermatch-backend/internal/application/service"
	"github.com/ledgermatch/ledgermatch-backend/internal/export"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/analytics"
	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/storage"
)

// maxUploadBytes caps statement uploads at 25 MiB.
const maxUploadBytes = 25 << 20

// Server wires the reconcile service and repository into HTTP routes.
type Server struct {
	svc     *service.ReconcileService
	repo    storage.Repository
	tracker *analytics.Tracker
	logger  *slog.Logger
	router  *gin.Engine
}

// NewServer builds the router. allowedOrigins configures CORS for the
// dashboard.
func NewServer(
	svc *service.ReconcileService,
	repo storage.Repository,
	tracker *analytics.Tracker,
	allowedOrigins []string,
	logger *slog.Logger,
) *Server {
	s := &Server{
		svc:     svc,
		repo:    repo,
		tracker: tracker,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.health)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/documents", s.uploadDocument)
		apiGroup.GET("/documents", s.listDocuments)
		apiGroup.GET("/documents/:id", s.getDocument)
		apiGroup.GET("/documents/:id/matches", s.getDocumentMatches)

		apiGroup.POST("/reconcile", s.startReconcile)
		apiGroup.GET("/reconcile/:jobID", s.getJob)
		apiGroup.DELETE("/reconcile/:jobID", s.cancelJob)

		apiGroup.GET("/runs", s.listRuns)
		apiGroup.GET("/vendors", s.listVendors)
		apiGroup.GET("/stats", s.getStats)

		apiGroup.GET("/export/:runID/csv", s.exportCSV)
		apiGroup.GET("/export/:runID/xlsx", s.exportXLSX)
	}

	s.router = router
	return s
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server on the given port.
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("api server listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) uploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("multipart field 'file' is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("could not read upload"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	doc, err := s.svc.UploadDocument(c.Request.Context(),
		fileHeader.Filename, contentType, c.PostForm("company_id"), data)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, dto.DocumentFromStorage(doc))
}

func (s *Server) listDocuments(c *gin.Context) {
	filters := storage.DocumentFilters{
		Status:    c.Query("status"),
		CompanyID: c.Query("company_id"),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil && limit > 0 {
		filters.Limit = limit
	}

	docs, err := s.repo.ListDocuments(filters)
	if err != nil {
		s.logger.Error("list documents failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	out := make([]dto.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, dto.DocumentFromStorage(d))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.repo.GetDocument(c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, dto.NotFoundError("document"))
			return
		}
		s.logger.Error("get document failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.DocumentFromStorage(doc))
}

func (s *Server) getDocumentMatches(c *gin.Context) {
	docID := c.Param("id")
	if _, err := s.repo.GetDocument(docID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, dto.NotFoundError("document"))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	records, err := s.repo.GetMatchRecords(docID)
	if err != nil {
		s.logger.Error("get match records failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	out := make([]dto.MatchRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.MatchRecordFromStorage(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) startReconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	jobID, err := s.svc.StartReconcile(c.Request.Context(), service.ReconcileRequest{
		DocumentID: req.DocumentID,
		AccountID:  req.AccountID,
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, dto.NotFoundError("document"))
		case strings.Contains(err.Error(), "already running"):
			c.JSON(http.StatusConflict, dto.ConflictError(err.Error()))
		default:
			c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.ReconcileStartedResponse{
		JobID:      jobID,
		DocumentID: req.DocumentID,
		Status:     string(service.StatusPending),
	})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.svc.GetJob(c.Param("jobID"))
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("job"))
		return
	}
	c.JSON(http.StatusOK, dto.JobFromService(job))
}

func (s *Server) cancelJob(c *gin.Context) {
	if err := s.svc.CancelJob(c.Param("jobID")); err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, dto.NotFoundError("job"))
			return
		}
		c.JSON(http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	runs, err := s.repo.ListRuns(limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) listVendors(c *gin.Context) {
	vendors, err := s.repo.ListVendors()
	if err != nil {
		s.logger.Error("list vendors failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, vendors)
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.repo.GetStats()
	if err != nil {
		s.logger.Error("get stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totals": stats,
		"events": s.tracker.Snapshot(),
	})
}

func (s *Server) exportCSV(c *gin.Context) {
	runID := c.Param("runID")
	records, err := s.runRecords(c, runID)
	if err != nil {
		return // response already written
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="reconcile-%s.csv"`, runID))
	c.Header("Content-Type", "text/csv")
	if err := export.WriteCSV(c.Writer, records); err != nil {
		s.logger.Error("csv export failed", "run_id", runID, "error", err)
	}
}

func (s *Server) exportXLSX(c *gin.Context) {
	runID := c.Param("runID")
	records, err := s.runRecords(c, runID)
	if err != nil {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="reconcile-%s.xlsx"`, runID))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.WriteXLSX(c.Writer, records); err != nil {
		s.logger.Error("xlsx export failed", "run_id", runID, "error", err)
	}
}

// runRecords loads records for a run, writing the error response
// itself when the run is missing or the query fails.
func (s *Server) runRecords(c *gin.Context, runID string) ([]*storage.MatchRecord, error) {
	if _, err := s.repo.GetRun(runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, dto.NotFoundError("run"))
		} else {
			c.JSON(http.StatusInternalServerError, dto.InternalError())
		}
		return nil, err
	}

	records, err := s.repo.GetMatchRecordsByRun(runID)
	if err != nil {
		s.logger.Error("load run records failed", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return nil, err
	}
	return records, nil
}
