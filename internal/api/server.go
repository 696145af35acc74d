// Package api exposes the matching backend as a JSON HTTP API.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/receiptcheck/receipt-match-backend/internal/application/service"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/config"
	"github.com/receiptcheck/receipt-match-backend/internal/infrastructure/storage"
)

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	store    *storage.Storage
	service  *service.MatchService
	importer *service.ImportService
	logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(cfg config.APIConfig, store *storage.Storage, svc *service.MatchService, importer *service.ImportService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		service:  svc,
		importer: importer,
		logger:   logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowOrigins: s.cfg.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Accept", "Content-Type"},
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", s.health)

	api := router.Group("/api")
	{
		api.GET("/statements", s.listStatements)
		api.POST("/statements", s.importStatement)
		api.GET("/statements/:id/transactions", s.listTransactions)
		api.GET("/statements/:id/stats", s.statementStats)
		api.GET("/statements/:id/runs", s.listRuns)
		api.POST("/statements/:id/match", s.runMatching)
		api.GET("/runs/:id/assignments", s.runAssignments)
		api.POST("/transactions/:id/unmatch", s.unmatchTransaction)
		api.POST("/transactions/:id/assign", s.assignTransaction)
	}

	return router
}

// Run starts the server on the configured port.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("api server listening", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listStatements(c *gin.Context) {
	statements, err := s.store.ListStatements()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch statements"})
		return
	}
	c.JSON(http.StatusOK, statements)
}

func (s *Server) importStatement(c *gin.Context) {
	var in service.StatementImport
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement payload"})
		return
	}
	st, err := s.importer.Import(in)
	if err != nil {
		s.logger.Error("statement import failed", "name", in.Name, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) listTransactions(c *gin.Context) {
	transactions, err := s.store.GetTransactions(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transactions"})
		return
	}

	filter := c.DefaultQuery("filter", "all")
	filtered := transactions[:0:0]
	for _, tx := range transactions {
		switch filter {
		case "matched":
			if !tx.Matched {
				continue
			}
		case "unmatched":
			if tx.Matched {
				continue
			}
		}
		filtered = append(filtered, tx)
	}
	c.JSON(http.StatusOK, filtered)
}

func (s *Server) statementStats(c *gin.Context) {
	stats, err := s.store.GetStatementStats(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.GetMatchRuns(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs"})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) runMatching(c *gin.Context) {
	run, result, err := s.service.RunMatching(c.Param("id"))
	if err != nil {
		s.logger.Error("matching run failed", "statement", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "matching run failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":         run,
		"assignments": result.Assignments,
		"report":      result.Report,
	})
}

func (s *Server) runAssignments(c *gin.Context) {
	assignments, err := s.store.GetRunAssignments(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch assignments"})
		return
	}
	c.JSON(http.StatusOK, assignments)
}

func (s *Server) unmatchTransaction(c *gin.Context) {
	if err := s.service.Unmatch(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unmatched"})
}

type assignRequest struct {
	ReceiptID string `json:"receipt_id" binding:"required"`
}

func (s *Server) assignTransaction(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt_id is required"})
		return
	}
	if err := s.service.Assign(c.Param("id"), req.ReceiptID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}
