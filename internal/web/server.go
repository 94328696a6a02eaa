// Package web exposes the HTTP control surface: task status and
// start/stop, alert queries, alert images and live detection streams.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/argus-video/argus/internal/config"
	"github.com/argus-video/argus/internal/live"
	"github.com/argus-video/argus/internal/logger"
	"github.com/argus-video/argus/internal/sched"
	"github.com/argus-video/argus/internal/store"
)

// Server hosts the REST and websocket endpoints.
type Server struct {
	cfg       config.WebConfig
	log       *logger.Logger
	store     *store.Store
	scheduler *sched.Scheduler
	hub       *live.Hub
	imageDir  string

	engine *gin.Engine
	server *http.Server
}

// NewServer wires the router. Call Start to begin serving.
func NewServer(cfg config.WebConfig, st *store.Store, scheduler *sched.Scheduler,
	hub *live.Hub, imageDir string, log *logger.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		log:       log.Named("web"),
		store:     st,
		scheduler: scheduler,
		hub:       hub,
		imageDir:  imageDir,
		engine:    engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api/v1")
	{
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id/status", s.handleTaskStatus)
		api.POST("/tasks/:id/start", s.handleStartTask)
		api.POST("/tasks/:id/stop", s.handleStopTask)

		api.GET("/alerts", s.handleListAlerts)
		api.PUT("/alerts/:id/status", s.handleUpdateAlertStatus)
		api.GET("/alerts/images/:name", s.handleAlertImage)
	}

	s.engine.GET("/ws/tasks/:id/detections", s.handleDetectionStream)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		s.log.Info("web server listening", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("web server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := s.store.DB().PingContext(c.Request.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}
	if _, err := os.Stat(s.imageDir); err != nil {
		checks["image_dir"] = err.Error()
		healthy = false
	} else {
		checks["image_dir"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasksForScheduling(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}

	resp := gin.H{
		"task_id":    task.ID,
		"name":       task.Name,
		"status":     task.Status,
		"is_enabled": task.Enabled,
	}
	if ex, running := s.scheduler.Executor(id); running {
		resp["sources"] = ex.Status()
		stats := ex.EngineStats()
		resp["inference"] = gin.H{
			"count":         stats.Count,
			"total_seconds": stats.TotalSeconds,
			"avg_seconds":   stats.AvgSeconds,
			"last_seconds":  stats.LastSeconds,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStartTask(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	if err := s.scheduler.StartTask(c.Request.Context(), id); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": id, "message": "task start requested"})
}

func (s *Server) handleStopTask(c *gin.Context) {
	id, ok := s.taskID(c)
	if !ok {
		return
	}
	if err := s.scheduler.StopTask(c.Request.Context(), id); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task_id": id, "message": "task stop requested"})
}

func (s *Server) handleListAlerts(c *gin.Context) {
	var taskID int64
	if v := c.Query("task_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
			return
		}
		taskID = parsed
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	alerts, err := s.store.ListAlerts(c.Request.Context(), taskID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleUpdateAlertStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Status {
	case store.AlertStatusPending, store.AlertStatusProcessing, store.AlertStatusResolved:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", req.Status)})
		return
	}

	if err := s.store.UpdateAlertStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_id": c.Param("id"), "status": req.Status})
}

func (s *Server) handleAlertImage(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	path := filepath.Join(s.imageDir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.File(path)
}

func (s *Server) taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
