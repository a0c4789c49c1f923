// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/karcash/karcard/internal/assets"
	"github.com/karcash/karcard/internal/bgremoval"
	"github.com/karcash/karcard/internal/command"
	"github.com/karcash/karcard/internal/export"
	"github.com/karcash/karcard/internal/renderer"
	"github.com/karcash/karcard/internal/store"
	"github.com/karcash/karcard/pkg/karcard"
)

// maxUpload caps image uploads
const maxUpload = 32 << 20

// Deps are the components the API exposes
type Deps struct {
	Store     *store.Store
	Engine    *renderer.Engine
	Assets    *assets.Registry
	Images    store.ImageSource
	Remover   bgremoval.Remover
	ExportDir string
}

// Server is the API server
type Server struct {
	router   *gin.Engine
	deps     Deps
	executor *command.Executor
	upgrader websocket.Upgrader

	clients   map[*WSClient]bool
	clientsMu sync.RWMutex
}

// NewServer creates a new API server and subscribes it to state and
// render events
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.MaxMultipartMemory = maxUpload
	router.Use(corsMiddleware())

	cmdDeps := command.Deps{
		Store:     deps.Store,
		ExportDir: deps.ExportDir,
		Remover:   deps.Remover,
		Images:    deps.Images,
	}
	if deps.Engine != nil {
		cmdDeps.Exporter = deps.Engine
	}
	if deps.Assets != nil {
		cmdDeps.Assets = deps.Assets
	}

	server := &Server{
		router:   router,
		deps:     deps,
		executor: command.NewExecutor(cmdDeps),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		clients: make(map[*WSClient]bool),
	}

	server.setupRoutes()

	deps.Store.Subscribe(server.BroadcastState)
	if deps.Engine != nil {
		deps.Engine.OnRendered(server.BroadcastRendered)
	}

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/state", s.handleGetState)
	s.router.POST("/data", s.handleUpdateData)
	s.router.POST("/config", s.handleUpdateConfig)
	s.router.POST("/format", s.handleSetFormat)
	s.router.POST("/background", s.handleSetBackground)
	s.router.POST("/defaults", s.handleRestoreDefaults)

	s.router.POST("/image", s.handleSetImage)
	s.router.POST("/image/upload", s.handleUploadImage)
	s.router.POST("/image/remove-background", s.handleRemoveBackground)
	s.router.GET("/assets", s.handleListAssets)
	s.router.GET("/assets/:id", s.handleGetAsset)

	s.router.GET("/render.png", s.handleRenderPNG)
	s.router.POST("/export", s.handleExport)

	// Command endpoint
	s.router.POST("/command", s.handleCommand)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrUnknownField),
		errors.Is(err, store.ErrDerivedField),
		errors.Is(err, store.ErrInvalidValue),
		errors.Is(err, store.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrBusy),
		errors.Is(err, store.ErrImageChanged):
		return http.StatusConflict
	case errors.Is(err, assets.ErrRefNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, assets.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bgremoval.ErrNotConfigured),
		errors.Is(err, renderer.ErrNotRendered):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
}

// respondState replies with the snapshot after a successful mutation
func (s *Server) respondState(c *gin.Context) {
	c.JSON(200, s.deps.Store.Snapshot())
}

// handleGetState returns the current snapshot
func (s *Server) handleGetState(c *gin.Context) {
	s.respondState(c)
}

// handleUpdateData sets one vehicle data field
func (s *Server) handleUpdateData(c *gin.Context) {
	var req struct {
		Field string          `json:"field" binding:"required"`
		Value json.RawMessage `json:"value"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "field is required"})
		return
	}

	if err := s.deps.Store.UpdateData(req.Field, rawText(req.Value)); err != nil {
		s.fail(c, err)
		return
	}

	s.respondState(c)
}

// rawText reads a JSON string as its contents and anything else verbatim,
// so {"value": 99000} and {"value": "99000"} behave the same
func rawText(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	if v := strings.TrimSpace(string(raw)); v != "null" {
		return v
	}
	return ""
}

// handleUpdateConfig replaces or merges one canvas config field
func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req struct {
		Field string          `json:"field" binding:"required"`
		Value json.RawMessage `json:"value" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "field and value are required"})
		return
	}

	if err := s.deps.Store.UpdateConfig(req.Field, req.Value); err != nil {
		s.fail(c, err)
		return
	}

	s.respondState(c)
}

// handleSetFormat switches between story and poster
func (s *Server) handleSetFormat(c *gin.Context) {
	var req struct {
		Format karcard.Format `json:"format" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "format is required"})
		return
	}

	if err := s.deps.Store.SetFormat(req.Format); err != nil {
		s.fail(c, err)
		return
	}

	s.respondState(c)
}

// handleSetBackground replaces the active background
func (s *Server) handleSetBackground(c *gin.Context) {
	var bg karcard.BackgroundConfig

	if err := c.ShouldBindJSON(&bg); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := s.deps.Store.SetBackground(bg); err != nil {
		s.fail(c, err)
		return
	}

	s.respondState(c)
}

// handleRestoreDefaults resets the active layout
func (s *Server) handleRestoreDefaults(c *gin.Context) {
	if err := s.deps.Store.RestoreDefaults(); err != nil {
		s.fail(c, err)
		return
	}

	s.respondState(c)
}

// handleSetImage sets or clears the subject image reference
func (s *Server) handleSetImage(c *gin.Context) {
	var req struct {
		Ref *string `json:"ref"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := s.deps.Store.SetImage(req.Ref); err != nil {
		s.fail(c, err)
		return
	}

	s.respondState(c)
}

// handleUploadImage stores an uploaded file and points the subject image
// (or, with target=background, the background) at it
func (s *Server) handleUploadImage(c *gin.Context) {
	if s.deps.Assets == nil {
		c.JSON(503, gin.H{"error": "uploads are not available"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(400, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("failed to open upload: %v", err)})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("failed to read upload: %v", err)})
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(400, gin.H{"error": fmt.Sprintf("unsupported file type: %s", contentType)})
		return
	}

	entry, err := s.deps.Assets.Add(file.Filename, contentType, "upload", data)
	if err != nil {
		s.fail(c, err)
		return
	}
	ref := entry.Ref()

	if c.PostForm("target") == "background" {
		err = s.deps.Store.SetBackground(karcard.BackgroundConfig{Type: karcard.BackgroundImage, Value: ref})
	} else {
		err = s.deps.Store.SetImage(&ref)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(200, gin.H{
		"success": true,
		"ref":     ref,
		"asset":   entry,
	})
}

// handleRemoveBackground replaces the subject image with its foreground
func (s *Server) handleRemoveBackground(c *gin.Context) {
	if s.deps.Remover == nil || s.deps.Images == nil || s.deps.Assets == nil {
		s.fail(c, bgremoval.ErrNotConfigured)
		return
	}

	err := s.deps.Store.RemoveBackground(c.Request.Context(), s.deps.Remover, s.deps.Images, s.deps.Assets)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	s.respondState(c)
}

// handleListAssets lists stored assets, oldest first
func (s *Server) handleListAssets(c *gin.Context) {
	entries := []*assets.Entry{}
	if s.deps.Assets != nil {
		entries = s.deps.Assets.GetAll()
	}
	c.JSON(200, gin.H{"assets": entries, "count": len(entries)})
}

// handleGetAsset serves the bytes of one stored asset
func (s *Server) handleGetAsset(c *gin.Context) {
	if s.deps.Assets == nil {
		c.JSON(404, gin.H{"error": "asset not found"})
		return
	}

	id := c.Param("id")
	entry := s.deps.Assets.Get(id)
	if entry == nil {
		c.JSON(404, gin.H{"error": "asset not found"})
		return
	}

	data, err := s.deps.Assets.Read(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Data(200, entry.ContentType, data)
}

// handleRenderPNG returns the current card as a PNG download
func (s *Server) handleRenderPNG(c *gin.Context) {
	if s.deps.Engine == nil {
		s.fail(c, renderer.ErrNotRendered)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Engine.Export(&buf); err != nil {
		s.fail(c, err)
		return
	}

	data := s.deps.Store.Snapshot().State.Data
	name := export.Filename(data.Brand, data.Model)

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	c.Data(200, "image/png", buf.Bytes())
}

// handleExport saves the current card into the export directory
func (s *Server) handleExport(c *gin.Context) {
	if s.deps.Engine == nil {
		s.fail(c, renderer.ErrNotRendered)
		return
	}

	path, err := s.deps.Engine.SaveTo(s.deps.ExportDir)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(200, gin.H{"success": true, "path": path})
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(req.Command)

	if result.Success {
		response := gin.H{
			"success": true,
		}
		if result.Message != "" {
			response["message"] = result.Message
		}
		for k, v := range result.Data {
			response[k] = v
		}
		c.JSON(200, response)
	} else {
		c.JSON(400, gin.H{
			"success": false,
			"error":   result.Error,
		})
	}
}

// Run starts the API server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
