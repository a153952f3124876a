package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/franckalain/smartplate/internal/models"
	"github.com/franckalain/smartplate/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxUploadBytes bounds multipart image uploads.
const maxUploadBytes = 20 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, this should be more restrictive
	},
}

// Service is the detection pipeline as seen by the transport layer
type Service interface {
	Detect(ctx context.Context, userID string) (*pipeline.Result, error)
	Upload(ctx context.Context, userID, contentType string, data []byte) (*pipeline.Result, error)
	History(ctx context.Context, userID string) ([]*models.DetectionRecord, error)
	AllHistory(ctx context.Context) ([]*models.DetectionRecord, error)
}

type Server struct {
	service Service
	logger  *slog.Logger
	router  *gin.Engine
	clients sync.Map
}

func New(service Service, logger *slog.Logger, jwtSecret string, debug bool) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if debug {
		gin.SetMode(gin.DebugMode)
		logger.Debug("debug logging enabled")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		service: service,
		logger:  logger,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/")
	api.Use(authMiddleware([]byte(jwtSecret)))
	api.POST("/detect", s.handleDetect)
	api.POST("/upload", s.handleUpload)
	api.GET("/user-ingredients/:user_id", s.handleUserIngredients)
	api.GET("/all-ingredients", s.handleAllIngredients)
	api.GET("/ws", s.handleWebSocket)

	return s
}

// ServeStatic serves files from dir for GET and HEAD requests that match no
// other route.
func (s *Server) ServeStatic(dir string) {
	fs := http.FileServer(http.Dir(dir))
	s.router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		fs.ServeHTTP(c.Writer, c.Request)
	})
	s.logger.Info("serving static files", "dir", dir)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on port until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port string, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeClients()
	return err
}

// closeClients closes open websocket connections; Shutdown does not track hijacked ones.
func (s *Server) closeClients() {
	s.clients.Range(func(key, value any) bool {
		conn := value.(*websocket.Conn)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		s.clients.Delete(key)
		return true
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type detectRequest struct {
	UserID string `json:"user_id"`
}

type detectionResponse struct {
	ID                  string                      `json:"id"`
	UserID              string                      `json:"user_id"`
	File                string                      `json:"file"`
	Ingredients         []models.EnrichedIngredient `json:"ingredients"`
	DetectionConfidence float64                     `json:"detection_confidence"`
	IngredientsCount    int                         `json:"ingredients_count"`
	DetectedAt          time.Time                   `json:"detected_at"`
	SavedToDB           bool                        `json:"saved_to_db"`
	SaveError           string                      `json:"save_error,omitempty"`
}

func newDetectionResponse(res *pipeline.Result) detectionResponse {
	rec := res.Record
	return detectionResponse{
		ID:                  rec.ID,
		UserID:              rec.UserID,
		File:                rec.ImageFile,
		Ingredients:         rec.Ingredients,
		DetectionConfidence: rec.DetectionConfidence,
		IngredientsCount:    rec.IngredientsCount,
		DetectedAt:          rec.DetectedAt,
		SavedToDB:           res.SavedToDB,
		SaveError:           res.SaveError,
	}
}

func (s *Server) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	res, err := s.service.Detect(c.Request.Context(), resolveUser(c, req.UserID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDetectionResponse(res))
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	res, err := s.service.Upload(c.Request.Context(), resolveUser(c, c.PostForm("user_id")), contentType, data)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDetectionResponse(res))
}

func (s *Server) handleUserIngredients(c *gin.Context) {
	requested := c.Param("user_id")
	if authed := c.GetString(userIDKey); authed != "" && authed != requested {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot read another user's ingredients"})
		return
	}

	records, err := s.service.History(c.Request.Context(), requested)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

func (s *Server) handleAllIngredients(c *gin.Context) {
	records, err := s.service.AllHistory(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to fetch all ingredients", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch all ingredients"})
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

func nonNil(records []*models.DetectionRecord) []*models.DetectionRecord {
	if records == nil {
		return []*models.DetectionRecord{}
	}
	return records
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	var inputErr *pipeline.InputError
	var detErr *pipeline.DetectorError
	switch {
	case errors.Is(err, pipeline.ErrNoImage):
		return http.StatusNotFound
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &detErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// classify logs err at a level matching its status and returns the text
// safe to show the client. Server-side failures get a generic message.
func (s *Server) classify(err error, attrs ...any) (int, string) {
	status := statusFor(err)
	attrs = append(attrs, "status", status, "error", err)
	switch {
	case status < http.StatusInternalServerError:
		s.logger.Info("request rejected", attrs...)
		return status, err.Error()
	case status == http.StatusBadGateway:
		s.logger.Error("detector failed", attrs...)
		return status, "Ingredient detection is unavailable"
	default:
		s.logger.Error("request failed", attrs...)
		return status, "Internal server error"
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, message := s.classify(err, "path", c.FullPath())
	c.JSON(status, gin.H{"error": message})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Store client connection
	clientID := uuid.New().String()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)

	authed := c.GetString(userIDKey)
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				s.sendError(conn, "Invalid message format")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("error reading message", "client_id", clientID, "error", err)
			}
			return
		}

		s.handleWebSocketMessage(c.Request.Context(), conn, authed, msg)
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

type wsMessage struct {
	Type string `json:"type"`
	Data struct {
		UserID string `json:"user_id"`
	} `json:"data"`
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn *websocket.Conn, authed string, msg wsMessage) {
	userID := msg.Data.UserID
	if authed != "" {
		userID = authed
	}

	switch msg.Type {
	case "detect":
		res, err := s.service.Detect(ctx, userID)
		if err != nil {
			_, message := s.classify(err, "message_type", msg.Type, "user_id", userID)
			s.sendError(conn, message)
			return
		}
		s.sendMessage(conn, "detection_result", newDetectionResponse(res))
	case "get_history":
		records, err := s.service.History(ctx, userID)
		if err != nil {
			_, message := s.classify(err, "message_type", msg.Type, "user_id", userID)
			s.sendError(conn, message)
			return
		}
		s.sendMessage(conn, "history", map[string]any{"items": nonNil(records)})
	default:
		s.sendError(conn, "Unknown message type")
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", "type", messageType, "error", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}

	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending error message", "error", err)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
