package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legalmind/internal/contracts"
	"legalmind/internal/extract"
	"legalmind/internal/logging"
	"legalmind/internal/models"
	"legalmind/internal/orchestrator"
	"legalmind/internal/session"
	"legalmind/internal/store"
	"legalmind/internal/uploads"
	"legalmind/internal/worker"
)

const (
	defaultMaxUploadBytes = 10 << 20
	multipartOverhead     = 1 << 20

	greetingWithDocument    = "Hello! How can I help you today? Ask a question about your uploaded document or general legal topics, or request a contract generation."
	greetingWithoutDocument = "Hello! How can I help you today? Ask general legal questions or request a contract generation."
)

type Orchestrator interface {
	RunChat(ctx context.Context, userInput, sessionID string, documentContext *string) (string, error)
	RunContractFlow(ctx context.Context, contractType, details, sessionID string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// Handler wires HTTP routes to the orchestrator and the session store.
type Handler struct {
	orchestrator   Orchestrator
	store          store.Store
	extractor      Extractor
	spool          *uploads.Spool
	registry       *contracts.Registry
	maxUploadBytes int64
}

// NewHandler constructs a Handler instance. spool may be nil to skip keeping upload copies.
func NewHandler(orch Orchestrator, st store.Store, extractor Extractor, spool *uploads.Spool, registry *contracts.Registry, maxUploadBytes int64) *Handler {
	if registry == nil {
		registry = contracts.Default
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		orchestrator:   orch,
		store:          st,
		extractor:      extractor,
		spool:          spool,
		registry:       registry,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/upload", h.upload)

	assistant := router.Group("/assistant")
	assistant.GET("/contract-types", h.contractTypes)
	sessionRoutes := assistant.Group("")
	sessionRoutes.Use(requireSessionID())
	sessionRoutes.GET("/:session_id", h.assistantPage)
	sessionRoutes.POST("/chat/:session_id", h.chat)
	sessionRoutes.POST("/generate/:session_id", h.generateContract)
	sessionRoutes.GET("/history/:session_id", h.history)
}

func requireSessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.ValidID(c.Param("session_id")) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) upload(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if strings.TrimSpace(file.Filename) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file selected"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	content, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}

	sessionID, err := session.NewID()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create session failed"})
		return
	}
	log := logging.FromContext(ctx).With("session_id", sessionID, "file_name", file.Filename)
	log.Info("handling upload", "size", len(content))

	var spooled *models.TempFile
	if h.spool != nil {
		spooled, err = h.spool.Save(sessionID, file.Filename, content)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
			return
		}
	}

	text, err := h.extractor.Extract(ctx, file.Filename, content)
	switch {
	case errors.Is(err, extract.ErrUnsupported):
		log.Warn("unsupported file type")
	case err != nil:
		log.Warn("text extraction failed", "error", err)
	}
	if text == "" {
		log.Warn("no text extracted, continuing without document context")
		h.spool.Remove(spooled)
	} else {
		log.Info("text extracted", "characters", len(text))
	}

	// an empty document still marks the session as created from an upload
	if err := h.store.PutDocument(ctx, sessionID, text); err != nil {
		h.spool.Remove(spooled)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store document failed"})
		return
	}

	c.Header("Location", "/assistant/"+sessionID)
	c.JSON(http.StatusSeeOther, gin.H{
		"session_id":   sessionID,
		"has_document": text != "",
		"characters":   len(text),
	})
}

func (h *Handler) assistantPage(c *gin.Context) {
	sessionID := c.Param("session_id")
	text, _, err := h.store.GetDocument(c.Request.Context(), sessionID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load session failed"})
		return
	}
	greeting := greetingWithoutDocument
	if text != "" {
		greeting = greetingWithDocument
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":      sessionID,
		"has_document":    text != "",
		"initial_message": greeting,
	})
}

type chatRequest struct {
	UserInput string `json:"user_input" form:"user_input"`
}

func (h *Handler) chat(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("session_id")
	var req chatRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_input is required"})
		return
	}
	logging.FromContext(ctx).Info("received chat input",
		"session_id", sessionID,
		"input", logging.Truncate(req.UserInput, 50))

	docText, _, err := h.store.GetDocument(ctx, sessionID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing chat message."})
		return
	}
	reply, err := h.orchestrator.RunChat(ctx, req.UserInput, sessionID, &docText)
	if err != nil {
		writeTurnError(c, err, "Error processing chat message.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *Handler) generateContract(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("session_id")
	var req models.ContractRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Details) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contract_type and details are required"})
		return
	}
	logging.FromContext(ctx).Info("received contract generation request",
		"session_id", sessionID,
		"contract_type", req.Type,
		"details", logging.Truncate(req.Details, 50))

	reply, err := h.orchestrator.RunContractFlow(ctx, req.Type, req.Details, sessionID)
	if err != nil {
		writeTurnError(c, err, "Error generating contract.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply, "contract_type": req.Type})
}

func (h *Handler) history(c *gin.Context) {
	sessionID := c.Param("session_id")
	messages, err := h.store.History(c.Request.Context(), sessionID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": messages})
}

func (h *Handler) contractTypes(c *gin.Context) {
	types := h.registry.Types()
	out := make([]gin.H, 0, len(types))
	for _, t := range types {
		out = append(out, gin.H{"type": t, "name": contracts.DisplayName(t)})
	}
	c.JSON(http.StatusOK, gin.H{"types": out})
}

func writeTurnError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.Is(err, orchestrator.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_input is required"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
