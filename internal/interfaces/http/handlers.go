package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
)

// HeaderUserID carries the id of the acting user
const HeaderUserID = "X-User-ID"

const actorKey = "actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services        Services
	defaultCurrency string
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, defaultCurrency string, logger Logger) *Handlers {
	return &Handlers{
		services:        services,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ActorMiddleware resolves the acting user from the X-User-ID header
func (h *Handlers) ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		if raw == "" {
			h.abort(c, http.StatusUnauthorized, HeaderUserID+" header is required")
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			h.abort(c, http.StatusBadRequest, "invalid "+HeaderUserID+" header")
			return
		}

		actor, err := h.services.Directory.ResolveActor(c.Request.Context(), userID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				h.abort(c, http.StatusUnauthorized, "unknown user")
				return
			}
			h.fail(c, err)
			c.Abort()
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Actor{}
}

// statusOf maps an application error kind to an HTTP status
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindConfiguration, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPolicyViolation:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Internal errors are logged and hidden.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	message := apperr.MessageOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		message = "internal server error"
	}

	c.JSON(status, Response{Success: false, Error: message})
}

func (h *Handlers) abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: message})
}

func (h *Handlers) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// pathID parses the :id path parameter, answering 400 when it is invalid
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.abort(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// bind decodes the JSON body into req, answering 400 when it is malformed
func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
