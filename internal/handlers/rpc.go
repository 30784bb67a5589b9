package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"task-tracker-api/internal/middleware"
	"task-tracker-api/internal/models"
	"task-tracker-api/internal/service"
	"task-tracker-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TaskService is the business layer the handlers dispatch to.
type TaskService interface {
	Create(ctx context.Context, in service.CreateInput) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	Update(ctx context.Context, in service.UpdateInput) (*models.Task, error)
	ToggleStatus(ctx context.Context, id int64) (*models.Task, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (models.TaskStats, error)
}

type procedureKind int

const (
	query procedureKind = iota
	mutation
)

type procedure struct {
	kind procedureKind
	call func(ctx context.Context, p payload) (any, error)
}

// Error codes follow the JSON-RPC numbering used by tRPC clients.
const (
	codeParseError         = "PARSE_ERROR"
	codeBadRequest         = "BAD_REQUEST"
	codeNotFound           = "NOT_FOUND"
	codeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	codeInternal           = "INTERNAL_SERVER_ERROR"
)

var rpcCodes = map[string]int{
	codeParseError:         -32700,
	codeBadRequest:         -32600,
	codeInternal:           -32603,
	codeNotFound:           -32004,
	codeMethodNotSupported: -32005,
}

// apiError is an error classified for the wire.
type apiError struct {
	status  int
	code    string
	message string
	fields  []FieldError
}

// TaskHandler exposes the task service as named procedures and REST routes.
type TaskHandler struct {
	svc        TaskService
	log        *zap.SugaredLogger
	procedures map[string]procedure
}

// NewTaskHandler registers every task procedure.
func NewTaskHandler(svc TaskService, log *zap.SugaredLogger) *TaskHandler {
	h := &TaskHandler{svc: svc, log: log}
	h.procedures = map[string]procedure{
		"healthcheck":      {kind: query, call: h.healthcheck},
		"createTask":       {kind: mutation, call: h.createTask},
		"getTasks":         {kind: query, call: h.getTasks},
		"getTaskById":      {kind: query, call: h.getTaskByID},
		"getTaskStats":     {kind: query, call: h.getTaskStats},
		"updateTask":       {kind: mutation, call: h.updateTask},
		"deleteTask":       {kind: mutation, call: h.deleteTask},
		"toggleTaskStatus": {kind: mutation, call: h.toggleTaskStatus},
	}
	return h
}

func (h *TaskHandler) healthcheck(context.Context, payload) (any, error) {
	return gin.H{"status": "ok", "timestamp": time.Now().UTC()}, nil
}

func (h *TaskHandler) createTask(ctx context.Context, p payload) (any, error) {
	in, err := parseCreateInput(p)
	if err != nil {
		return nil, err
	}
	return h.svc.Create(ctx, in)
}

func (h *TaskHandler) getTasks(ctx context.Context, p payload) (any, error) {
	filter, err := parseFilter(p)
	if err != nil {
		return nil, err
	}
	return h.svc.List(ctx, filter)
}

func (h *TaskHandler) getTaskByID(ctx context.Context, p payload) (any, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	return h.svc.GetByID(ctx, id)
}

func (h *TaskHandler) getTaskStats(ctx context.Context, _ payload) (any, error) {
	return h.svc.Stats(ctx)
}

func (h *TaskHandler) updateTask(ctx context.Context, p payload) (any, error) {
	in, err := parseUpdateInput(p)
	if err != nil {
		return nil, err
	}
	return h.svc.Update(ctx, in)
}

func (h *TaskHandler) deleteTask(ctx context.Context, p payload) (any, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		return nil, err
	}
	return gin.H{"success": true}, nil
}

func (h *TaskHandler) toggleTaskStatus(ctx context.Context, p payload) (any, error) {
	id, err := parseID(p)
	if err != nil {
		return nil, err
	}
	return h.svc.ToggleStatus(ctx, id)
}

// Procedure handles /trpc/:procedure.
// Queries accept GET with the JSON input in the "input" query parameter or
// POST with a JSON body; mutations accept POST only.
func (h *TaskHandler) Procedure(c *gin.Context) {
	name := c.Param("procedure")
	proc, ok := h.procedures[name]
	if !ok {
		h.renderRPCError(c, name, apiError{
			status:  http.StatusNotFound,
			code:    codeNotFound,
			message: fmt.Sprintf("No procedure found on path %q", name),
		})
		return
	}

	var raw []byte
	switch c.Request.Method {
	case http.MethodGet:
		if proc.kind != query {
			h.renderRPCError(c, name, methodNotSupported(c.Request.Method, name))
			return
		}
		raw = []byte(c.Query("input"))
	case http.MethodPost:
		body, err := c.GetRawData()
		if err != nil {
			h.renderRPCError(c, name, h.classify(c, &ParseError{Err: err}))
			return
		}
		raw = body
	default:
		h.renderRPCError(c, name, methodNotSupported(c.Request.Method, name))
		return
	}

	p, err := decodePayload(raw)
	if err != nil {
		h.renderRPCError(c, name, h.classify(c, err))
		return
	}
	out, err := proc.call(c.Request.Context(), p)
	if err != nil {
		h.renderRPCError(c, name, h.classify(c, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"data": out}})
}

func methodNotSupported(method, name string) apiError {
	return apiError{
		status:  http.StatusMethodNotAllowed,
		code:    codeMethodNotSupported,
		message: fmt.Sprintf("Unsupported %s request to procedure %q", method, name),
	}
}

// classify maps an error to its wire representation. Unexpected errors are
// logged with the request id and reported without detail.
func (h *TaskHandler) classify(c *gin.Context, err error) apiError {
	var (
		validationErr *ValidationError
		parseErr      *ParseError
	)
	switch {
	case errors.As(err, &validationErr):
		return apiError{
			status:  http.StatusBadRequest,
			code:    codeBadRequest,
			message: validationErr.Error(),
			fields:  validationErr.Fields,
		}
	case errors.As(err, &parseErr):
		return apiError{status: http.StatusBadRequest, code: codeParseError, message: parseErr.Error()}
	case errors.Is(err, service.ErrTaskNotFound):
		return apiError{status: http.StatusNotFound, code: codeNotFound, message: err.Error()}
	case errors.Is(err, store.ErrInvalidPatch):
		return apiError{status: http.StatusBadRequest, code: codeBadRequest, message: err.Error()}
	default:
		_ = c.Error(err)
		h.log.Errorw("procedure failed",
			"request_id", c.GetString(middleware.RequestIDKey),
			"path", c.Request.URL.Path,
			"error", err,
		)
		return apiError{status: http.StatusInternalServerError, code: codeInternal, message: "Internal server error"}
	}
}

func (h *TaskHandler) renderRPCError(c *gin.Context, path string, e apiError) {
	data := gin.H{
		"code":       e.code,
		"httpStatus": e.status,
		"path":       path,
	}
	if len(e.fields) > 0 {
		data["fields"] = e.fields
	}
	c.JSON(e.status, gin.H{
		"error": gin.H{
			"message": e.message,
			"code":    rpcCodes[e.code],
			"data":    data,
		},
	})
}
