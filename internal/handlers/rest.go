package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"task-tracker-api/internal/models"

	"github.com/gin-gonic/gin"
)

// idParam turns the :id path segment into a payload value. Non-numeric ids
// are passed as strings so validation reports them.
func idParam(c *gin.Context) json.RawMessage {
	id := c.Param("id")
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.RawMessage(id)
	}
	quoted, _ := json.Marshal(id)
	return quoted
}

// bodyPayload decodes the JSON request body; an empty body is an empty payload.
func bodyPayload(c *gin.Context) (payload, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return decodePayload(body)
}

func (h *TaskHandler) rest(c *gin.Context, name string, p payload, status int) {
	out, err := h.procedures[name].call(c.Request.Context(), p)
	if err != nil {
		h.renderRESTError(c, h.classify(c, err))
		return
	}
	c.JSON(status, out)
}

func (h *TaskHandler) renderRESTError(c *gin.Context, e apiError) {
	body := gin.H{"error": e.message}
	if len(e.fields) > 0 {
		body["fields"] = e.fields
	}
	c.JSON(e.status, body)
}

// GetTasks handles GET /api/tasks?status=&priority=
func (h *TaskHandler) GetTasks(c *gin.Context) {
	p := payload{}
	for _, key := range []string{"status", "priority"} {
		if v := c.Query(key); v != "" {
			quoted, _ := json.Marshal(v)
			p[key] = quoted
		}
	}
	h.rest(c, "getTasks", p, http.StatusOK)
}

// GetTaskStats handles GET /api/tasks/stats
func (h *TaskHandler) GetTaskStats(c *gin.Context) {
	h.rest(c, "getTaskStats", payload{}, http.StatusOK)
}

// GetTaskByID handles GET /api/tasks/:id
// Unlike the getTaskById procedure, a missing task is a 404.
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	out, err := h.getTaskByID(c.Request.Context(), payload{"id": idParam(c)})
	if err != nil {
		h.renderRESTError(c, h.classify(c, err))
		return
	}
	if task, _ := out.(*models.Task); task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// CreateTask handles POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	p, err := bodyPayload(c)
	if err != nil {
		h.renderRESTError(c, h.classify(c, err))
		return
	}
	h.rest(c, "createTask", p, http.StatusCreated)
}

// UpdateTask handles PUT and PATCH /api/tasks/:id
// The path id wins over an id in the body.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	p, err := bodyPayload(c)
	if err != nil {
		h.renderRESTError(c, h.classify(c, err))
		return
	}
	p["id"] = idParam(c)
	h.rest(c, "updateTask", p, http.StatusOK)
}

// ToggleTaskStatus handles PATCH /api/tasks/:id/status
func (h *TaskHandler) ToggleTaskStatus(c *gin.Context) {
	h.rest(c, "toggleTaskStatus", payload{"id": idParam(c)}, http.StatusOK)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	h.rest(c, "deleteTask", payload{"id": idParam(c)}, http.StatusOK)
}
