package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"task-tracker-api/internal/service"
	"task-tracker-api/internal/store"
	"task-tracker-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewTaskService(store.NewTaskStore(testutil.MustInMemoryDB(t)))
	h := NewTaskHandler(svc, zap.NewNop().Sugar())

	r := gin.New()
	r.Any("/trpc/:procedure", h.Procedure)
	api := r.Group("/api")
	{
		api.GET("/tasks", h.GetTasks)
		api.GET("/tasks/stats", h.GetTaskStats)
		api.GET("/tasks/:id", h.GetTaskByID)
		api.POST("/tasks", h.CreateTask)
		api.PUT("/tasks/:id", h.UpdateTask)
		api.PATCH("/tasks/:id", h.UpdateTask)
		api.PATCH("/tasks/:id/status", h.ToggleTaskStatus)
		api.DELETE("/tasks/:id", h.DeleteTask)
	}
	return r
}

func do(r http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// mutate POSTs a procedure call.
func mutate(r http.Handler, procedure, input string) *httptest.ResponseRecorder {
	return do(r, http.MethodPost, "/trpc/"+procedure, input)
}

// queryGET GETs a procedure call with the input in the query string.
func queryGET(r http.Handler, procedure, input string) *httptest.ResponseRecorder {
	target := "/trpc/" + procedure
	if input != "" {
		target += "?input=" + url.QueryEscape(input)
	}
	return do(r, http.MethodGet, target, "")
}

type rpcTask struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type rpcErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Data    struct {
			Code       string       `json:"code"`
			HTTPStatus int          `json:"httpStatus"`
			Path       string       `json:"path"`
			Fields     []FieldError `json:"fields"`
		} `json:"data"`
	} `json:"error"`
}

// result decodes {"result":{"data":...}} into out.
func result(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env struct {
		Result struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Result.Data, out))
}

// allTasks returns every stored task through getTasks.
func allTasks(t *testing.T, r http.Handler) []rpcTask {
	t.Helper()
	var tasks []rpcTask
	result(t, queryGET(r, "getTasks", ""), &tasks)
	return tasks
}

func rpcError(t *testing.T, w *httptest.ResponseRecorder) rpcErrorBody {
	t.Helper()
	var body rpcErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func fieldPaths(fields []FieldError) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Path)
	}
	return out
}
