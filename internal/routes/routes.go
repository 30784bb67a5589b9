package routes

import (
	"task-tracker-api/internal/handlers"
	"task-tracker-api/internal/middleware"
	"task-tracker-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the components the router dispatches to.
type Deps struct {
	Tasks       *handlers.TaskHandler
	Hub         *realtime.Hub
	Checks      map[string]handlers.Checker
	Logger      *zap.SugaredLogger
	CORSOrigins []string
}

func SetupRoutes(deps Deps) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()
	ginRouter.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.Recovery(deps.Logger),
		// CORS middleware (for frontend integration)
		middleware.CORS(deps.CORSOrigins),
	)

	// Health check endpoints
	ginRouter.GET("/health", handlers.Health)
	ginRouter.GET("/readyz", handlers.Ready(deps.Checks))

	// Realtime task events
	ginRouter.GET("/ws", handlers.WebSocketHandler(deps.Hub, deps.Logger))

	// Procedure calls, e.g. GET /trpc/getTasks?input={...} or POST /trpc/createTask
	ginRouter.Any("/trpc/:procedure", deps.Tasks.Procedure)

	// REST aliases of the same procedures
	api := ginRouter.Group("/api")
	{
		api.GET("/tasks", deps.Tasks.GetTasks)
		api.GET("/tasks/stats", deps.Tasks.GetTaskStats)
		api.GET("/tasks/:id", deps.Tasks.GetTaskByID)
		api.POST("/tasks", deps.Tasks.CreateTask)
		api.PUT("/tasks/:id", deps.Tasks.UpdateTask)
		api.PATCH("/tasks/:id", deps.Tasks.UpdateTask)
		api.PATCH("/tasks/:id/status", deps.Tasks.ToggleTaskStatus)
		api.DELETE("/tasks/:id", deps.Tasks.DeleteTask)
	}

	return ginRouter
}
