// Package taskserver is the REST backend the sync engine drains against:
// bearer-authenticated task CRUD over gin with a sqlite repo.
package taskserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tasksync/internal/logging"
)

func NewRouter(cfg Config, logger *logging.Logger, h *TaskHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(Auth(cfg))
	{
		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks", h.ListTasks)
		api.GET("/tasks/:id", h.GetTask)
		api.PUT("/tasks/:id", h.UpdateTask)
		api.DELETE("/tasks/:id", h.DeleteTask)
	}
	return r
}
