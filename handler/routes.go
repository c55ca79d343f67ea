package handler

import (
	"gradient/usecase"

	"github.com/gin-gonic/gin"
)

type Services struct {
	Projects *usecase.ProjectsService
	Tasks    *usecase.TasksService
	Notes    *usecase.NotesService
	// MaxUploadBytes caps a single uploaded file; zero means no cap
	MaxUploadBytes int64
}

// RegisterRoutes mounts the project, task and note endpoints on api.
func RegisterRoutes(api *gin.RouterGroup, s Services) {
	projects := api.Group("/projects")
	{
		projects.GET("", func(c *gin.Context) {
			ListProjectsHandler(c, s.Projects)
		})
		projects.GET("/stream", func(c *gin.Context) {
			StreamProjectsHandler(c, s.Projects)
		})
		projects.POST("", func(c *gin.Context) {
			CreateProjectHandler(c, s.Projects)
		})
		projects.GET("/:id", func(c *gin.Context) {
			GetProjectHandler(c, s.Projects)
		})
		projects.PUT("/:id", func(c *gin.Context) {
			UpdateProjectHandler(c, s.Projects)
		})
		projects.DELETE("/:id", func(c *gin.Context) {
			DeleteProjectHandler(c, s.Projects)
		})

		// Children of a project
		projects.GET("/:id/tasks", func(c *gin.Context) {
			ListTasksHandler(c, s.Projects, s.Tasks)
		})
		projects.GET("/:id/tasks/stream", func(c *gin.Context) {
			StreamTasksHandler(c, s.Projects, s.Tasks)
		})
		projects.POST("/:id/tasks", func(c *gin.Context) {
			CreateTaskHandler(c, s.Projects, s.Tasks)
		})
		projects.GET("/:id/notes", func(c *gin.Context) {
			ListNotesHandler(c, s.Projects, s.Notes)
		})
		projects.GET("/:id/notes/stream", func(c *gin.Context) {
			StreamNotesHandler(c, s.Projects, s.Notes)
		})
		projects.POST("/:id/notes", func(c *gin.Context) {
			CreateNoteHandler(c, s.Projects, s.Notes, s.MaxUploadBytes)
		})
	}

	tasks := api.Group("/tasks")
	{
		tasks.PUT("/:id", func(c *gin.Context) {
			UpdateTaskHandler(c, s.Tasks)
		})
		tasks.DELETE("/:id", func(c *gin.Context) {
			DeleteTaskHandler(c, s.Tasks)
		})
		tasks.POST("/:id/toggle", func(c *gin.Context) {
			ToggleTaskHandler(c, s.Tasks)
		})
		tasks.PUT("/:id/reminder", func(c *gin.Context) {
			SetReminderHandler(c, s.Tasks)
		})
		tasks.DELETE("/:id/reminder", func(c *gin.Context) {
			ClearReminderHandler(c, s.Tasks)
		})
	}

	notes := api.Group("/notes")
	{
		notes.PUT("/:id", func(c *gin.Context) {
			UpdateNoteHandler(c, s.Notes, s.MaxUploadBytes)
		})
		notes.DELETE("/:id", func(c *gin.Context) {
			DeleteNoteHandler(c, s.Notes)
		})
	}
}
