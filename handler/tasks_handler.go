package handler

import (
	"gradient/dto"
	"gradient/usecase"
	"gradient/utils"

	"github.com/gin-gonic/gin"
)

// requireProject answers 404 when the path's project does not exist.
func requireProject(c *gin.Context, projects *usecase.ProjectsService) (string, bool) {
	id := c.Param("id")
	if _, err := projects.GetProject(c.Request.Context(), id); err != nil {
		respondError(c, "load project", err, nil)
		return "", false
	}
	return id, true
}

func ListTasksHandler(c *gin.Context, projects *usecase.ProjectsService, tasks *usecase.TasksService) {
	projectID, ok := requireProject(c, projects)
	if !ok {
		return
	}
	list, err := tasks.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, "list tasks", err, nil)
		return
	}
	utils.Success(c, dto.ToTaskResponses(list))
}

func StreamTasksHandler(c *gin.Context, projects *usecase.ProjectsService, tasks *usecase.TasksService) {
	projectID, ok := requireProject(c, projects)
	if !ok {
		return
	}
	live, err := tasks.WatchTasks(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, "watch tasks", err, nil)
		return
	}
	streamList(c, live, "tasks", dto.ToTaskResponses)
}

func CreateTaskHandler(c *gin.Context, projects *usecase.ProjectsService, tasks *usecase.TasksService) {
	projectID, ok := requireProject(c, projects)
	if !ok {
		return
	}
	var req dto.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	task := req.ToModel("", projectID)
	if err := tasks.CreateTask(c.Request.Context(), task); err != nil {
		respondError(c, "create task", err, dto.ToTaskResponse(task))
		return
	}
	utils.Created(c, dto.ToTaskResponse(task))
}

func UpdateTaskHandler(c *gin.Context, tasks *usecase.TasksService) {
	var req dto.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	task := req.ToModel(c.Param("id"), "")
	if err := tasks.UpdateTask(c.Request.Context(), task); err != nil {
		respondError(c, "update task", err, nil)
		return
	}
	utils.Success(c, dto.ToTaskResponse(task))
}

func ToggleTaskHandler(c *gin.Context, tasks *usecase.TasksService) {
	task, err := tasks.ToggleComplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "toggle task", err, nil)
		return
	}
	utils.Success(c, dto.ToTaskResponse(&task))
}

func SetReminderHandler(c *gin.Context, tasks *usecase.TasksService) {
	var req dto.ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	task, err := tasks.SetReminder(c.Request.Context(), c.Param("id"), req.At)
	if err != nil {
		respondError(c, "set reminder", err, nil)
		return
	}
	utils.Success(c, dto.ToTaskResponse(&task))
}

func ClearReminderHandler(c *gin.Context, tasks *usecase.TasksService) {
	task, err := tasks.ClearReminder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "clear reminder", err, nil)
		return
	}
	utils.Success(c, dto.ToTaskResponse(&task))
}

func DeleteTaskHandler(c *gin.Context, tasks *usecase.TasksService) {
	id := c.Param("id")
	if err := tasks.DeleteTask(c.Request.Context(), id); err != nil {
		respondError(c, "delete task", err, gin.H{"id": id, "deleted": true})
		return
	}
	utils.Success(c, gin.H{"id": id, "deleted": true})
}
