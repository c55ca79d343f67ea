package handler

import (
	"gradient/dto"
	"gradient/usecase"
	"gradient/utils"

	"github.com/gin-gonic/gin"
)

func searchParams(c *gin.Context) (usecase.SearchScope, string, bool) {
	scope, ok := usecase.ParseSearchScope(c.Query("scope"))
	if !ok {
		utils.BadRequest(c, "Unknown search scope")
		return "", "", false
	}
	return scope, c.Query("q"), true
}

func ListProjectsHandler(c *gin.Context, projects *usecase.ProjectsService) {
	scope, query, ok := searchParams(c)
	if !ok {
		return
	}
	list, err := projects.ListProjects(c.Request.Context())
	if err != nil {
		respondError(c, "list projects", err, nil)
		return
	}
	utils.Success(c, dto.ToProjectResponses(usecase.FilterProjects(list, scope, query)))
}

// StreamProjectsHandler streams the ordered project list, narrowed by the
// optional scope and q parameters.
func StreamProjectsHandler(c *gin.Context, projects *usecase.ProjectsService) {
	scope, query, ok := searchParams(c)
	if !ok {
		return
	}
	live, err := projects.WatchProjects(c.Request.Context())
	if err != nil {
		respondError(c, "watch projects", err, nil)
		return
	}
	projects.SearchProjects(live, scope, query)
	streamList(c, live, "projects", dto.ToProjectResponses)
}

func GetProjectHandler(c *gin.Context, projects *usecase.ProjectsService) {
	p, err := projects.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get project", err, nil)
		return
	}
	utils.Success(c, dto.ToProjectResponse(&p))
}

func CreateProjectHandler(c *gin.Context, projects *usecase.ProjectsService) {
	var req dto.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	p := req.ToModel("")
	if err := projects.CreateProject(c.Request.Context(), p); err != nil {
		respondError(c, "create project", err, nil)
		return
	}
	utils.Created(c, dto.ToProjectResponse(p))
}

func UpdateProjectHandler(c *gin.Context, projects *usecase.ProjectsService) {
	var req dto.ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := projects.UpdateProject(ctx, req.ToModel(id)); err != nil {
		respondError(c, "update project", err, nil)
		return
	}
	p, err := projects.GetProject(ctx, id)
	if err != nil {
		respondError(c, "get project", err, nil)
		return
	}
	utils.Success(c, dto.ToProjectResponse(&p))
}

// DeleteProjectHandler deletes the project with its tasks and notes.
func DeleteProjectHandler(c *gin.Context, projects *usecase.ProjectsService) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := projects.GetProject(ctx, id); err != nil {
		respondError(c, "delete project", err, nil)
		return
	}

	report, err := projects.DeleteProject(ctx, id)
	if err != nil {
		respondError(c, "delete project", err, nil)
		return
	}
	utils.Success(c, dto.ToCascadeResponse(report))
}
