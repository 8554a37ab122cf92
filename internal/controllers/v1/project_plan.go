package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	"github.com/procureflow/backend/internal/notifier"
	"golang.org/x/exp/slices"
)

// RegisterProjectPlanRoutes registers the routes for project plans with
// the RouterGroup that is passed.
func RegisterProjectPlanRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsProjectPlanList)
		r.GET("", GetProjectPlans)
		r.POST("", CreateProjectPlan)
	}

	// Project plan with ID
	{
		r.OPTIONS("/:id", OptionsProjectPlanDetail)
		r.GET("/:id", GetProjectPlan)
		r.PATCH("/:id", UpdateProjectPlan)

		r.POST("/:id/submit", SubmitProjectPlan)
		r.POST("/:id/decision", DecideProjectPlan)
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			ProjectPlans
// @Success		204
// @Router			/v1/project-plans [options]
func OptionsProjectPlanList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			ProjectPlans
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/project-plans/{id} [options]
func OptionsProjectPlanDetail(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	err = models.DB.First(&models.ProjectPlan{}, uri.ID).Error
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	httputil.OptionsGetPatch(c)
}

// @Summary		Create project plan
// @Description	Creates a new project plan in draft state
// @Tags			ProjectPlans
// @Accept			json
// @Produce		json
// @Success		201		{object}	ProjectPlanResponse
// @Failure		400		{object}	ProjectPlanResponse
// @Failure		500		{object}	ProjectPlanResponse
// @Param			plan	body		ProjectPlanEditable	true	"Project plan"
// @Router			/v1/project-plans [post]
func CreateProjectPlan(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable ProjectPlanEditable
	err := httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	plan := editable.model()
	plan.RequesterName = identity.Name
	plan.RequesterEmail = identity.Email
	plan.Status = models.ProjectPlanDraft

	if plan.Department == "" {
		plan.Department = identity.Department
	}

	err = models.DB.Create(&plan).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	data := newProjectPlan(c, plan)
	c.JSON(http.StatusCreated, ProjectPlanResponse{Data: &data})
}

// @Summary		Get project plans
// @Description	Returns a list of project plans
// @Tags			ProjectPlans
// @Produce		json
// @Success		200	{object}	ProjectPlanListResponse
// @Failure		400	{object}	ProjectPlanListResponse
// @Failure		500	{object}	ProjectPlanListResponse
// @Router			/v1/project-plans [get]
// @Param			department	query	string	false	"Filter by department"
// @Param			status		query	string	false	"Filter by workflow stage"
// @Param			requester	query	string	false	"Filter by email of the requester"
// @Param			offset		query	uint	false	"The offset of the first plan returned. Defaults to 0."
// @Param			limit		query	int		false	"Maximum number of plans to return. Defaults to 50."
func GetProjectPlans(c *gin.Context) {
	var filter ProjectPlanQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.Bind(&filter)

	// Get the fields that we are filtering for
	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	q := models.DB.
		Order("created_at DESC").
		Where(filter.model(), queryFields...)

	// Set the offset. Does not need checking since the default is 0
	q = q.Offset(int(filter.Offset))

	// Default to 50 project plans and set the limit
	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = filter.Limit
	}
	q = q.Limit(limit)

	var plans []models.ProjectPlan
	err := q.Find(&plans).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanListResponse{Error: &e})
		return
	}

	var count int64
	err = q.Limit(-1).Offset(-1).Count(&count).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanListResponse{Error: &e})
		return
	}

	data := make([]ProjectPlan, 0, len(plans))
	for _, plan := range plans {
		if err := plan.LoadSteps(models.DB); err != nil {
			e := err.Error()
			c.JSON(status(err), ProjectPlanListResponse{Error: &e})
			return
		}

		data = append(data, newProjectPlan(c, plan))
	}

	c.JSON(http.StatusOK, ProjectPlanListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  count,
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get project plan
// @Description	Returns a specific project plan with its approval chain
// @Tags			ProjectPlans
// @Produce		json
// @Success		200	{object}	ProjectPlanResponse
// @Failure		400	{object}	ProjectPlanResponse
// @Failure		404	{object}	ProjectPlanResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/project-plans/{id} [get]
func GetProjectPlan(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	var plan models.ProjectPlan
	err = models.DB.First(&plan, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	if err := plan.LoadSteps(models.DB); err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	data := newProjectPlan(c, plan)
	c.JSON(http.StatusOK, ProjectPlanResponse{Data: &data})
}

// @Summary		Update project plan
// @Description	Updates a project plan. Only drafts can be updated.
// @Tags			ProjectPlans
// @Accept			json
// @Produce		json
// @Success		200		{object}	ProjectPlanResponse
// @Failure		400		{object}	ProjectPlanResponse
// @Failure		404		{object}	ProjectPlanResponse
// @Failure		409		{object}	ProjectPlanResponse
// @Param			id		path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			plan	body		ProjectPlanEditable	true	"Project plan"
// @Router			/v1/project-plans/{id} [patch]
func UpdateProjectPlan(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	var plan models.ProjectPlan
	err = models.DB.First(&plan, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	if plan.Status != models.ProjectPlanDraft {
		e := models.ErrInvalidTransition.Error()
		c.JSON(status(models.ErrInvalidTransition), ProjectPlanResponse{Error: &e})
		return
	}

	updateFields, err := httputil.GetBodyFields(c, ProjectPlanEditable{})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	var data ProjectPlanEditable
	err = httputil.BindData(c, &data)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	err = models.DB.Model(&plan).Select("", updateFields...).Updates(data.model()).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	r := newProjectPlan(c, plan)
	c.JSON(http.StatusOK, ProjectPlanResponse{Data: &r})
}

// @Summary		Submit project plan
// @Description	Submits a draft for review. The approval chain is built and frozen at this point.
// @Tags			ProjectPlans
// @Produce		json
// @Success		200	{object}	ProjectPlanResponse
// @Failure		400	{object}	ProjectPlanResponse
// @Failure		403	{object}	ProjectPlanResponse
// @Failure		404	{object}	ProjectPlanResponse
// @Failure		409	{object}	ProjectPlanResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/project-plans/{id}/submit [post]
func SubmitProjectPlan(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	plan, err := models.SubmitProjectPlan(uri.ID.UUID, identity)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	notifier.Publish("submitted", "project_plan", plan.ID, identity.Email, nil)

	data := newProjectPlan(c, plan)
	c.JSON(http.StatusOK, ProjectPlanResponse{Data: &data})
}

// @Summary		Decide project plan
// @Description	Applies the next approval chain decision to a submitted plan
// @Tags			ProjectPlans
// @Accept			json
// @Produce		json
// @Success		200			{object}	ProjectPlanResponse
// @Failure		400			{object}	ProjectPlanResponse
// @Failure		403			{object}	ProjectPlanResponse
// @Failure		404			{object}	ProjectPlanResponse
// @Failure		409			{object}	ProjectPlanResponse
// @Param			id			path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			decision	body		DecisionEditable	true	"Decision"
// @Router			/v1/project-plans/{id}/decision [post]
func DecideProjectPlan(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable DecisionEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	decision, err := parseDecision(editable.Decision)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	plan, err := models.DecideProjectPlan(uri.ID.UUID, identity, decision, editable.Comment)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ProjectPlanResponse{Error: &e})
		return
	}

	notifier.Publish(string(plan.Status), "project_plan", plan.ID, identity.Email, nil)

	data := newProjectPlan(c, plan)
	c.JSON(http.StatusOK, ProjectPlanResponse{Data: &data})
}
