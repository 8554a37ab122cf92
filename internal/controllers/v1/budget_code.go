package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	"github.com/procureflow/backend/internal/notifier"
	"github.com/ryanuber/go-glob"
	"golang.org/x/exp/slices"
)

// RegisterBudgetCodeRoutes registers the routes for budget codes with
// the RouterGroup that is passed.
func RegisterBudgetCodeRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsBudgetCodeList)
		r.GET("", GetBudgetCodes)
		r.POST("", CreateBudgetCode)
	}

	// Budget code with ID
	{
		r.OPTIONS("/:id", OptionsBudgetCodeDetail)
		r.GET("/:id", GetBudgetCode)
		r.PATCH("/:id", UpdateBudgetCode)
		r.DELETE("/:id", DeactivateBudgetCode)

		r.GET("/:id/forecast", GetBudgetCodeForecast)
		r.GET("/:id/utilization", GetBudgetCodeUtilization)
		r.GET("/:id/transactions", GetBudgetCodeTransactions)
		r.GET("/:id/allocations", GetBudgetCodeAllocations)

		r.GET("/:id/revisions", GetBudgetRevisions)
		r.POST("/:id/revisions", CreateBudgetRevision)
		r.GET("/:id/revisions/:subId", GetBudgetRevision)
		r.POST("/:id/revisions/:subId/decision", DecideBudgetRevisionRequest)
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			BudgetCodes
// @Success		204
// @Router			/v1/budget-codes [options]
func OptionsBudgetCodeList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			BudgetCodes
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id} [options]
func OptionsBudgetCodeDetail(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	err = models.DB.First(&models.BudgetCode{}, uri.ID).Error
	if err != nil {
		c.JSON(status(err), httpError{
			Error: err.Error(),
		})
		return
	}

	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Create budget code
// @Description	Creates a new budget code
// @Tags			BudgetCodes
// @Produce		json
// @Success		201			{object}	BudgetCodeResponse
// @Failure		400			{object}	BudgetCodeResponse
// @Failure		500			{object}	BudgetCodeResponse
// @Param			budgetCode	body		BudgetCodeEditable	true	"Budget code"
// @Router			/v1/budget-codes [post]
func CreateBudgetCode(c *gin.Context) {
	var editable BudgetCodeEditable

	err := httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	code := editable.model()
	code.Active = true

	err = models.DB.Create(&code).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	data := newBudgetCode(c, code)
	c.JSON(http.StatusCreated, BudgetCodeResponse{Data: &data})
}

// @Summary		Get budget codes
// @Description	Returns a list of budget codes
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	BudgetCodeListResponse
// @Failure		400	{object}	BudgetCodeListResponse
// @Failure		500	{object}	BudgetCodeListResponse
// @Router			/v1/budget-codes [get]
// @Param			code		query	string	false	"Filter by code, glob patterns are supported"
// @Param			department	query	string	false	"Filter by department"
// @Param			fiscalYear	query	int		false	"Filter by fiscal year"
// @Param			active		query	bool	false	"Is the budget code active?"
// @Param			offset		query	uint	false	"The offset of the first budget code returned. Defaults to 0."
// @Param			limit		query	int		false	"Maximum number of budget codes to return. Defaults to 50."
func GetBudgetCodes(c *gin.Context) {
	var filter BudgetCodeQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.Bind(&filter)

	// Get the fields that we are filtering for
	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	q := models.DB.
		Order("code ASC").
		Where(filter.model(), queryFields...)

	// Default to 50 budget codes and set the limit
	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = filter.Limit
	}

	var codes []models.BudgetCode
	err := q.Find(&codes).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeListResponse{Error: &e})
		return
	}

	// The code filter supports globs, which the database cannot evaluate,
	// so matching and pagination both happen after the query. Total counts
	// matches only.
	matched := make([]models.BudgetCode, 0, len(codes))
	for _, code := range codes {
		if filter.Code != "" && !glob.Glob(filter.Code, code.Code) {
			continue
		}

		matched = append(matched, code)
	}

	offset := int(filter.Offset)
	if offset > len(matched) {
		offset = len(matched)
	}

	end := offset + limit
	if limit < 0 || end > len(matched) {
		end = len(matched)
	}

	data := make([]BudgetCode, 0, end-offset)
	for _, code := range matched[offset:end] {
		data = append(data, newBudgetCode(c, code))
	}

	c.JSON(http.StatusOK, BudgetCodeListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  int64(len(matched)),
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get budget code
// @Description	Returns a specific budget code
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	BudgetCodeResponse
// @Failure		400	{object}	BudgetCodeResponse
// @Failure		404	{object}	BudgetCodeResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id} [get]
func GetBudgetCode(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	data := newBudgetCode(c, code)
	c.JSON(http.StatusOK, BudgetCodeResponse{Data: &data})
}

// @Summary		Update budget code
// @Description	Updates descriptive fields of a budget code. The total budget can only be changed through a budget revision.
// @Tags			BudgetCodes
// @Accept			json
// @Produce		json
// @Success		200			{object}	BudgetCodeResponse
// @Failure		400			{object}	BudgetCodeResponse
// @Failure		404			{object}	BudgetCodeResponse
// @Param			id			path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			budgetCode	body		BudgetCodeEditable	true	"Budget code"
// @Router			/v1/budget-codes/{id} [patch]
func UpdateBudgetCode(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	updateFields, err := httputil.GetBodyFields(c, BudgetCodeEditable{})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	// The total budget is governed by budget revisions and their
	// approval chain, a plain update must not touch it.
	updateFields = slices.DeleteFunc(updateFields, func(f any) bool {
		return f == "TotalBudget"
	})

	var data BudgetCodeEditable
	err = httputil.BindData(c, &data)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	err = models.DB.Model(&code).Select("", updateFields...).Updates(data.model()).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetCodeResponse{Error: &e})
		return
	}

	r := newBudgetCode(c, code)
	c.JSON(http.StatusOK, BudgetCodeResponse{Data: &r})
}

// @Summary		Deactivate budget code
// @Description	Deactivates a budget code. The ledger history is retained, the code rejects new reservations.
// @Tags			BudgetCodes
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id} [delete]
func DeactivateBudgetCode(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	err = models.DB.Model(&code).Select("Active").Updates(models.BudgetCode{Active: false}).Error
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary		Get forecast
// @Description	Projects when the budget code runs out of money at the current burn rate
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	ForecastResponse
// @Failure		400	{object}	ForecastResponse
// @Failure		404	{object}	ForecastResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id}/forecast [get]
func GetBudgetCodeForecast(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ForecastResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ForecastResponse{Error: &e})
		return
	}

	forecast, err := code.Forecast(time.Now())
	if err != nil {
		e := err.Error()
		c.JSON(status(err), ForecastResponse{Error: &e})
		return
	}

	c.JSON(http.StatusOK, ForecastResponse{Data: &forecast})
}

// @Summary		Get utilization
// @Description	Returns how much of the budget code is used, with an alerting classification
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	UtilizationResponse
// @Failure		400	{object}	UtilizationResponse
// @Failure		404	{object}	UtilizationResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id}/utilization [get]
func GetBudgetCodeUtilization(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), UtilizationResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), UtilizationResponse{Error: &e})
		return
	}

	data := UtilizationObject{
		TotalBudget: code.TotalBudget,
		Used:        code.Used,
		Remaining:   code.Remaining(),
		Utilization: code.Utilization(),
		Status:      string(code.UtilizationStatus()),
	}
	c.JSON(http.StatusOK, UtilizationResponse{Data: &data})
}

// @Summary		Get ledger transactions
// @Description	Returns the append-only audit trail of the budget code
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	LedgerTransactionListResponse
// @Failure		400	{object}	LedgerTransactionListResponse
// @Failure		404	{object}	LedgerTransactionListResponse
// @Param			id		path	URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			offset	query	uint	false	"The offset of the first transaction returned. Defaults to 0."
// @Param			limit	query	int		false	"Maximum number of transactions to return. Defaults to 50."
// @Router			/v1/budget-codes/{id}/transactions [get]
func GetBudgetCodeTransactions(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), LedgerTransactionListResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), LedgerTransactionListResponse{Error: &e})
		return
	}

	var filter struct {
		Offset uint `form:"offset"`
		Limit  int  `form:"limit"`
	}
	_ = c.Bind(&filter)

	limit := 50
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	q := models.DB.
		Where("budget_code_id = ?", code.ID).
		Order("created_at DESC").
		Offset(int(filter.Offset)).
		Limit(limit)

	var transactions []models.LedgerTransaction
	err = q.Find(&transactions).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), LedgerTransactionListResponse{Error: &e})
		return
	}

	var count int64
	err = q.Limit(-1).Offset(-1).Count(&count).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), LedgerTransactionListResponse{Error: &e})
		return
	}

	data := make([]LedgerTransactionObject, 0, len(transactions))
	for _, transaction := range transactions {
		data = append(data, newLedgerTransaction(transaction))
	}

	c.JSON(http.StatusOK, LedgerTransactionListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  count,
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get allocations
// @Description	Returns the allocations of the budget code
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	AllocationListResponse
// @Failure		400	{object}	AllocationListResponse
// @Failure		404	{object}	AllocationListResponse
// @Param			id	path	URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id}/allocations [get]
func GetBudgetCodeAllocations(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationListResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationListResponse{Error: &e})
		return
	}

	var allocations []models.Allocation
	err = models.DB.
		Where("budget_code_id = ?", code.ID).
		Order("allocated_at DESC").
		Find(&allocations).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationListResponse{Error: &e})
		return
	}

	data := make([]AllocationObject, 0, len(allocations))
	for _, allocation := range allocations {
		data = append(data, newAllocation(allocation))
	}

	c.JSON(http.StatusOK, AllocationListResponse{Data: data})
}

// @Summary		Get budget revisions
// @Description	Returns the budget revisions of the budget code
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	BudgetRevisionListResponse
// @Failure		400	{object}	BudgetRevisionListResponse
// @Failure		404	{object}	BudgetRevisionListResponse
// @Param			id	path	URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id}/revisions [get]
func GetBudgetRevisions(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionListResponse{Error: &e})
		return
	}

	var code models.BudgetCode
	err = models.DB.First(&code, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionListResponse{Error: &e})
		return
	}

	var revisions []models.BudgetRevision
	err = models.DB.
		Where("budget_code_id = ?", code.ID).
		Order("created_at DESC").
		Find(&revisions).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionListResponse{Error: &e})
		return
	}

	data := make([]BudgetRevisionObject, 0, len(revisions))
	for _, revision := range revisions {
		if err := revision.LoadSteps(models.DB); err != nil {
			e := err.Error()
			c.JSON(status(err), BudgetRevisionListResponse{Error: &e})
			return
		}

		data = append(data, newBudgetRevision(revision))
	}

	c.JSON(http.StatusOK, BudgetRevisionListResponse{Data: data})
}

// @Summary		Request budget revision
// @Description	Opens a revision of the total budget, governed by its own approval chain
// @Tags			BudgetCodes
// @Accept			json
// @Produce		json
// @Success		201			{object}	BudgetRevisionResponse
// @Failure		400			{object}	BudgetRevisionResponse
// @Failure		404			{object}	BudgetRevisionResponse
// @Param			id			path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			revision	body		BudgetRevisionEditable	true	"Budget revision"
// @Router			/v1/budget-codes/{id}/revisions [post]
func CreateBudgetRevision(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable BudgetRevisionEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	revision, err := models.RequestBudgetRevision(uri.ID.UUID, editable.RequestedBudget, editable.Reason, identity)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	data := newBudgetRevision(revision)
	c.JSON(http.StatusCreated, BudgetRevisionResponse{Data: &data})
}

// @Summary		Get budget revision
// @Description	Returns a specific budget revision
// @Tags			BudgetCodes
// @Produce		json
// @Success		200	{object}	BudgetRevisionResponse
// @Failure		400	{object}	BudgetRevisionResponse
// @Failure		404	{object}	BudgetRevisionResponse
// @Param			id		path	URIID		true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			subId	path	URISubID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/budget-codes/{id}/revisions/{subId} [get]
func GetBudgetRevision(c *gin.Context) {
	var uri URISubID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	var revision models.BudgetRevision
	err = models.DB.First(&revision, "id = ? AND budget_code_id = ?", uri.SubID.UUID, uri.ID.UUID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	if err := revision.LoadSteps(models.DB); err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	data := newBudgetRevision(revision)
	c.JSON(http.StatusOK, BudgetRevisionResponse{Data: &data})
}

// @Summary		Decide budget revision
// @Description	Applies one approval chain decision to a pending budget revision
// @Tags			BudgetCodes
// @Accept			json
// @Produce		json
// @Success		200			{object}	BudgetRevisionResponse
// @Failure		400			{object}	BudgetRevisionResponse
// @Failure		403			{object}	BudgetRevisionResponse
// @Failure		404			{object}	BudgetRevisionResponse
// @Failure		409			{object}	BudgetRevisionResponse
// @Param			id			path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			subId		path		URISubID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			decision	body		DecisionEditable	true	"Decision"
// @Router			/v1/budget-codes/{id}/revisions/{subId}/decision [post]
func DecideBudgetRevisionRequest(c *gin.Context) {
	var uri URISubID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
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
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	decision, err := parseDecision(editable.Decision)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	revision, err := models.DecideBudgetRevision(uri.ID.UUID, uri.SubID.UUID, identity, decision, editable.Comment)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), BudgetRevisionResponse{Error: &e})
		return
	}

	notifier.Publish(string(revision.Status), "budget_revision", revision.ID, identity.Email, nil)

	data := newBudgetRevision(revision)
	c.JSON(http.StatusOK, BudgetRevisionResponse{Data: &data})
}
