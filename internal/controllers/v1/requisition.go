package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/procureflow/backend/internal/httputil"
	"github.com/procureflow/backend/internal/models"
	"github.com/procureflow/backend/internal/notifier"
	"github.com/ryanuber/go-glob"
	"golang.org/x/exp/slices"
)

// RegisterRequisitionRoutes registers the routes for requisitions with
// the RouterGroup that is passed.
func RegisterRequisitionRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsRequisitionList)
		r.GET("", GetRequisitions)
		r.POST("", CreateRequisition)
	}

	// Requisition with ID
	{
		r.OPTIONS("/:id", OptionsRequisitionDetail)
		r.GET("/:id", GetRequisition)
		r.PATCH("/:id", UpdateRequisition)

		r.POST("/:id/submit", SubmitRequisition)
		r.POST("/:id/decision", DecideRequisition)
		r.POST("/:id/buyer", AssignBuyer)
		r.POST("/:id/disbursements", RecordDisbursement)
		r.POST("/:id/returns", RecordReturn)
		r.POST("/:id/cancel", CancelRequisition)
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Requisitions
// @Success		204
// @Router			/v1/requisitions [options]
func OptionsRequisitionList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Requisitions
// @Success		204
// @Failure		400	{object}	httpError
// @Failure		404	{object}	httpError
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/requisitions/{id} [options]
func OptionsRequisitionDetail(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	err = models.DB.First(&models.Requisition{}, uri.ID).Error
	if err != nil {
		c.JSON(status(err), httpError{Error: err.Error()})
		return
	}

	httputil.OptionsGetPatch(c)
}

// @Summary		Create requisition
// @Description	Creates a new requisition in draft state. The requester is taken from the authenticated identity.
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		201			{object}	RequisitionResponse
// @Failure		400			{object}	RequisitionResponse
// @Failure		500			{object}	RequisitionResponse
// @Param			requisition	body		RequisitionEditable	true	"Requisition"
// @Router			/v1/requisitions [post]
func CreateRequisition(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable RequisitionEditable
	err := httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	requisition := editable.model()
	requisition.RequesterName = identity.Name
	requisition.RequesterEmail = identity.Email
	requisition.Status = models.RequisitionDraft

	if requisition.Department == "" {
		requisition.Department = identity.Department
	}

	err = models.DB.Create(&requisition).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	data := newRequisition(c, requisition)
	c.JSON(http.StatusCreated, RequisitionResponse{Data: &data})
}

// @Summary		Get requisitions
// @Description	Returns a list of requisitions
// @Tags			Requisitions
// @Produce		json
// @Success		200	{object}	RequisitionListResponse
// @Failure		400	{object}	RequisitionListResponse
// @Failure		500	{object}	RequisitionListResponse
// @Router			/v1/requisitions [get]
// @Param			requestNumber	query	string	false	"Filter by request number, glob patterns are supported"
// @Param			department		query	string	false	"Filter by department"
// @Param			status			query	string	false	"Filter by workflow stage"
// @Param			requester		query	string	false	"Filter by email of the requester"
// @Param			budgetCode		query	string	false	"Filter by budget code ID"
// @Param			offset			query	uint	false	"The offset of the first requisition returned. Defaults to 0."
// @Param			limit			query	int		false	"Maximum number of requisitions to return. Defaults to 50."
func GetRequisitions(c *gin.Context) {
	var filter RequisitionQueryFilter

	// Every parameter is bound into a string, so this will always succeed
	_ = c.Bind(&filter)

	// Get the fields that we are filtering for
	queryFields, setFields := httputil.GetURLFields(c.Request.URL, filter)

	q := models.DB.
		Order("created_at DESC").
		Where(filter.model(), queryFields...)

	// Default to 50 requisitions and set the limit
	limit := 50
	if slices.Contains(setFields, "Limit") {
		limit = filter.Limit
	}

	var requisitions []models.Requisition
	err := q.Find(&requisitions).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionListResponse{Error: &e})
		return
	}

	// The request number filter supports globs, which the database cannot
	// evaluate, so matching and pagination both happen after the query.
	// Total counts matches only.
	matched := make([]models.Requisition, 0, len(requisitions))
	for _, requisition := range requisitions {
		if filter.RequestNumber != "" && !glob.Glob(filter.RequestNumber, requisition.RequestNumber) {
			continue
		}

		matched = append(matched, requisition)
	}

	offset := int(filter.Offset)
	if offset > len(matched) {
		offset = len(matched)
	}

	end := offset + limit
	if limit < 0 || end > len(matched) {
		end = len(matched)
	}

	data := make([]Requisition, 0, end-offset)
	for _, requisition := range matched[offset:end] {
		if err := requisition.LoadSteps(models.DB); err != nil {
			e := err.Error()
			c.JSON(status(err), RequisitionListResponse{Error: &e})
			return
		}

		data = append(data, newRequisition(c, requisition))
	}

	c.JSON(http.StatusOK, RequisitionListResponse{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  int64(len(matched)),
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// @Summary		Get requisition
// @Description	Returns a specific requisition with its approval chain
// @Tags			Requisitions
// @Produce		json
// @Success		200	{object}	RequisitionResponse
// @Failure		400	{object}	RequisitionResponse
// @Failure		404	{object}	RequisitionResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/requisitions/{id} [get]
func GetRequisition(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	var requisition models.Requisition
	err = models.DB.First(&requisition, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	if err := requisition.LoadSteps(models.DB); err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	data := newRequisition(c, requisition)
	c.JSON(http.StatusOK, RequisitionResponse{Data: &data})
}

// @Summary		Update requisition
// @Description	Updates a requisition. Only drafts can be updated, submitted requisitions are governed by the workflow.
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		200			{object}	RequisitionResponse
// @Failure		400			{object}	RequisitionResponse
// @Failure		404			{object}	RequisitionResponse
// @Failure		409			{object}	RequisitionResponse
// @Param			id			path		URIID				true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			requisition	body		RequisitionEditable	true	"Requisition"
// @Router			/v1/requisitions/{id} [patch]
func UpdateRequisition(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	var requisition models.Requisition
	err = models.DB.First(&requisition, uri.ID).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	if requisition.Status != models.RequisitionDraft {
		e := models.ErrInvalidTransition.Error()
		c.JSON(status(models.ErrInvalidTransition), RequisitionResponse{Error: &e})
		return
	}

	updateFields, err := httputil.GetBodyFields(c, RequisitionEditable{})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	var data RequisitionEditable
	err = httputil.BindData(c, &data)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	err = models.DB.Model(&requisition).Select("", updateFields...).Updates(data.model()).Error
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	r := newRequisition(c, requisition)
	c.JSON(http.StatusOK, RequisitionResponse{Data: &r})
}

// @Summary		Submit requisition
// @Description	Submits a draft into the workflow. The approval chain is built and frozen at this point.
// @Tags			Requisitions
// @Produce		json
// @Success		200	{object}	RequisitionResponse
// @Failure		400	{object}	RequisitionResponse
// @Failure		403	{object}	RequisitionResponse
// @Failure		404	{object}	RequisitionResponse
// @Failure		409	{object}	RequisitionResponse
// @Param			id	path		URIID	true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Router			/v1/requisitions/{id}/submit [post]
func SubmitRequisition(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	requisition, err := models.SubmitRequisition(uri.ID.UUID, identity)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	notifier.Publish("submitted", "requisition", requisition.ID, identity.Email, map[string]any{
		"requestNumber": requisition.RequestNumber,
	})

	data := newRequisition(c, requisition)
	c.JSON(http.StatusOK, RequisitionResponse{Data: &data})
}

// @Summary		Decide requisition
// @Description	Applies the next approval chain decision. Finance approval reserves funds against the given budget code in the same transaction.
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		200			{object}	RequisitionResponse
// @Failure		400			{object}	RequisitionResponse
// @Failure		403			{object}	RequisitionResponse
// @Failure		404			{object}	RequisitionResponse
// @Failure		409			{object}	RequisitionResponse
// @Param			id			path		URIID							true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			decision	body		RequisitionDecisionEditable	true	"Decision"
// @Router			/v1/requisitions/{id}/decision [post]
func DecideRequisition(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable RequisitionDecisionEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	decision, err := parseDecision(editable.Decision)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	requisition, err := models.DecideRequisition(uri.ID.UUID, identity, models.RequisitionDecision{
		Decision:       decision,
		Comment:        editable.Comment,
		BudgetCodeID:   editable.BudgetCodeID,
		ApprovedAmount: editable.ApprovedAmount,
	})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	notifier.Publish(string(requisition.Status), "requisition", requisition.ID, identity.Email, map[string]any{
		"requestNumber": requisition.RequestNumber,
	})

	data := newRequisition(c, requisition)
	c.JSON(http.StatusOK, RequisitionResponse{Data: &data})
}

// @Summary		Assign buyer
// @Description	Attaches a buyer after supply chain review and opens the head approval gate
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		200		{object}	RequisitionResponse
// @Failure		400		{object}	RequisitionResponse
// @Failure		403		{object}	RequisitionResponse
// @Failure		404		{object}	RequisitionResponse
// @Failure		409		{object}	RequisitionResponse
// @Param			id		path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			buyer	body		BuyerAssignmentEditable	true	"Buyer"
// @Router			/v1/requisitions/{id}/buyer [post]
func AssignBuyer(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable BuyerAssignmentEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	requisition, err := models.AssignRequisitionBuyer(uri.ID.UUID, identity, models.BuyerAssignment{
		BuyerName:     editable.BuyerName,
		BuyerEmail:    editable.BuyerEmail,
		SourcingNotes: editable.SourcingNotes,
	})
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	data := newRequisition(c, requisition)
	c.JSON(http.StatusOK, RequisitionResponse{Data: &data})
}

// @Summary		Record disbursement
// @Description	Records an actual payment against the approved requisition. Safe to retry with the same disbursement ID.
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		200				{object}	AllocationResponse
// @Failure		400				{object}	AllocationResponse
// @Failure		404				{object}	AllocationResponse
// @Failure		409				{object}	AllocationResponse
// @Param			id				path		URIID					true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			disbursement	body		DisbursementEditable	true	"Disbursement"
// @Router			/v1/requisitions/{id}/disbursements [post]
func RecordDisbursement(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable DisbursementEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationResponse{Error: &e})
		return
	}

	_, allocation, err := models.RecordDisbursement(uri.ID.UUID, identity, editable.DisbursementID, editable.Amount)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationResponse{Error: &e})
		return
	}

	data := newAllocation(allocation)
	c.JSON(http.StatusOK, AllocationResponse{Data: &data})
}

// @Summary		Return unused funds
// @Description	Returns reserved but unspent funds to the budget pool after all disbursements are done
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		200		{object}	AllocationResponse
// @Failure		400		{object}	AllocationResponse
// @Failure		404		{object}	AllocationResponse
// @Failure		409		{object}	AllocationResponse
// @Param			id		path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			return	body		ReturnEditable	true	"Return"
// @Router			/v1/requisitions/{id}/returns [post]
func RecordReturn(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable ReturnEditable
	err = httputil.BindData(c, &editable)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationResponse{Error: &e})
		return
	}

	_, allocation, err := models.RecordReturn(uri.ID.UUID, identity, editable.Amount)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), AllocationResponse{Error: &e})
		return
	}

	data := newAllocation(allocation)
	c.JSON(http.StatusOK, AllocationResponse{Data: &data})
}

// @Summary		Cancel requisition
// @Description	Cancels a requisition at any non-terminal stage and releases a reservation if one exists
// @Tags			Requisitions
// @Accept			json
// @Produce		json
// @Success		200		{object}	RequisitionResponse
// @Failure		400		{object}	RequisitionResponse
// @Failure		403		{object}	RequisitionResponse
// @Failure		404		{object}	RequisitionResponse
// @Failure		409		{object}	RequisitionResponse
// @Param			id		path		URIID			true	"ignored, but needed: https://github.com/swaggo/swag/issues/1014"
// @Param			cancel	body		CancelEditable	false	"Cancellation"
// @Router			/v1/requisitions/{id}/cancel [post]
func CancelRequisition(c *gin.Context) {
	var uri URIID
	err := c.ShouldBindUri(&uri)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	identity, ok := actor(c)
	if !ok {
		return
	}

	var editable CancelEditable
	err = httputil.BindData(c, &editable)
	if err != nil && !errors.Is(err, httputil.ErrRequestBodyEmpty) {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	requisition, err := models.CancelRequisition(uri.ID.UUID, identity, editable.Comment)
	if err != nil {
		e := err.Error()
		c.JSON(status(err), RequisitionResponse{Error: &e})
		return
	}

	notifier.Publish("cancelled", "requisition", requisition.ID, identity.Email, map[string]any{
		"requestNumber": requisition.RequestNumber,
	})

	data := newRequisition(c, requisition)
	c.JSON(http.StatusOK, RequisitionResponse{Data: &data})
}
