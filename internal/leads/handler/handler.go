package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"leadflow_backend/internal/leads/assignment"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
)

// LeadService is the lead use-case surface the handler calls.
type LeadService interface {
	Create(ctx context.Context, req transport.CreateLeadRequest) (transport.CreateLeadResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error)
	List(ctx context.Context, params repository.ListParams) ([]transport.LeadResponse, error)
	Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (transport.LeadResponse, error)
}

// BulkAssigner runs batch assignment.
type BulkAssigner interface {
	Assign(ctx context.Context, leadIDs []uuid.UUID, advisorID uuid.UUID) (assignment.BulkAssignResult, error)
}

type Handler struct {
	svc      LeadService
	assigner BulkAssigner
	val      *validator.Validator
}

func New(svc LeadService, assigner BulkAssigner, val *validator.Validator) *Handler {
	return &Handler{svc: svc, assigner: assigner, val: val}
}

// RegisterValidators adds the lead-specific validation tags.
func RegisterValidators(val *validator.Validator) error {
	if err := val.RegisterValidation("leadstatus", parsedBy(func(s string) error {
		_, err := domain.ParseStatus(s)
		return err
	})); err != nil {
		return err
	}
	return val.RegisterValidation("priority", parsedBy(func(s string) error {
		_, err := domain.ParsePriority(s)
		return err
	}))
}

func parsedBy(parse func(string) error) playground.Func {
	return func(fl playground.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		return value == "" || parse(value) == nil
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/assign", h.Assign)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// List returns leads newest first.
// GET /api/leads?advisorId=&includeArchived=
func (h *Handler) List(c *gin.Context) {
	var params repository.ListParams
	if raw := strings.TrimSpace(c.Query("advisorId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid advisorId", nil)
			return
		}
		params.AdvisorID = &id
	}
	if raw := strings.TrimSpace(c.Query("includeArchived")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid includeArchived", nil)
			return
		}
		params.IncludeArchived = include
	}

	leads, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, leads)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

// Assign hands a batch of leads to one advisor.
// 200 when every lead was assigned, 207 when some failed.
func (h *Handler) Assign(c *gin.Context) {
	var req transport.AssignLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.assigner.Assign(c.Request.Context(), req.LeadIDs, req.AdvisorID)
	var appErr *apperr.Error
	if err != nil && !(errors.As(err, &appErr) && appErr.Kind == apperr.KindPartial) {
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.AssignLeadsResponse{Assigned: transport.ToLeadResponses(result.Assigned)}
	if err == nil {
		httpkit.OK(c, resp)
		return
	}
	var partial *assignment.PartialBulkFailure
	if errors.As(err, &partial) {
		for _, f := range partial.Failures {
			resp.Failed = append(resp.Failed, transport.AssignFailure{LeadID: f.LeadID, Error: failureMessage(f.Err)})
		}
	}
	httpkit.JSON(c, appErr.HTTPStatus(), resp)
}

func failureMessage(err error) string {
	if errors.Is(err, repository.ErrNotFound) {
		return "Lead not found"
	}
	if errors.Is(err, repository.ErrUnknownAdvisor) {
		return "Advisor not found"
	}
	return "Failed to assign lead"
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}
