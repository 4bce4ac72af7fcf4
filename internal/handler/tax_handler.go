package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaxHandler struct {
	taxService service.TaxService
}

func NewTaxHandler(taxService service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/tax")
	tax.Use(middleware.RequireAuth())
	{
		tax.POST("/calculate", h.CalculateTax)
		tax.GET("/estimate", h.EstimateAnnualTax)
		tax.GET("/history/:user_id", h.GetTaxHistory)
		tax.POST("/reliefs", h.AddTaxRelief)
		tax.GET("/reliefs/:user_id/:year", h.GetUserReliefs)
		tax.GET("/brackets/:year", h.GetTaxBrackets)
		tax.GET("/years", h.GetAvailableYears)
	}
}

// taxErrorStatus maps engine sentinel errors onto HTTP status codes
func taxErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidIncome):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoBracketsForYear):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotAuthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// CalculateTax computes PAYE tax for the given income and year
// @Summary      Calculate PAYE tax
// @Description  Calculates progressive PAYE tax with automatic rent relief (lower of 20% of gross income or 500,000). A caller-supplied "rent" relief is ignored; the automatic figure always wins.
// @Tags         tax
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.TaxCalculationRequest  true  "Calculation request"
// @Success      200      {object}  response.Response{data=service.TaxCalculationResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/tax/calculate [post]
func (h *TaxHandler) CalculateTax(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req service.TaxCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	res, err := h.taxService.CalculateTax(c.Request.Context(), userID, req)
	if err != nil {
		status := taxErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// EstimateAnnualTax projects a monthly income to an annual tax liability
// @Summary      Estimate annual tax
// @Description  Projects annual tax from a monthly income; the estimate is never written to history
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        monthly_income  query     number  true   "Monthly gross income"
// @Param        year            query     int     false  "Tax year (default 2026)"
// @Success      200             {object}  response.Response{data=service.AnnualTaxEstimate}
// @Failure      400             {object}  response.Response
// @Failure      404             {object}  response.Response
// @Router       /api/tax/estimate [get]
func (h *TaxHandler) EstimateAnnualTax(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	monthlyIncome, err := strconv.ParseFloat(c.Query("monthly_income"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid monthly_income"))
		return
	}

	year, err := strconv.Atoi(c.DefaultQuery("year", "2026"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid year"))
		return
	}

	res, err := h.taxService.EstimateAnnualTax(c.Request.Context(), userID, monthlyIncome, year)
	if err != nil {
		status := taxErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetTaxHistory lists past calculations for a user, newest first
// @Summary      Get tax calculation history
// @Description  Paginated calculation history; users may only read their own
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        user_id  path      string  true   "User ID"
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Number of items per page (default 10)"
// @Success      200      {object}  response.Response{data=service.TaxHistoryResponse}
// @Failure      403      {object}  response.Response
// @Router       /api/tax/history/{user_id} [get]
func (h *TaxHandler) GetTaxHistory(c *gin.Context) {
	currentUserID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	params := pagination.Parse(c)

	res, err := h.taxService.GetTaxHistory(c.Request.Context(), c.Param("user_id"), currentUserID, params.Page, params.Limit)
	if err != nil {
		status := taxErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, res.Calculations, res.TotalCalculations, params.Page, params.Limit))
}

// AddTaxRelief records a relief claim for the authenticated user
// @Summary      Add a tax relief claim
// @Description  Persists a relief claim (pension, nhf, nhis, life_insurance, gratuity, other); users may only claim for themselves
// @Tags         tax
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTaxReliefRequest  true  "Relief claim"
// @Success      201      {object}  response.Response{data=service.TaxReliefResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/tax/reliefs [post]
func (h *TaxHandler) AddTaxRelief(c *gin.Context) {
	currentUserID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req service.CreateTaxReliefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	relief, err := h.taxService.AddTaxRelief(c.Request.Context(), currentUserID, req)
	if err != nil {
		status := taxErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, relief))
}

// GetUserReliefs lists relief claims for a user and year
// @Summary      Get tax reliefs
// @Description  Lists relief claims for a user/year; users may only read their own. Pass verified=true to restrict to verified claims.
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        user_id   path      string  true   "User ID"
// @Param        year      path      int     true   "Tax year"
// @Param        verified  query     bool    false  "Only verified claims"
// @Success      200       {object}  response.Response{data=[]service.TaxReliefResponse}
// @Failure      403       {object}  response.Response
// @Router       /api/tax/reliefs/{user_id}/{year} [get]
func (h *TaxHandler) GetUserReliefs(c *gin.Context) {
	currentUserID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid year"))
		return
	}

	verifiedOnly := c.Query("verified") == "true"

	reliefs, err := h.taxService.GetUserReliefs(c.Request.Context(), c.Param("user_id"), currentUserID, year, verifiedOnly)
	if err != nil {
		status := taxErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reliefs))
}

// GetTaxBrackets returns the bracket table for a year
// @Summary      Get tax brackets
// @Description  Returns the progressive bracket table for a year, ordered by bracket order
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        year  path      int  true  "Tax year"
// @Success      200   {object}  response.Response{data=[]service.TaxBracketResponse}
// @Failure      404   {object}  response.Response
// @Router       /api/tax/brackets/{year} [get]
func (h *TaxHandler) GetTaxBrackets(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid year"))
		return
	}

	brackets, err := h.taxService.GetTaxBrackets(c.Request.Context(), year)
	if err != nil {
		status := taxErrorStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, brackets))
}

// GetAvailableYears lists years with a bracket table, newest first
// @Summary      Get available tax years
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]int}
// @Router       /api/tax/years [get]
func (h *TaxHandler) GetAvailableYears(c *gin.Context) {
	years, err := h.taxService.GetAvailableYears(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, years))
}
