package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/services"
)

type CurrencyController struct {
	currencyService services.CurrencyService
}

func NewCurrencyController(svc services.CurrencyService) *CurrencyController {
	return &CurrencyController{currencyService: svc}
}

// GetRate handles GET /currency/rate?from=&to=
func (cc *CurrencyController) GetRate(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	rate, err := cc.currencyService.GetExchangeRate(c.Request.Context(), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "rate": rate})
}

// Convert handles POST /currency/convert
func (cc *CurrencyController) Convert(c *gin.Context) {
	var req models.ConvertRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := cc.currencyService.ConvertCurrency(c.Request.Context(), req.Amount, req.From, req.To)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SetRate handles PUT /currency/rate
func (cc *CurrencyController) SetRate(c *gin.Context) {
	var req models.SetRateRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := cc.currencyService.SetExchangeRate(req.From, req.To, req.Rate); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": req.From, "to": req.To, "rate": req.Rate})
}

// ClearCache handles DELETE /currency/cache
func (cc *CurrencyController) ClearCache(c *gin.Context) {
	cc.currencyService.ClearCache()
	c.Status(http.StatusNoContent)
}
