package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/shopswift-api/middleware"
	"github.com/yashrajoria/shopswift-api/models"
	"github.com/yashrajoria/shopswift-api/services"
)

type AddressController struct {
	addressService services.AddressService
}

func NewAddressController(svc services.AddressService) *AddressController {
	return &AddressController{addressService: svc}
}

// ListAddresses handles GET /addresses
func (ac *AddressController) ListAddresses(c *gin.Context) {
	addresses, err := ac.addressService.ListAddresses(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// CreateAddress handles POST /addresses
func (ac *AddressController) CreateAddress(c *gin.Context) {
	var req models.CreateAddressRequest
	if !bindJSON(c, &req) {
		return
	}
	address, err := ac.addressService.CreateAddress(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, address)
}
