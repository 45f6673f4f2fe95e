package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zapmenu/internal/models/request_models"
	"zapmenu/internal/services"
	"zapmenu/pkg/middleware"
	"zapmenu/pkg/utils"
)

type MerchantController struct {
	merchantService services.MerchantServiceInterface
}

func NewMerchantController(merchantService services.MerchantServiceInterface) *MerchantController {
	return &MerchantController{merchantService: merchantService}
}

// UpdateProfile godoc
// @Summary Update the store profile
// @Description Blocked with 402 while the subscription is suspended
// @Tags Merchant
// @Accept json
// @Produce json
// @Param request body request_models.MerchantProfileRequest true "Profile"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Security BearerAuth
// @Router /merchant/profile [put]
func (m *MerchantController) UpdateProfile(c *gin.Context) {
	merchantID, _ := middleware.MerchantID(c)

	var req request_models.MerchantProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := m.merchantService.UpdateProfile(c.Request.Context(), merchantID, req); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Profile updated successfully")
}
