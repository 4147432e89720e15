package handlers

import (
	"net/http"

	"rapidcare/utils"

	"github.com/gin-gonic/gin"
)

// RegisterDeviceTokenHandler stores a user's FCM device token so booking
// decisions can be pushed to them.
func RegisterDeviceTokenHandler(c *gin.Context) {
	var req struct {
		UserID      string `json:"userId" binding:"required"`
		DeviceToken string `json:"deviceToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid device token request", err.Error())
		return
	}
	if err := utils.SaveDeviceToken(utils.GetCacheClient(), req.UserID, req.DeviceToken); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to save device token", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "device token saved"})
}
