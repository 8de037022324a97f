package controller

import (
	"net/http"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/background"
	"github.com/12Omega/blockchain-doc-sub002/internal/service"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
	"github.com/gin-gonic/gin"
)

// An AdminController exposes the operational state of the storage layer and the verification log. It also implements the interface `Controller`.
type AdminController struct {
	GroupName       string
	Router          *storage.Router
	Drainer         *background.UploadQueueDrainer
	VerificationSvc service.VerificationServiceInterface
}

// GetGroupName returns the group name.
func (c *AdminController) GetGroupName() string {
	return c.GroupName
}

// GetEndpointMap implements part of the interface `Controller`. It returns the API endpoints and handlers which are defined and managed by AdminController.
func (c *AdminController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"health", "GET"}:       []gin.HandlerFunc{c.handleGetHealth},
		urlMethodPair{"queue", "GET"}:        []gin.HandlerFunc{c.handleGetQueue},
		urlMethodPair{"queue/drain", "POST"}: []gin.HandlerFunc{c.handleDrainQueue},
		urlMethodPair{"suspicious", "GET"}:   []gin.HandlerFunc{c.handleGetSuspicious},
		urlMethodPair{"stats", "GET"}:        []gin.HandlerFunc{c.handleGetStats},
	}
}

func (ac *AdminController) handleGetHealth(c *gin.Context) {
	report := ac.Router.Health(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

func (ac *AdminController) handleGetQueue(c *gin.Context) {
	report, err := ac.Router.QueueStatus()
	if err == nil {
		c.JSON(http.StatusOK, report)
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

// 手动触发一次补传，不等待补传器的下一个周期。
func (ac *AdminController) handleDrainQueue(c *gin.Context) {
	replayed, err := ac.Drainer.DrainOnce(c.Request.Context())
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"replayed": replayed})
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (ac *AdminController) handleGetSuspicious(c *gin.Context) {
	// The window is optional, but it must be a positive int (in minutes) if provided.
	pel := &ParameterErrorList{}
	windowMinutes := 0
	if windowStr := c.Query("windowMinutes"); windowStr != "" {
		windowMinutes = pel.AppendIfNotPositiveInt(windowStr, "回溯窗口应为正整数分钟数。")
	}

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	suspicious, err := ac.VerificationSvc.SuspiciousActivity(time.Duration(windowMinutes) * time.Minute)
	if err == nil {
		c.JSON(http.StatusOK, suspicious)
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (ac *AdminController) handleGetStats(c *gin.Context) {
	// The window is optional, but it must be a positive int (in hours) if provided.
	pel := &ParameterErrorList{}
	windowHours := 0
	if windowStr := c.Query("windowHours"); windowStr != "" {
		windowHours = pel.AppendIfNotPositiveInt(windowStr, "回溯窗口应为正整数小时数。")
	}

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	stats, err := ac.VerificationSvc.Stats(time.Duration(windowHours) * time.Hour)
	if err == nil {
		c.JSON(http.StatusOK, stats)
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}
