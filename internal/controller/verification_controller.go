package controller

import (
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/service"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// A VerificationController contains a group name and a `VerificationService` instance. It also implements the interface `Controller`.
type VerificationController struct {
	GroupName       string
	VerificationSvc service.VerificationServiceInterface
}

// GetGroupName returns the group name.
func (c *VerificationController) GetGroupName() string {
	return c.GroupName
}

// GetEndpointMap implements part of the interface `Controller`. It returns the API endpoints and handlers which are defined and managed by VerificationController.
func (c *VerificationController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"", "POST"}:           []gin.HandlerFunc{c.handleVerify},
		urlMethodPair{"audit/:hash", "GET"}: []gin.HandlerFunc{c.handleGetAuditTrail},
	}
}

// 验证端点是公开的：不要求请求者携带身份，匿名验证以 anonymous 记账。
func (vc *VerificationController) handleVerify(c *gin.Context) {
	methodStr := c.PostForm("method")

	// Validity check
	pel := &ParameterErrorList{}

	methodStr = pel.AppendIfEmptyOrBlankSpaces(methodStr, "验证方式不能为空。")
	method, err := common.NewVerificationMethodFromString(methodStr)
	if err != nil {
		*pel = append(*pel, "验证方式不合法。")
	}

	// Early return after extracting common parameters if the error list is not empty
	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	evidence := &service.VerificationEvidence{
		Method:     method,
		VerifierID: extractRequesterID(c),
		SourceIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}

	// Extract and check the evidence for the method specified
	switch method {
	case common.MethodUpload:
		fileHeader, err := c.FormFile("file")
		if err != nil {
			*pel = append(*pel, "待验证的文件不能为空。")
			break
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("无法打开上传的文件。"))
			return
		}
		defer file.Close()

		evidence.FileBytes, err = ioutil.ReadAll(file)
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("无法读取上传的文件。"))
			return
		}

		// The claimed hash is optional for uploads.
		if claimedHash := c.PostForm("claimedHash"); claimedHash != "" {
			evidence.ClaimedHash = pel.AppendIfNotHash(claimedHash, "声称的哈希不合法。")
		}
	case common.MethodQR:
		evidence.QRPayload = pel.AppendIfEmptyOrBlankSpaces(c.PostForm("qrPayload"), "二维码负载不能为空。")
	case common.MethodHash:
		evidence.ClaimedHash = pel.AppendIfNotHash(c.PostForm("hash"), "待验证的哈希不合法。")
	}

	// Early return if the error list is not empty
	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	result, err := vc.VerificationSvc.Verify(c.Request.Context(), evidence)

	// Check error type and generate the corresponding response
	if err == nil {
		c.JSON(http.StatusOK, result)
	} else if errors.Cause(err) == errorcode.ErrorValidation {
		c.String(http.StatusBadRequest, err.Error())
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (vc *VerificationController) handleGetAuditTrail(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}
	documentHash := pel.AppendIfNotHash(c.Param("hash"), "文档哈希不合法。")
	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	// The limit is optional, but it must be a positive int if provided.
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		limit = pel.AppendIfNotPositiveInt(limitStr, "条数上限应为正整数。")
	}

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	report, err := vc.VerificationSvc.AuditTrail(documentHash, requesterID, limit)
	if err == nil {
		c.JSON(http.StatusOK, report)
	} else if errors.Cause(err) == errorcode.ErrorNotFound {
		c.Writer.WriteHeader(http.StatusNotFound)
	} else if errors.Cause(err) == errorcode.ErrorForbidden {
		c.Writer.WriteHeader(http.StatusForbidden)
	} else if errors.Cause(err) == errorcode.ErrorValidation {
		c.String(http.StatusBadRequest, err.Error())
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}
