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

// A DocumentController contains a group name and a `DocumentService` instance. It also implements the interface `Controller`.
type DocumentController struct {
	GroupName   string
	DocumentSvc service.DocumentServiceInterface
}

// GetGroupName returns the group name.
func (c *DocumentController) GetGroupName() string {
	return c.GroupName
}

// GetEndpointMap implements part of the interface `Controller`. It returns the API endpoints and handlers which are defined and managed by DocumentController.
func (c *DocumentController) GetEndpointMap() EndpointMap {
	return EndpointMap{
		urlMethodPair{"", "POST"}:                 []gin.HandlerFunc{c.handleRegisterDocument},
		urlMethodPair{"", "GET"}:                  []gin.HandlerFunc{c.handleListDocuments},
		urlMethodPair{":hash/record", "GET"}:      []gin.HandlerFunc{c.handleGetDocumentRecord},
		urlMethodPair{":hash/content", "GET"}:     []gin.HandlerFunc{c.handleGetDocumentContent},
		urlMethodPair{":hash/viewers", "POST"}:    []gin.HandlerFunc{c.handleGrantViewer},
		urlMethodPair{":hash/viewers", "DELETE"}:  []gin.HandlerFunc{c.handleRevokeViewer},
		urlMethodPair{":hash/deactivate", "POST"}: []gin.HandlerFunc{c.handleDeactivateDocument},
	}
}

func (dc *DocumentController) handleRegisterDocument(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}

	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	ownerID := pel.AppendIfEmptyOrBlankSpaces(c.PostForm("ownerId"), "所有者 ID 不能为空。")

	// 签发者缺省为请求者本人
	issuerID := c.PostForm("issuerId")
	if issuerID == "" {
		issuerID = requesterID
	}

	// The metadata comes in as a JSON string form field.
	metadataStr := pel.AppendIfEmptyOrBlankSpaces(c.PostForm("metadata"), "元数据不能为空。")
	var metadata *common.DocumentMetadata
	if metadataStr != "" {
		var err error
		metadata, err = common.ParseDocumentMetadataString(metadataStr)
		if err != nil {
			*pel = append(*pel, fmt.Sprintf("元数据不合法: %v。", err))
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		*pel = append(*pel, "文档文件不能为空。")
	}

	// Early return if the error list is not empty
	if len(*pel) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, pel)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("无法打开上传的文件。"))
		return
	}
	defer file.Close()

	contents, err := ioutil.ReadAll(file)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("无法读取上传的文件。"))
		return
	}

	// File facts come from the upload itself, not from the submitted metadata.
	metadata.OriginalFilename = fileHeader.Filename
	metadata.MimeType = fileHeader.Header.Get("Content-Type")
	metadata.Size = int64(len(contents))

	receipt, err := dc.DocumentSvc.RegisterDocument(c.Request.Context(), contents, metadata, ownerID, issuerID, requesterID)

	// Check error type and generate the corresponding response
	if err == nil {
		switch receipt.State {
		case common.RegistrationQueued:
			c.JSON(http.StatusAccepted, receipt)
		case common.DuplicateDocument:
			c.JSON(http.StatusConflict, receipt)
		default:
			c.JSON(http.StatusOK, receipt)
		}
	} else if errors.Cause(err) == errorcode.ErrorValidation {
		c.String(http.StatusBadRequest, err.Error())
	} else if errors.Cause(err) == errorcode.ErrorUnavailable {
		c.String(http.StatusServiceUnavailable, err.Error())
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (dc *DocumentController) handleListDocuments(c *gin.Context) {
	ownerID := c.Query("ownerId")
	studentID := c.Query("studentId")
	keyword := c.Query("keyword")

	// Validity check: exactly one filter must be present
	pel := &ParameterErrorList{}
	filterCount := 0
	for _, filter := range []string{ownerID, studentID, keyword} {
		if filter != "" {
			filterCount++
		}
	}
	if filterCount != 1 {
		*pel = append(*pel, "必须且只能指定 ownerId、studentId 与 keyword 之一。")
	}

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	var records []*common.DocumentRecord
	var err error
	switch {
	case ownerID != "":
		records, err = dc.DocumentSvc.ListDocumentsByOwner(ownerID)
	case studentID != "":
		records, err = dc.DocumentSvc.ListDocumentsByStudent(studentID)
	default:
		records, err = dc.DocumentSvc.SearchDocuments(keyword)
	}

	if err == nil {
		c.JSON(http.StatusOK, records)
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (dc *DocumentController) handleGetDocumentRecord(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}
	documentHash := pel.AppendIfNotHash(c.Param("hash"), "文档哈希不合法。")
	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	record, err := dc.DocumentSvc.GetDocumentRecord(documentHash, requesterID)
	if err == nil {
		c.JSON(http.StatusOK, record)
	} else if errors.Cause(err) == errorcode.ErrorNotFound {
		c.Writer.WriteHeader(http.StatusNotFound)
	} else if errors.Cause(err) == errorcode.ErrorForbidden {
		c.Writer.WriteHeader(http.StatusForbidden)
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (dc *DocumentController) handleGetDocumentContent(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}
	documentHash := pel.AppendIfNotHash(c.Param("hash"), "文档哈希不合法。")
	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	record, contents, err := dc.DocumentSvc.GetDocument(c.Request.Context(), documentHash, requesterID)
	if err == nil {
		mimeType := record.Metadata.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Metadata.OriginalFilename))
		c.Data(http.StatusOK, mimeType, contents)
	} else if errors.Cause(err) == errorcode.ErrorNotFound {
		c.Writer.WriteHeader(http.StatusNotFound)
	} else if errors.Cause(err) == errorcode.ErrorForbidden {
		c.Writer.WriteHeader(http.StatusForbidden)
	} else if errors.Cause(err) == errorcode.ErrorAuthFailure {
		c.String(http.StatusConflict, err.Error())
	} else if errors.Cause(err) == errorcode.ErrorUnavailable {
		c.String(http.StatusServiceUnavailable, err.Error())
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}

func (dc *DocumentController) handleGrantViewer(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}
	documentHash := pel.AppendIfNotHash(c.Param("hash"), "文档哈希不合法。")
	viewerID := pel.AppendIfEmptyOrBlankSpaces(c.PostForm("viewerId"), "查看者 ID 不能为空。")
	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	warning, err := dc.DocumentSvc.GrantViewer(documentHash, viewerID, requesterID)
	dc.respondToAccessUpdate(c, warning, err)
}

func (dc *DocumentController) handleRevokeViewer(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}
	documentHash := pel.AppendIfNotHash(c.Param("hash"), "文档哈希不合法。")
	viewerID := pel.AppendIfEmptyOrBlankSpaces(c.Query("viewerId"), "查看者 ID 不能为空。")
	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	warning, err := dc.DocumentSvc.RevokeViewer(documentHash, viewerID, requesterID)
	dc.respondToAccessUpdate(c, warning, err)
}

func (dc *DocumentController) handleDeactivateDocument(c *gin.Context) {
	requesterID := extractRequesterID(c)

	// Validity check
	pel := &ParameterErrorList{}
	documentHash := pel.AppendIfNotHash(c.Param("hash"), "文档哈希不合法。")
	reason := pel.AppendIfEmptyOrBlankSpaces(c.PostForm("reason"), "停用原因不能为空。")
	_ = pel.AppendIfEmptyOrBlankSpaces(requesterID, "请求者 ID 不能为空。")

	// Early return if there's parameter error
	if len(*pel) != 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, *pel)
		return
	}

	warning, err := dc.DocumentSvc.DeactivateDocument(documentHash, reason, requesterID)
	if err == nil {
		c.JSON(http.StatusOK, AccessUpdateResult{Warning: warning})
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

func (dc *DocumentController) respondToAccessUpdate(c *gin.Context, warning string, err error) {
	if err == nil {
		c.JSON(http.StatusOK, AccessUpdateResult{Warning: warning})
	} else if errors.Cause(err) == errorcode.ErrorNotFound {
		c.Writer.WriteHeader(http.StatusNotFound)
	} else if errors.Cause(err) == errorcode.ErrorForbidden {
		c.Writer.WriteHeader(http.StatusForbidden)
	} else {
		c.String(http.StatusInternalServerError, err.Error())
	}
}
