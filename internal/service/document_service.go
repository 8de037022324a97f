package service

import (
	"context"
	"fmt"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/bcao"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage/uploadqueue"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/cipherutils"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/hashutils"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/12Omega/blockchain-doc-sub002/pkg/models/anchordata"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// 队列任务元数据中记录内容哈希所用的键
const queueMetaHashKey = "documentHash"

// 未在配置中指定时采用的 MIME 类型白名单
var defaultAllowedMimeTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DocumentService 用于托管学历文档：注册流水线、明文取回与访问控制。
type DocumentService struct {
	Registry       DocumentRegistryInterface
	Router         StorageRouterInterface
	AnchorBCAO     bcao.IAnchorBCAO
	CipherSuite    cipherutils.Suite
	MasterKey      []byte
	MaxUploadBytes int64
	// AllowedMimeTypes 为注册时接受的 MIME 类型白名单，为空时使用内置白名单
	AllowedMimeTypes []string
}

func (s *DocumentService) isAllowedMimeType(mimeType string) bool {
	allowed := s.AllowedMimeTypes
	if len(allowed) == 0 {
		allowed = defaultAllowedMimeTypes
	}

	for _, candidate := range allowed {
		if candidate == mimeType {
			return true
		}
	}

	return false
}

// RegisterDocument 注册一份文档。流水线依次为：校验、哈希、占用哈希、
// 信封加密、上传、锚定。除校验错误外，各种结局都以回执状态表达。
func (s *DocumentService) RegisterDocument(ctx context.Context, contents []byte, metadata *common.DocumentMetadata, ownerID string, issuerID string, uploaderID string) (*common.RegistrationReceipt, error) {
	if len(contents) == 0 {
		return nil, errors.Wrap(errorcode.ErrorValidation, "文档内容不能为空")
	}
	if s.MaxUploadBytes > 0 && int64(len(contents)) > s.MaxUploadBytes {
		return nil, errors.Wrapf(errorcode.ErrorValidation, "文档大小 %v 字节超过上限 %v 字节", len(contents), s.MaxUploadBytes)
	}
	if ownerID == "" || issuerID == "" {
		return nil, errors.Wrap(errorcode.ErrorValidation, "所有者与签发机构不能为空")
	}
	if !s.isAllowedMimeType(metadata.MimeType) {
		return nil, errors.Wrapf(errorcode.ErrorValidation, "不接受 MIME 类型 '%v' 的文档", metadata.MimeType)
	}

	metadata.Size = int64(len(contents))
	if err := metadata.Validate(); err != nil {
		return nil, errors.Wrapf(errorcode.ErrorValidation, "元数据校验失败: %v", err)
	}

	documentHash := hashutils.HashBytesToString(contents)

	// 先生成并封存数据密钥，使占用哈希的记录从一开始就是完整的
	dataKey, err := cipherutils.GenerateDataKey(s.CipherSuite)
	if err != nil {
		return nil, err
	}

	sealedDataKey, err := cipherutils.SealDataKey(s.CipherSuite, s.MasterKey, dataKey)
	if err != nil {
		return nil, err
	}

	record := &common.DocumentRecord{
		DocumentHash:  documentHash,
		SealedDataKey: sealedDataKey,
		Metadata:      *metadata,
		Access: common.AccessInfo{
			OwnerID:  ownerID,
			IssuerID: issuerID,
		},
		Status: common.StatusPending,
		Audit: common.AuditInfo{
			UploaderID: uploaderID,
		},
	}

	// 占用哈希：这是注册的串行化点，重复注册在这里被拒绝
	if err := s.Registry.ClaimHash(record); err != nil {
		if errors.Cause(err) == errorcode.ErrorDuplicate {
			return &common.RegistrationReceipt{
				State:        common.DuplicateDocument,
				DocumentHash: documentHash,
			}, nil
		}
		return nil, err
	}

	envelope, err := cipherutils.SealBytes(s.CipherSuite, dataKey, contents)
	if err != nil {
		s.markFailed(documentHash, fmt.Sprintf("加密失败: %v", err))
		return nil, err
	}

	uploadResult, err := s.Router.Upload(ctx, envelope, metadata.OriginalFilename, map[string]string{
		queueMetaHashKey: documentHash,
	})
	if err != nil {
		s.markFailed(documentHash, fmt.Sprintf("存储失败: %v", err))
		return nil, err
	}

	storageInfo := &common.StorageInfo{
		CID:        uploadResult.CID,
		Provider:   uploadResult.Provider,
		GatewayURL: uploadResult.GatewayURL,
	}

	if uploadResult.Queued {
		// 远端提供方全部失败：密文已落本地并排队补传，锚定推迟到补传成功之后
		if err := s.Registry.UpdateStorageResult(documentHash, uploadResult.CID, uploadResult.Provider, common.StatusFailed); err != nil {
			return nil, err
		}

		return &common.RegistrationReceipt{
			State:         common.RegistrationQueued,
			DocumentHash:  documentHash,
			Storage:       storageInfo,
			QueuePosition: uploadResult.QueuePosition,
			Warning:       "所有远端存储提供方不可用，文档已暂存本地并进入补传队列",
		}, nil
	}

	if err := s.Registry.UpdateStorageResult(documentHash, uploadResult.CID, uploadResult.Provider, common.StatusUploaded); err != nil {
		return nil, err
	}

	creationInfo, err := s.AnchorBCAO.CreateAnchor(&anchordata.AnchorRecord{
		DocumentHash: documentHash,
		CID:          uploadResult.CID,
		Provider:     uploadResult.Provider,
		OwnerID:      ownerID,
		IssuerID:     issuerID,
	})
	if err != nil {
		// 存储已经成功，锚定失败只是部分失败。记录转入 failed 状态，
		// 使后续的补锚重试能够找到它
		log.WithError(err).WithField("hash", documentHash).Warn("文档已持久化，但账本锚定失败")
		s.markFailed(documentHash, fmt.Sprintf("锚定失败: %v", err))

		return &common.RegistrationReceipt{
			State:        common.PartialAnchorFailed,
			DocumentHash: documentHash,
			Storage:      storageInfo,
			Warning:      "文档已持久化，但账本锚定失败，可稍后重试锚定",
		}, nil
	}

	anchorInfo := &common.AnchorInfo{
		TxID:        creationInfo.TransactionID,
		BlockHeight: creationInfo.BlockHeight,
		GasUsed:     creationInfo.GasUsed,
		ContractID:  creationInfo.ContractID,
	}

	if err := s.Registry.FinalizeAnchor(documentHash, anchorInfo); err != nil {
		return nil, err
	}

	qrPayload := &common.QRPayload{
		DocumentHash: documentHash,
		AnchorTxID:   anchorInfo.TxID,
	}
	encodedQR, err := qrPayload.Encode()
	if err != nil {
		return nil, err
	}

	return &common.RegistrationReceipt{
		State:        common.Registered,
		DocumentHash: documentHash,
		Anchor:       anchorInfo,
		Storage:      storageInfo,
		QRPayload:    encodedQR,
	}, nil
}

func (s *DocumentService) markFailed(documentHash string, diagnostic string) {
	if err := s.Registry.MarkFailed(documentHash, diagnostic); err != nil {
		log.WithError(err).WithField("hash", documentHash).Error("无法将文档记录标记为失败")
	}
}

// GetDocumentRecord 获取文档记录。
func (s *DocumentService) GetDocumentRecord(documentHash string, requesterID string) (*common.DocumentRecord, error) {
	record, err := s.Registry.FindByHash(documentHash)
	if err != nil {
		return nil, err
	}

	if !record.Access.CanAccess(requesterID) {
		return nil, errors.Wrap(errorcode.ErrorForbidden, "无权访问该文档记录")
	}

	return record, nil
}

// GetDocument 获取解密后的文档明文。解密后重新核对内容哈希，
// 任何不一致都视为密文被篡改。
func (s *DocumentService) GetDocument(ctx context.Context, documentHash string, requesterID string) (*common.DocumentRecord, []byte, error) {
	record, err := s.GetDocumentRecord(documentHash, requesterID)
	if err != nil {
		return nil, nil, err
	}

	if record.StorageCID == "" {
		return nil, nil, errors.Wrap(errorcode.ErrorNotFound, "文档密文尚未持久化")
	}

	envelope, err := s.Router.Download(ctx, record.StorageCID)
	if err != nil {
		return nil, nil, err
	}

	dataKey, err := cipherutils.OpenDataKey(s.MasterKey, record.SealedDataKey)
	if err != nil {
		return nil, nil, err
	}

	contents, err := cipherutils.OpenBytes(dataKey, envelope)
	if err != nil {
		return nil, nil, err
	}

	if !hashutils.VerifyIntegrity(contents, record.DocumentHash) {
		return nil, nil, errors.Wrap(errorcode.ErrorAuthFailure, "解密后的内容与登记哈希不一致")
	}

	return record, contents, nil
}

// GrantViewer 授权一个查看者。本地注册表是授权的权威来源，
// 账本同步失败只降级为 warning。
func (s *DocumentService) GrantViewer(documentHash string, viewerID string, requesterID string) (string, error) {
	record, err := s.Registry.FindByHash(documentHash)
	if err != nil {
		return "", err
	}

	if !record.Access.CanManage(requesterID) {
		return "", errors.Wrap(errorcode.ErrorForbidden, "仅所有者与签发机构可以授权查看者")
	}

	// 停用记录的查看者列表被冻结
	if record.Status == common.StatusDeactivated {
		return "", errors.Wrap(errorcode.ErrorForbidden, "文档已停用，查看者列表不可再修改")
	}

	if viewerID == "" {
		return "", errors.Wrap(errorcode.ErrorValidation, "查看者 ID 不能为空")
	}

	if record.Access.CanAccess(viewerID) {
		return "", nil
	}

	viewerIDs := append(record.Access.ViewerIDs, viewerID)
	if err := s.Registry.UpdateViewers(documentHash, viewerIDs); err != nil {
		return "", err
	}

	if _, err := s.AnchorBCAO.GrantViewer(documentHash, viewerID); err != nil {
		log.WithError(err).WithField("hash", documentHash).Warn("授权已在本地生效，但账本同步失败")
		return "授权已生效，但账本同步失败", nil
	}

	return "", nil
}

// RevokeViewer 撤销一个查看者。
func (s *DocumentService) RevokeViewer(documentHash string, viewerID string, requesterID string) (string, error) {
	record, err := s.Registry.FindByHash(documentHash)
	if err != nil {
		return "", err
	}

	if !record.Access.CanManage(requesterID) {
		return "", errors.Wrap(errorcode.ErrorForbidden, "仅所有者与签发机构可以撤销查看者")
	}

	// 停用记录的查看者列表被冻结
	if record.Status == common.StatusDeactivated {
		return "", errors.Wrap(errorcode.ErrorForbidden, "文档已停用，查看者列表不可再修改")
	}

	viewerIDs := make([]string, 0, len(record.Access.ViewerIDs))
	found := false
	for _, id := range record.Access.ViewerIDs {
		if id == viewerID {
			found = true
			continue
		}
		viewerIDs = append(viewerIDs, id)
	}
	if !found {
		return "", errors.Wrap(errorcode.ErrorNotFound, "该查看者不在授权列表中")
	}

	if err := s.Registry.UpdateViewers(documentHash, viewerIDs); err != nil {
		return "", err
	}

	if _, err := s.AnchorBCAO.RevokeViewer(documentHash, viewerID); err != nil {
		log.WithError(err).WithField("hash", documentHash).Warn("撤销已在本地生效，但账本同步失败")
		return "撤销已生效，但账本同步失败", nil
	}

	return "", nil
}

// DeactivateDocument 停用一条文档记录。记录保留在注册表中，
// 但验证会把它当作不存在处理。
func (s *DocumentService) DeactivateDocument(documentHash string, reason string, requesterID string) (string, error) {
	record, err := s.Registry.FindByHash(documentHash)
	if err != nil {
		return "", err
	}

	if !record.Access.CanManage(requesterID) {
		return "", errors.Wrap(errorcode.ErrorForbidden, "仅所有者与签发机构可以停用文档")
	}

	if record.Status == common.StatusDeactivated {
		return "", errors.Wrap(errorcode.ErrorValidation, "文档记录已处于停用状态")
	}

	err = s.Registry.Deactivate(documentHash, &common.DeactivationInfo{
		Reason: reason,
		At:     time.Now(),
		By:     requesterID,
	})
	if err != nil {
		return "", err
	}

	if _, err := s.AnchorBCAO.DeactivateAnchor(documentHash); err != nil {
		log.WithError(err).WithField("hash", documentHash).Warn("停用已在本地生效，但账本同步失败")
		return "停用已生效，但账本同步失败", nil
	}

	return "", nil
}

// ListDocumentsByOwner 列出某所有者名下的文档记录。
func (s *DocumentService) ListDocumentsByOwner(ownerID string) ([]*common.DocumentRecord, error) {
	return s.Registry.ListByOwner(ownerID)
}

// ListDocumentsByStudent 列出某学生的文档记录。
func (s *DocumentService) ListDocumentsByStudent(studentID string) ([]*common.DocumentRecord, error) {
	return s.Registry.ListByStudent(studentID)
}

// SearchDocuments 在学生姓名、机构与课程上做模糊检索。
func (s *DocumentService) SearchDocuments(keyword string) ([]*common.DocumentRecord, error) {
	if keyword == "" {
		return nil, errors.Wrap(errorcode.ErrorValidation, "检索关键字不能为空")
	}

	return s.Registry.Search(keyword)
}

// HandleQueueReplay 在后台补传成功后刷新记录的存储回执并补做账本锚定。
// 由上传补传器回调。
func (s *DocumentService) HandleQueueReplay(entry *uploadqueue.Entry, result *storage.UploadResult) {
	documentHash := entry.Metadata[queueMetaHashKey]
	if documentHash == "" {
		log.WithField("id", entry.ID).Warn("队列任务缺少内容哈希，无法更新文档记录")
		return
	}

	if err := s.Registry.UpdateStorageResult(documentHash, result.CID, result.Provider, common.StatusUploaded); err != nil {
		log.WithError(err).WithField("hash", documentHash).Error("补传成功，但无法更新文档记录")
		return
	}

	record, err := s.Registry.FindByHash(documentHash)
	if err != nil {
		log.WithError(err).WithField("hash", documentHash).Error("补传成功，但无法读取文档记录")
		return
	}

	creationInfo, err := s.AnchorBCAO.CreateAnchor(&anchordata.AnchorRecord{
		DocumentHash: documentHash,
		CID:          result.CID,
		Provider:     result.Provider,
		OwnerID:      record.Access.OwnerID,
		IssuerID:     record.Access.IssuerID,
	})
	if err != nil {
		log.WithError(err).WithField("hash", documentHash).Warn("补传成功，但账本锚定失败")
		return
	}

	err = s.Registry.FinalizeAnchor(documentHash, &common.AnchorInfo{
		TxID:        creationInfo.TransactionID,
		BlockHeight: creationInfo.BlockHeight,
		GasUsed:     creationInfo.GasUsed,
		ContractID:  creationInfo.ContractID,
	})
	if err != nil {
		log.WithError(err).WithField("hash", documentHash).Error("锚定成功，但无法更新文档记录")
		return
	}

	log.WithField("hash", documentHash).Info("补传文档已完成存储与锚定")
}
