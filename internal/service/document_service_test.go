package service

import (
	"context"
	"testing"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage/uploadqueue"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/cipherutils"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/hashutils"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var testMasterKey = []byte("0123456789abcdef0123456789abcdef")

func newDocumentServiceFixture() (*DocumentService, *fakeRegistry, *fakeRouter, *fakeAnchorBCAO) {
	registry := newFakeRegistry()
	router := newFakeRouter()
	anchorBCAO := newFakeAnchorBCAO()

	svc := &DocumentService{
		Registry:       registry,
		Router:         router,
		AnchorBCAO:     anchorBCAO,
		CipherSuite:    cipherutils.SuiteAES256GCM,
		MasterKey:      testMasterKey,
		MaxUploadBytes: 10 * 1024 * 1024,
	}

	return svc, registry, router, anchorBCAO
}

func newTestMetadata() *common.DocumentMetadata {
	return &common.DocumentMetadata{
		StudentID:        "stu-1001",
		StudentName:      "张三",
		InstitutionID:    "inst-42",
		Institution:      "示例大学",
		Kind:             common.Degree,
		IssueDate:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		OriginalFilename: "degree.pdf",
		MimeType:         "application/pdf",
	}
}

func TestRegisterDocumentFullSuccess(t *testing.T) {
	svc, registry, router, _ := newDocumentServiceFixture()
	contents := []byte("degree certificate bytes")

	receipt, err := svc.RegisterDocument(context.Background(), contents, newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, common.Registered, receipt.State)
	assert.Equal(t, hashutils.HashBytesToString(contents), receipt.DocumentHash)
	if isNotNil := assert.NotNil(t, receipt.Anchor); isNotNil {
		assert.Equal(t, "tx-1", receipt.Anchor.TxID)
	}
	assert.NotNil(t, receipt.Storage)

	// 二维码负载可以解析回哈希与交易 ID
	payload, err := common.ParseQRPayload(receipt.QRPayload)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, receipt.DocumentHash, payload.DocumentHash)
	assert.Equal(t, "tx-1", payload.AnchorTxID)

	record, err := registry.FindByHash(receipt.DocumentHash)
	assert.NoError(t, err)
	assert.Equal(t, common.StatusAnchored, record.Status)
	assert.NotEmpty(t, record.SealedDataKey)

	// 上传的是密文信封而非明文
	assert.NotEqual(t, contents, router.lastUpload)
}

func TestRegisterDocumentDuplicate(t *testing.T) {
	svc, _, _, _ := newDocumentServiceFixture()
	contents := []byte("the same document")

	_, err := svc.RegisterDocument(context.Background(), contents, newTestMetadata(), "owner-1", "inst-42", "owner-1")
	assert.NoError(t, err)

	receipt, err := svc.RegisterDocument(context.Background(), contents, newTestMetadata(), "owner-2", "inst-42", "owner-2")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, common.DuplicateDocument, receipt.State)
	assert.Nil(t, receipt.Anchor)
}

func TestRegisterDocumentValidation(t *testing.T) {
	svc, _, _, _ := newDocumentServiceFixture()

	_, err := svc.RegisterDocument(context.Background(), nil, newTestMetadata(), "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))

	metadata := newTestMetadata()
	metadata.StudentID = ""
	_, err = svc.RegisterDocument(context.Background(), []byte("content"), metadata, "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))

	// 过期日期必须严格晚于签发日期
	metadata = newTestMetadata()
	expiry := metadata.IssueDate
	metadata.ExpiryDate = &expiry
	_, err = svc.RegisterDocument(context.Background(), []byte("content"), metadata, "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))

	// 白名单之外的 MIME 类型被拒绝
	metadata = newTestMetadata()
	metadata.MimeType = "application/x-msdownload"
	_, err = svc.RegisterDocument(context.Background(), []byte("content"), metadata, "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))

	svc.MaxUploadBytes = 4
	_, err = svc.RegisterDocument(context.Background(), []byte("too large"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))
}

func TestRegisterDocumentMimeAllowlistFromConfig(t *testing.T) {
	svc, _, _, _ := newDocumentServiceFixture()
	svc.AllowedMimeTypes = []string{"image/png"}

	_, err := svc.RegisterDocument(context.Background(), []byte("pdf bytes"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))

	metadata := newTestMetadata()
	metadata.MimeType = "image/png"
	receipt, err := svc.RegisterDocument(context.Background(), []byte("png bytes"), metadata, "owner-1", "inst-42", "owner-1")
	assert.NoError(t, err)
	assert.Equal(t, common.Registered, receipt.State)
}

func TestRegisterDocumentPartialAnchorFailed(t *testing.T) {
	svc, registry, _, anchorBCAO := newDocumentServiceFixture()
	anchorBCAO.createErr = errors.New("背书节点不可达")

	receipt, err := svc.RegisterDocument(context.Background(), []byte("content"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, common.PartialAnchorFailed, receipt.State)
	assert.NotNil(t, receipt.Storage)
	assert.NotEmpty(t, receipt.Warning)

	// 记录转入 failed 状态，等待补锚重试
	record, err := registry.FindByHash(receipt.DocumentHash)
	assert.NoError(t, err)
	assert.Equal(t, common.StatusFailed, record.Status)
	assert.NotEmpty(t, record.Diagnostic)
}

func TestRegisterDocumentQueued(t *testing.T) {
	svc, registry, router, _ := newDocumentServiceFixture()
	router.queueNext = true

	receipt, err := svc.RegisterDocument(context.Background(), []byte("content"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, common.RegistrationQueued, receipt.State)
	assert.Equal(t, 1, receipt.QueuePosition)
	assert.NotEmpty(t, receipt.Warning)

	record, err := registry.FindByHash(receipt.DocumentHash)
	assert.NoError(t, err)
	assert.Equal(t, common.StatusFailed, record.Status)
	assert.Equal(t, "local", record.StorageProvider)
}

func TestRegisterDocumentStorageUnavailable(t *testing.T) {
	svc, registry, router, _ := newDocumentServiceFixture()
	router.uploadErr = errors.Wrap(errorcode.ErrorUnavailable, "所有存储提供方均不可用")

	contents := []byte("content")
	_, err := svc.RegisterDocument(context.Background(), contents, newTestMetadata(), "owner-1", "inst-42", "owner-1")
	assert.Equal(t, errorcode.ErrorUnavailable, errors.Cause(err))

	record, err := registry.FindByHash(hashutils.HashBytesToString(contents))
	assert.NoError(t, err)
	assert.Equal(t, common.StatusFailed, record.Status)
	assert.NotEmpty(t, record.Diagnostic)
}

func TestGetDocumentRoundTrip(t *testing.T) {
	svc, _, _, _ := newDocumentServiceFixture()
	contents := []byte("original plaintext bytes")

	receipt, err := svc.RegisterDocument(context.Background(), contents, newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	record, got, err := svc.GetDocument(context.Background(), receipt.DocumentHash, "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, contents, got)
	assert.Equal(t, receipt.DocumentHash, record.DocumentHash)

	// 无关用户不可读取
	_, _, err = svc.GetDocument(context.Background(), receipt.DocumentHash, "stranger")
	assert.Equal(t, errorcode.ErrorForbidden, errors.Cause(err))

	// 签发机构可以读取
	_, _, err = svc.GetDocument(context.Background(), receipt.DocumentHash, "inst-42")
	assert.NoError(t, err)
}

func TestGrantAndRevokeViewer(t *testing.T) {
	svc, _, _, _ := newDocumentServiceFixture()

	receipt, err := svc.RegisterDocument(context.Background(), []byte("content"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	// 非管理者不能授权
	_, err = svc.GrantViewer(receipt.DocumentHash, "viewer-1", "stranger")
	assert.Equal(t, errorcode.ErrorForbidden, errors.Cause(err))

	warning, err := svc.GrantViewer(receipt.DocumentHash, "viewer-1", "owner-1")
	assert.NoError(t, err)
	assert.Empty(t, warning)

	_, _, err = svc.GetDocument(context.Background(), receipt.DocumentHash, "viewer-1")
	assert.NoError(t, err)

	warning, err = svc.RevokeViewer(receipt.DocumentHash, "viewer-1", "inst-42")
	assert.NoError(t, err)
	assert.Empty(t, warning)

	_, _, err = svc.GetDocument(context.Background(), receipt.DocumentHash, "viewer-1")
	assert.Equal(t, errorcode.ErrorForbidden, errors.Cause(err))
}

func TestGrantViewerLedgerSyncDegraded(t *testing.T) {
	svc, _, _, anchorBCAO := newDocumentServiceFixture()

	receipt, err := svc.RegisterDocument(context.Background(), []byte("content"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	anchorBCAO.syncErr = errors.New("背书节点不可达")
	warning, err := svc.GrantViewer(receipt.DocumentHash, "viewer-1", "owner-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, warning)

	// 账本同步失败时本地授权仍然生效
	_, _, err = svc.GetDocument(context.Background(), receipt.DocumentHash, "viewer-1")
	assert.NoError(t, err)
}

func TestDeactivateDocument(t *testing.T) {
	svc, registry, _, _ := newDocumentServiceFixture()

	receipt, err := svc.RegisterDocument(context.Background(), []byte("content"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	warning, err := svc.DeactivateDocument(receipt.DocumentHash, "签发信息有误", "inst-42")
	assert.NoError(t, err)
	assert.Empty(t, warning)

	record, err := registry.FindByHash(receipt.DocumentHash)
	assert.NoError(t, err)
	assert.Equal(t, common.StatusDeactivated, record.Status)
	if isNotNil := assert.NotNil(t, record.Deactivation); isNotNil {
		assert.Equal(t, "inst-42", record.Deactivation.By)
	}

	// 重复停用被拒绝
	_, err = svc.DeactivateDocument(receipt.DocumentHash, "再次停用", "inst-42")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))

	// 停用后查看者列表被冻结
	_, err = svc.GrantViewer(receipt.DocumentHash, "viewer-99", "inst-42")
	assert.Equal(t, errorcode.ErrorForbidden, errors.Cause(err))
	_, err = svc.RevokeViewer(receipt.DocumentHash, "viewer-99", "inst-42")
	assert.Equal(t, errorcode.ErrorForbidden, errors.Cause(err))

	updated, err := registry.FindByHash(receipt.DocumentHash)
	assert.NoError(t, err)
	assert.Empty(t, updated.Access.ViewerIDs)
}

func TestHandleQueueReplay(t *testing.T) {
	svc, registry, router, _ := newDocumentServiceFixture()
	router.queueNext = true

	receipt, err := svc.RegisterDocument(context.Background(), []byte("content"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, common.RegistrationQueued, receipt.State)

	// 模拟补传器重放成功
	router.queueNext = false
	replayResult, err := router.Upload(context.Background(), router.lastUpload, "degree.pdf", nil)
	assert.NoError(t, err)

	svc.HandleQueueReplay(&uploadqueue.Entry{
		ID:       "1",
		Filename: "degree.pdf",
		Metadata: map[string]string{queueMetaHashKey: receipt.DocumentHash},
	}, replayResult)

	record, err := registry.FindByHash(receipt.DocumentHash)
	assert.NoError(t, err)
	assert.Equal(t, common.StatusAnchored, record.Status)
	assert.Equal(t, replayResult.CID, record.StorageCID)
	assert.Equal(t, "ipfs-primary", record.StorageProvider)
	assert.NotNil(t, record.Anchor)
}

func TestListAndSearchDocuments(t *testing.T) {
	svc, _, _, _ := newDocumentServiceFixture()

	_, err := svc.RegisterDocument(context.Background(), []byte("doc one"), newTestMetadata(), "owner-1", "inst-42", "owner-1")
	assert.NoError(t, err)

	metadata := newTestMetadata()
	metadata.StudentID = "stu-2002"
	metadata.StudentName = "李四"
	_, err = svc.RegisterDocument(context.Background(), []byte("doc two"), metadata, "owner-2", "inst-42", "owner-2")
	assert.NoError(t, err)

	byOwner, err := svc.ListDocumentsByOwner("owner-1")
	assert.NoError(t, err)
	assert.Len(t, byOwner, 1)

	byStudent, err := svc.ListDocumentsByStudent("stu-2002")
	assert.NoError(t, err)
	assert.Len(t, byStudent, 1)

	found, err := svc.SearchDocuments("李四")
	assert.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = svc.SearchDocuments("")
	assert.Equal(t, errorcode.ErrorValidation, errors.Cause(err))
}
