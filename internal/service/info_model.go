package service

import (
	"context"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/db"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
)

// DocumentRegistryInterface 抽象了服务层所需的注册表操作，由 `db.DocumentRegistry` 实现。
type DocumentRegistryInterface interface {
	ClaimHash(record *common.DocumentRecord) error
	UpdateStorageResult(documentHash string, cid string, provider string, status common.DocumentStatus) error
	FinalizeAnchor(documentHash string, anchor *common.AnchorInfo) error
	MarkFailed(documentHash string, diagnostic string) error
	FindByHash(documentHash string) (*common.DocumentRecord, error)
	IncrementVerification(documentHash string, at time.Time, newStatus *common.DocumentStatus) error
	UpdateViewers(documentHash string, viewerIDs []string) error
	Deactivate(documentHash string, info *common.DeactivationInfo) error
	ListByOwner(ownerID string) ([]*common.DocumentRecord, error)
	ListByStudent(studentID string) ([]*common.DocumentRecord, error)
	Search(keyword string) ([]*common.DocumentRecord, error)
}

// VerificationLogInterface 抽象了服务层所需的验证日志操作，由 `db.VerificationLog` 实现。
type VerificationLogInterface interface {
	Append(attempt *common.VerificationAttempt) error
	ListByHash(documentHash string, limit int) ([]*common.VerificationAttempt, error)
	CountFailuresInWindow(documentHash string, since time.Time) (int64, error)
	AggregateSuspicious(since time.Time, threshold int64) ([]db.SuspiciousDocument, error)
	Stats(since time.Time) (*db.LogStats, error)
}

// StorageRouterInterface 抽象了服务层所需的存储路由操作，由 `storage.Router` 实现。
type StorageRouterInterface interface {
	Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (*storage.UploadResult, error)
	Download(ctx context.Context, cid string) ([]byte, error)
	GatewayURL(cid string) string
}
