package db

import (
	"strings"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/sqlmodel"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DocumentRegistry 封装了 document_records 表的读写。注册流水线的每一步
// 都通过这里落库，内容哈希上的唯一索引保证同一文档不会被注册两次。
type DocumentRegistry struct {
	db *gorm.DB
}

// NewDocumentRegistry 创建一个注册表访问对象。
func NewDocumentRegistry(db *gorm.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

// ClaimHash 以 pending 状态占用一个内容哈希。哈希已被占用时返回
// `errorcode.ErrorDuplicate`，使重复注册在任何存储或账本调用之前就被拒绝。
func (r *DocumentRegistry) ClaimHash(record *common.DocumentRecord) error {
	recordDB, err := sqlmodel.NewDocumentRecordFromModel(record)
	if err != nil {
		return err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		var existing sqlmodel.DocumentRecord
		dbResult := tx.Where("document_hash = ?", record.DocumentHash).Take(&existing)
		if dbResult.Error == nil {
			return errorcode.ErrorDuplicate
		}
		if errors.Cause(dbResult.Error) != gorm.ErrRecordNotFound {
			return errors.Wrap(dbResult.Error, "无法查询文档记录")
		}

		dbResult = tx.Create(recordDB)
		if dbResult.Error != nil {
			// 并发占用同一哈希时由唯一索引兜底
			if strings.Contains(dbResult.Error.Error(), "Duplicate entry") {
				return errorcode.ErrorDuplicate
			}
			return errors.Wrap(dbResult.Error, "无法占用文档哈希")
		}

		return nil
	})

	return err
}

// UpdateStorageResult 在密文持久化成功后记录存储回执与流水线状态。
func (r *DocumentRegistry) UpdateStorageResult(documentHash string, cid string, provider string, status common.DocumentStatus) error {
	return r.updateByHash(documentHash, map[string]interface{}{
		"storage_cid":      cid,
		"storage_provider": provider,
		"status":           sqlmodel.GetSQLValueFromStatus(status),
	})
}

// FinalizeAnchor 在账本确认后记录锚定回执并推进状态。
func (r *DocumentRegistry) FinalizeAnchor(documentHash string, anchor *common.AnchorInfo) error {
	return r.updateByHash(documentHash, map[string]interface{}{
		"anchor_tx_id":        anchor.TxID,
		"anchor_block_height": anchor.BlockHeight,
		"anchor_gas_used":     anchor.GasUsed,
		"anchor_contract_id":  anchor.ContractID,
		"status":              sqlmodel.GetSQLValueFromStatus(common.StatusAnchored),
	})
}

// MarkFailed 将记录标记为 failed 并保留诊断信息。记录本身保留，
// 以便后续注册同一哈希时仍被判定为重复。
func (r *DocumentRegistry) MarkFailed(documentHash string, diagnostic string) error {
	return r.updateByHash(documentHash, map[string]interface{}{
		"status":     sqlmodel.GetSQLValueFromStatus(common.StatusFailed),
		"diagnostic": diagnostic,
	})
}

// FindByHash 按内容哈希读取文档记录。
func (r *DocumentRegistry) FindByHash(documentHash string) (*common.DocumentRecord, error) {
	var recordDB sqlmodel.DocumentRecord
	dbResult := r.db.Where("document_hash = ?", documentHash).Take(&recordDB)
	if dbResult.Error != nil {
		if errors.Cause(dbResult.Error) == gorm.ErrRecordNotFound {
			return nil, errorcode.ErrorNotFound
		} else {
			return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取文档记录")
		}
	}

	return recordDB.ToModel()
}

// IncrementVerification 原子地累加验证次数并刷新最近验证时间。
// newStatus 不为 nil 时一并推进状态（首次验证成功时推进到 verified）。
func (r *DocumentRegistry) IncrementVerification(documentHash string, at time.Time, newStatus *common.DocumentStatus) error {
	updates := map[string]interface{}{
		"verification_count": gorm.Expr("verification_count + 1"),
		"last_verified_at":   at,
	}
	if newStatus != nil {
		updates["status"] = sqlmodel.GetSQLValueFromStatus(*newStatus)
	}

	return r.updateByHash(documentHash, updates)
}

// UpdateViewers 覆盖授权查看者列表。
func (r *DocumentRegistry) UpdateViewers(documentHash string, viewerIDs []string) error {
	recordDB, err := sqlmodel.NewDocumentRecordFromModel(&common.DocumentRecord{
		Access: common.AccessInfo{ViewerIDs: viewerIDs},
	})
	if err != nil {
		return err
	}

	return r.updateByHash(documentHash, map[string]interface{}{
		"viewer_ids": recordDB.ViewerIDs,
	})
}

// Deactivate 将记录软删除。记录保留在注册表中，验证时返回 not_found。
func (r *DocumentRegistry) Deactivate(documentHash string, info *common.DeactivationInfo) error {
	return r.updateByHash(documentHash, map[string]interface{}{
		"status":              sqlmodel.GetSQLValueFromStatus(common.StatusDeactivated),
		"deactivation_reason": info.Reason,
		"deactivated_at":      info.At,
		"deactivated_by":      info.By,
	})
}

// ListByOwner 列出某所有者名下的全部记录。
func (r *DocumentRegistry) ListByOwner(ownerID string) ([]*common.DocumentRecord, error) {
	var recordDBs []sqlmodel.DocumentRecord
	dbResult := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&recordDBs)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取文档记录列表")
	}

	return toModels(recordDBs)
}

// ListByStudent 列出某学生的全部记录。
func (r *DocumentRegistry) ListByStudent(studentID string) ([]*common.DocumentRecord, error) {
	var recordDBs []sqlmodel.DocumentRecord
	dbResult := r.db.Where("student_id = ?", studentID).Order("created_at DESC").Find(&recordDBs)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取文档记录列表")
	}

	return toModels(recordDBs)
}

// Search 在学生姓名、机构名称与课程上做大小写不敏感的模糊检索。
func (r *DocumentRegistry) Search(keyword string) ([]*common.DocumentRecord, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"

	var recordDBs []sqlmodel.DocumentRecord
	dbResult := r.db.
		Where("LOWER(student_name) LIKE ? OR LOWER(institution) LIKE ? OR LOWER(course) LIKE ?", pattern, pattern, pattern).
		Order("created_at DESC").
		Find(&recordDBs)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法检索文档记录")
	}

	return toModels(recordDBs)
}

func (r *DocumentRegistry) updateByHash(documentHash string, updates map[string]interface{}) error {
	dbResult := r.db.Model(&sqlmodel.DocumentRecord{}).Where("document_hash = ?", documentHash).Updates(updates)
	if dbResult.Error != nil {
		return errors.Wrap(dbResult.Error, "无法更新文档记录")
	}
	if dbResult.RowsAffected == 0 {
		return errorcode.ErrorNotFound
	}

	return nil
}

func toModels(recordDBs []sqlmodel.DocumentRecord) ([]*common.DocumentRecord, error) {
	ret := make([]*common.DocumentRecord, 0, len(recordDBs))
	for i := range recordDBs {
		record, err := recordDBs[i].ToModel()
		if err != nil {
			return nil, err
		}
		ret = append(ret, record)
	}

	return ret, nil
}
