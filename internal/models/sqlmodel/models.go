package sqlmodel

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DocumentRecord 定义了数据库表 document_records，用于读写注册表中的文档托管记录。
// 内容哈希上有唯一索引，是注册去重的权威约束。
type DocumentRecord struct {
	gorm.Model
	DocumentHash    string `gorm:"type:CHAR(66) NOT NULL;uniqueIndex"`
	StorageCID      string `gorm:"type:VARCHAR(255)"`
	StorageProvider string `gorm:"type:VARCHAR(64)"`
	SealedDataKey   []byte `gorm:"type:VARBINARY(256)"`

	StudentID        string `gorm:"type:VARCHAR(64) NOT NULL"`
	StudentName      string `gorm:"type:VARCHAR(255)"`
	InstitutionID    string `gorm:"type:VARCHAR(64) NOT NULL"`
	Institution      string `gorm:"type:VARCHAR(255)"`
	Kind             string `gorm:"type:ENUM('DEGREE', 'CERTIFICATE', 'TRANSCRIPT', 'DIPLOMA', 'OTHER') NOT NULL"`
	IssueDate        time.Time
	ExpiryDate       sql.NullTime
	Grade            string `gorm:"type:VARCHAR(64)"`
	Course           string `gorm:"type:VARCHAR(255)"`
	Description      string `gorm:"type:TEXT"`
	OriginalFilename string `gorm:"type:VARCHAR(255)"`
	MimeType         string `gorm:"type:VARCHAR(128)"`
	Size             int64

	AnchorTxID        string `gorm:"type:VARCHAR(128)"`
	AnchorBlockHeight uint64
	AnchorGasUsed     uint64
	AnchorContractID  string `gorm:"type:VARCHAR(128)"`

	OwnerID   string `gorm:"type:VARCHAR(64) NOT NULL"`
	IssuerID  string `gorm:"type:VARCHAR(64) NOT NULL"`
	ViewerIDs string `gorm:"type:TEXT"` // JSON 数组

	Status string `gorm:"type:ENUM('PENDING', 'UPLOADED', 'ANCHORED', 'VERIFIED', 'FAILED', 'DEACTIVATED') NOT NULL"`

	VerificationCount int64
	LastVerifiedAt    sql.NullTime
	UploaderID        string `gorm:"type:VARCHAR(64)"`

	DeactivationReason string `gorm:"type:VARCHAR(255)"`
	DeactivatedAt      sql.NullTime
	DeactivatedBy      string `gorm:"type:VARCHAR(64)"`

	Diagnostic string `gorm:"type:TEXT"`
}

// 自定义 DocumentRecord 的表名。
func (DocumentRecord) TableName() string {
	return "document_records"
}

// VerificationAttempt 定义了数据库表 verification_attempts，为只追加的验证审计日志。
type VerificationAttempt struct {
	gorm.Model
	ID             int64  // snowflake ID
	DocumentHash   string `gorm:"type:CHAR(66) NOT NULL;index"`
	VerifierID     string `gorm:"type:VARCHAR(64) NOT NULL"`
	SourceIP       string `gorm:"type:VARCHAR(64)"`
	Method         string `gorm:"type:ENUM('UPLOAD', 'QR', 'HASH') NOT NULL"`
	Result         string `gorm:"type:ENUM('AUTHENTIC', 'TAMPERED', 'NOT_FOUND') NOT NULL"`
	Timestamp      time.Time `gorm:"not null;index"`
	UserAgent      string `gorm:"type:VARCHAR(255)"`
	LedgerChecked  bool
	BytesRechecked bool
	AnchorTxID     string `gorm:"type:VARCHAR(128)"`
}

// 自定义 VerificationAttempt 的表名。
func (VerificationAttempt) TableName() string {
	return "verification_attempts"
}

// ToModel 将一个 `sqlmodel.DocumentRecord` 对象转为 `common.DocumentRecord` 对象。
func (r *DocumentRecord) ToModel() (*common.DocumentRecord, error) {
	kind, err := common.NewDocumentKindFromString(getKindFromSQLValue(r.Kind))
	if err != nil {
		return nil, errors.Wrap(err, "无法转换数据库记录为文档记录对象")
	}

	status, err := common.NewDocumentStatusFromString(getStatusFromSQLValue(r.Status))
	if err != nil {
		return nil, errors.Wrap(err, "无法转换数据库记录为文档记录对象")
	}

	var viewerIDs []string
	if r.ViewerIDs != "" {
		if err := json.Unmarshal([]byte(r.ViewerIDs), &viewerIDs); err != nil {
			return nil, errors.Wrap(err, "无法解析授权查看者列表")
		}
	}

	ret := &common.DocumentRecord{
		DocumentHash:    r.DocumentHash,
		StorageCID:      r.StorageCID,
		StorageProvider: r.StorageProvider,
		SealedDataKey:   r.SealedDataKey,
		Metadata: common.DocumentMetadata{
			StudentID:        r.StudentID,
			StudentName:      r.StudentName,
			InstitutionID:    r.InstitutionID,
			Institution:      r.Institution,
			Kind:             kind,
			IssueDate:        r.IssueDate,
			Grade:            r.Grade,
			Course:           r.Course,
			Description:      r.Description,
			OriginalFilename: r.OriginalFilename,
			MimeType:         r.MimeType,
			Size:             r.Size,
		},
		Access: common.AccessInfo{
			OwnerID:   r.OwnerID,
			IssuerID:  r.IssuerID,
			ViewerIDs: viewerIDs,
		},
		Status: status,
		Audit: common.AuditInfo{
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.UpdatedAt,
			VerificationCount: r.VerificationCount,
			UploaderID:        r.UploaderID,
		},
		Diagnostic: r.Diagnostic,
	}

	if r.ExpiryDate.Valid {
		expiryDate := r.ExpiryDate.Time
		ret.Metadata.ExpiryDate = &expiryDate
	}

	if r.AnchorTxID != "" {
		ret.Anchor = &common.AnchorInfo{
			TxID:        r.AnchorTxID,
			BlockHeight: r.AnchorBlockHeight,
			GasUsed:     r.AnchorGasUsed,
			ContractID:  r.AnchorContractID,
		}
	}

	if r.LastVerifiedAt.Valid {
		lastVerifiedAt := r.LastVerifiedAt.Time
		ret.Audit.LastVerifiedAt = &lastVerifiedAt
	}

	if r.DeactivatedAt.Valid {
		ret.Deactivation = &common.DeactivationInfo{
			Reason: r.DeactivationReason,
			At:     r.DeactivatedAt.Time,
			By:     r.DeactivatedBy,
		}
	}

	return ret, nil
}

// NewDocumentRecordFromModel 通过 `common.DocumentRecord` 对象创建一个 `sqlmodel.DocumentRecord` 对象。
func NewDocumentRecordFromModel(model *common.DocumentRecord) (*DocumentRecord, error) {
	viewerIDsBytes, err := json.Marshal(model.Access.ViewerIDs)
	if err != nil {
		return nil, errors.Wrap(err, "无法转换文档记录对象为数据库对象")
	}

	ret := &DocumentRecord{
		DocumentHash:      model.DocumentHash,
		StorageCID:        model.StorageCID,
		StorageProvider:   model.StorageProvider,
		SealedDataKey:     model.SealedDataKey,
		StudentID:         model.Metadata.StudentID,
		StudentName:       model.Metadata.StudentName,
		InstitutionID:     model.Metadata.InstitutionID,
		Institution:       model.Metadata.Institution,
		Kind:              getSQLValueFromKind(model.Metadata.Kind),
		IssueDate:         model.Metadata.IssueDate,
		Grade:             model.Metadata.Grade,
		Course:            model.Metadata.Course,
		Description:       model.Metadata.Description,
		OriginalFilename:  model.Metadata.OriginalFilename,
		MimeType:          model.Metadata.MimeType,
		Size:              model.Metadata.Size,
		OwnerID:           model.Access.OwnerID,
		IssuerID:          model.Access.IssuerID,
		ViewerIDs:         string(viewerIDsBytes),
		Status:            GetSQLValueFromStatus(model.Status),
		VerificationCount: model.Audit.VerificationCount,
		UploaderID:        model.Audit.UploaderID,
		Diagnostic:        model.Diagnostic,
	}

	if model.Metadata.ExpiryDate != nil {
		ret.ExpiryDate = sql.NullTime{Time: *model.Metadata.ExpiryDate, Valid: true}
	}

	if model.Anchor != nil {
		ret.AnchorTxID = model.Anchor.TxID
		ret.AnchorBlockHeight = model.Anchor.BlockHeight
		ret.AnchorGasUsed = model.Anchor.GasUsed
		ret.AnchorContractID = model.Anchor.ContractID
	}

	if model.Audit.LastVerifiedAt != nil {
		ret.LastVerifiedAt = sql.NullTime{Time: *model.Audit.LastVerifiedAt, Valid: true}
	}

	if model.Deactivation != nil {
		ret.DeactivationReason = model.Deactivation.Reason
		ret.DeactivatedAt = sql.NullTime{Time: model.Deactivation.At, Valid: true}
		ret.DeactivatedBy = model.Deactivation.By
	}

	return ret, nil
}

// ToModel 将一个 `sqlmodel.VerificationAttempt` 对象转为 `common.VerificationAttempt` 对象。
func (a *VerificationAttempt) ToModel() (*common.VerificationAttempt, error) {
	method, err := common.NewVerificationMethodFromString(getMethodFromSQLValue(a.Method))
	if err != nil {
		return nil, errors.Wrap(err, "无法转换数据库记录为验证记录对象")
	}

	result, err := common.NewVerificationStateFromString(getStateFromSQLValue(a.Result))
	if err != nil {
		return nil, errors.Wrap(err, "无法转换数据库记录为验证记录对象")
	}

	ret := &common.VerificationAttempt{
		ID:             parseInt64ToSnowflakeString(a.ID),
		DocumentHash:   a.DocumentHash,
		VerifierID:     a.VerifierID,
		SourceIP:       a.SourceIP,
		Method:         method,
		Result:         result,
		Timestamp:      a.Timestamp,
		UserAgent:      a.UserAgent,
		LedgerChecked:  a.LedgerChecked,
		BytesRechecked: a.BytesRechecked,
		AnchorTxID:     a.AnchorTxID,
	}

	return ret, nil
}

// NewVerificationAttemptFromModel 通过 `common.VerificationAttempt` 对象创建一个 `sqlmodel.VerificationAttempt` 对象。
func NewVerificationAttemptFromModel(model *common.VerificationAttempt) (*VerificationAttempt, error) {
	id, err := parseSnowflakeStringToInt64(model.ID)
	if err != nil {
		return nil, errors.Wrap(err, "无法转换验证记录对象为数据库对象")
	}

	ret := &VerificationAttempt{
		ID:             id,
		DocumentHash:   model.DocumentHash,
		VerifierID:     model.VerifierID,
		SourceIP:       model.SourceIP,
		Method:         getSQLValueFromMethod(model.Method),
		Result:         getSQLValueFromState(model.Result),
		Timestamp:      model.Timestamp,
		UserAgent:      model.UserAgent,
		LedgerChecked:  model.LedgerChecked,
		BytesRechecked: model.BytesRechecked,
		AnchorTxID:     model.AnchorTxID,
	}

	return ret, nil
}

func getSQLValueFromKind(k common.DocumentKind) string {
	switch k {
	case common.Degree:
		return "DEGREE"
	case common.Certificate:
		return "CERTIFICATE"
	case common.Transcript:
		return "TRANSCRIPT"
	case common.Diploma:
		return "DIPLOMA"
	case common.OtherDocument:
		return "OTHER"
	default:
		return fmt.Sprintf("%d", int(k))
	}
}

func getKindFromSQLValue(v string) string {
	switch v {
	case "DEGREE":
		return "degree"
	case "CERTIFICATE":
		return "certificate"
	case "TRANSCRIPT":
		return "transcript"
	case "DIPLOMA":
		return "diploma"
	case "OTHER":
		return "other"
	default:
		panic("未识别的文档种类")
	}
}

func GetSQLValueFromStatus(s common.DocumentStatus) string {
	switch s {
	case common.StatusPending:
		return "PENDING"
	case common.StatusUploaded:
		return "UPLOADED"
	case common.StatusAnchored:
		return "ANCHORED"
	case common.StatusVerified:
		return "VERIFIED"
	case common.StatusFailed:
		return "FAILED"
	case common.StatusDeactivated:
		return "DEACTIVATED"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

func getStatusFromSQLValue(v string) string {
	switch v {
	case "PENDING":
		return "pending"
	case "UPLOADED":
		return "uploaded"
	case "ANCHORED":
		return "anchored"
	case "VERIFIED":
		return "verified"
	case "FAILED":
		return "failed"
	case "DEACTIVATED":
		return "deactivated"
	default:
		panic("未识别的文档状态")
	}
}

func getSQLValueFromMethod(m common.VerificationMethod) string {
	switch m {
	case common.MethodUpload:
		return "UPLOAD"
	case common.MethodQR:
		return "QR"
	case common.MethodHash:
		return "HASH"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

func getMethodFromSQLValue(v string) string {
	switch v {
	case "UPLOAD":
		return "upload"
	case "QR":
		return "qr"
	case "HASH":
		return "hash"
	default:
		panic("未识别的验证方式")
	}
}

func getSQLValueFromState(s common.VerificationState) string {
	switch s {
	case common.StateAuthentic:
		return "AUTHENTIC"
	case common.StateTampered:
		return "TAMPERED"
	case common.StateNotFound:
		return "NOT_FOUND"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

func getStateFromSQLValue(v string) string {
	switch v {
	case "AUTHENTIC":
		return "authentic"
	case "TAMPERED":
		return "tampered"
	case "NOT_FOUND":
		return "not_found"
	default:
		panic("未识别的验证结论")
	}
}
