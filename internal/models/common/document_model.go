package common

import (
	"fmt"
	"time"
)

// DocumentKind 表示学历文档的种类
type DocumentKind int

const (
	// Degree 表示学位证书
	Degree DocumentKind = iota
	// Certificate 表示结业证书
	Certificate
	// Transcript 表示成绩单
	Transcript
	// Diploma 表示毕业证书
	Diploma
	// OtherDocument 表示其他种类的文档
	OtherDocument
)

func (k DocumentKind) String() string {
	switch k {
	case Degree:
		return "degree"
	case Certificate:
		return "certificate"
	case Transcript:
		return "transcript"
	case Diploma:
		return "diploma"
	case OtherDocument:
		return "other"
	default:
		return fmt.Sprintf("%d", int(k))
	}
}

// NewDocumentKindFromString 从 enum 名称获得 DocumentKind enum。
func NewDocumentKindFromString(enumString string) (ret DocumentKind, err error) {
	switch enumString {
	case "degree":
		ret = Degree
		return
	case "certificate":
		ret = Certificate
		return
	case "transcript":
		ret = Transcript
		return
	case "diploma":
		ret = Diploma
		return
	case "other":
		ret = OtherDocument
		return
	default:
		err = fmt.Errorf("不正确的 enum 字符串")
		return
	}
}

// DocumentStatus 表示文档记录在托管流水线中的状态
type DocumentStatus int

const (
	// StatusPending 表示记录已占用哈希但尚未完成存储
	StatusPending DocumentStatus = iota
	// StatusUploaded 表示密文已持久化到存储提供方
	StatusUploaded
	// StatusAnchored 表示哈希已在账本上锚定
	StatusAnchored
	// StatusVerified 表示记录至少成功通过一次验证
	StatusVerified
	// StatusFailed 表示流水线在某一步失败，记录保留以供重试检测
	StatusFailed
	// StatusDeactivated 表示记录被软删除，不再参与普通验证查询
	StatusDeactivated
)

func (s DocumentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploaded:
		return "uploaded"
	case StatusAnchored:
		return "anchored"
	case StatusVerified:
		return "verified"
	case StatusFailed:
		return "failed"
	case StatusDeactivated:
		return "deactivated"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// NewDocumentStatusFromString 从 enum 名称获得 DocumentStatus enum。
func NewDocumentStatusFromString(enumString string) (ret DocumentStatus, err error) {
	switch enumString {
	case "pending":
		ret = StatusPending
		return
	case "uploaded":
		ret = StatusUploaded
		return
	case "anchored":
		ret = StatusAnchored
		return
	case "verified":
		ret = StatusVerified
		return
	case "failed":
		ret = StatusFailed
		return
	case "deactivated":
		ret = StatusDeactivated
		return
	default:
		err = fmt.Errorf("不正确的 enum 字符串")
		return
	}
}

// DocumentMetadata 表示注册时随同文档提交的结构化描述信息
type DocumentMetadata struct {
	StudentID        string       `json:"studentId" mapstructure:"studentId"`               // 学生标识
	StudentName      string       `json:"studentName" mapstructure:"studentName"`           // 学生姓名
	InstitutionID    string       `json:"institutionId" mapstructure:"institutionId"`       // 机构标识
	Institution      string       `json:"institution" mapstructure:"institution"`           // 机构名称
	Kind             DocumentKind `json:"kind" mapstructure:"-"`                            // 文档种类
	IssueDate        time.Time    `json:"issueDate" mapstructure:"-"`                       // 签发日期
	ExpiryDate       *time.Time   `json:"expiryDate,omitempty" mapstructure:"-"`            // 过期日期（可选，须晚于签发日期）
	Grade            string       `json:"grade,omitempty" mapstructure:"grade"`             // 成绩（可选）
	Course           string       `json:"course,omitempty" mapstructure:"course"`           // 课程（可选）
	Description      string       `json:"description,omitempty" mapstructure:"description"` // 描述（可选）
	OriginalFilename string       `json:"originalFilename" mapstructure:"originalFilename"` // 原始文件名
	MimeType         string       `json:"mimeType" mapstructure:"mimeType"`                 // MIME 类型
	Size             int64        `json:"size" mapstructure:"size"`                         // 字节长度
}

// Validate 检查元数据的不变量。过期日期若存在则必须严格晚于签发日期。
func (m *DocumentMetadata) Validate() error {
	if m.StudentID == "" {
		return fmt.Errorf("学生标识不能为空")
	}

	if m.InstitutionID == "" {
		return fmt.Errorf("机构标识不能为空")
	}

	if m.IssueDate.IsZero() {
		return fmt.Errorf("签发日期不能为空")
	}

	if m.ExpiryDate != nil && !m.ExpiryDate.After(m.IssueDate) {
		return fmt.Errorf("过期日期必须晚于签发日期")
	}

	return nil
}

// AnchorInfo 表示账本确认后的锚定回执
type AnchorInfo struct {
	TxID        string `json:"txId"`        // 交易 ID
	BlockHeight uint64 `json:"blockHeight"` // 区块高度
	GasUsed     uint64 `json:"gasUsed"`     // 消耗的 gas
	ContractID  string `json:"contractId"`  // 合约（链码）标识
}

// AccessInfo 表示文档记录的访问控制状态
type AccessInfo struct {
	OwnerID   string   `json:"ownerId"`   // 所有者身份句柄
	IssuerID  string   `json:"issuerId"`  // 签发者身份句柄
	ViewerIDs []string `json:"viewerIds"` // 被授权查看者集合
}

// CanAccess 判断 id 是否可以读取明文内容（所有者、签发者或查看者）。
func (a *AccessInfo) CanAccess(id string) bool {
	if id == "" {
		return false
	}

	if id == a.OwnerID || id == a.IssuerID {
		return true
	}

	for _, viewerID := range a.ViewerIDs {
		if id == viewerID {
			return true
		}
	}

	return false
}

// CanManage 判断 id 是否可以进行授权、撤销与停用等管理操作（仅所有者与签发者）。
func (a *AccessInfo) CanManage(id string) bool {
	return id != "" && (id == a.OwnerID || id == a.IssuerID)
}

// AuditInfo 表示文档记录的审计信息
type AuditInfo struct {
	CreatedAt         time.Time  `json:"createdAt"`                // 创建时间
	UpdatedAt         time.Time  `json:"updatedAt"`                // 最近更新时间
	VerificationCount int64      `json:"verificationCount"`        // 验证次数
	LastVerifiedAt    *time.Time `json:"lastVerifiedAt,omitempty"` // 最近验证时间
	UploaderID        string     `json:"uploaderId"`               // 上传者身份句柄
}

// DeactivationInfo 表示记录被软删除时的附加信息
type DeactivationInfo struct {
	Reason string    `json:"reason"` // 停用原因
	At     time.Time `json:"at"`     // 停用时间
	By     string    `json:"by"`     // 操作者身份句柄
}

// DocumentRecord 表示注册表中的一条文档记录，以内容哈希为主键。
// 它是哈希、存储 CID、封存数据密钥、锚定回执与访问状态之间绑定关系的权威来源。
type DocumentRecord struct {
	DocumentHash    string            `json:"documentHash"`           // 0x + 64 位十六进制内容指纹
	StorageCID      string            `json:"storageCid"`             // 外部存储中的内容标识，本地回退时带 local_ 前缀
	StorageProvider string            `json:"storageProvider"`        // 当前持有密文的提供方名称
	SealedDataKey   []byte            `json:"-"`                      // 被主密钥封存的文档数据密钥，绝不直接返回给调用方
	Metadata        DocumentMetadata  `json:"metadata"`               // 结构化描述信息
	Anchor          *AnchorInfo       `json:"anchor,omitempty"`       // 账本锚定回执，确认前为空
	Access          AccessInfo        `json:"access"`                 // 访问控制状态
	Status          DocumentStatus    `json:"status"`                 // 流水线状态
	Audit           AuditInfo         `json:"audit"`                  // 审计信息
	Deactivation    *DeactivationInfo `json:"deactivation,omitempty"` // 软删除信息
	Diagnostic      string            `json:"-"`                      // 失败时的诊断信息
}
