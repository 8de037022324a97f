package common

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// VerificationMethod 表示验证请求所携带证据的形式
type VerificationMethod int

const (
	// MethodUpload 表示提交原始文件字节
	MethodUpload VerificationMethod = iota
	// MethodQR 表示提交二维码负载
	MethodQR
	// MethodHash 表示直接提交内容哈希
	MethodHash
)

func (m VerificationMethod) String() string {
	switch m {
	case MethodUpload:
		return "upload"
	case MethodQR:
		return "qr"
	case MethodHash:
		return "hash"
	default:
		return fmt.Sprintf("%d", int(m))
	}
}

// NewVerificationMethodFromString 从 enum 名称获得 VerificationMethod enum。
func NewVerificationMethodFromString(enumString string) (ret VerificationMethod, err error) {
	switch enumString {
	case "upload":
		ret = MethodUpload
		return
	case "qr":
		ret = MethodQR
		return
	case "hash":
		ret = MethodHash
		return
	default:
		err = fmt.Errorf("不正确的 enum 字符串")
		return
	}
}

// VerificationState 表示验证的三种互斥结论
type VerificationState int

const (
	// StateAuthentic 表示文档真实有效
	StateAuthentic VerificationState = iota
	// StateTampered 表示文档与登记内容不一致
	StateTampered
	// StateNotFound 表示注册表中不存在该哈希的有效记录
	StateNotFound
)

func (s VerificationState) String() string {
	switch s {
	case StateAuthentic:
		return "authentic"
	case StateTampered:
		return "tampered"
	case StateNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// NewVerificationStateFromString 从 enum 名称获得 VerificationState enum。
func NewVerificationStateFromString(enumString string) (ret VerificationState, err error) {
	switch enumString {
	case "authentic":
		ret = StateAuthentic
		return
	case "tampered":
		ret = StateTampered
		return
	case "not_found":
		ret = StateNotFound
		return
	default:
		err = fmt.Errorf("不正确的 enum 字符串")
		return
	}
}

// AnonymousVerifier 是未绑定身份的验证者的哨兵标识。公开验证不要求身份。
const AnonymousVerifier = "anonymous"

// VerificationAttempt 表示一次验证请求的只追加审计记录
type VerificationAttempt struct {
	ID             string             `json:"id"`                       // 记录 ID（snowflake）
	DocumentHash   string             `json:"documentHash"`             // 被验证的内容哈希
	VerifierID     string             `json:"verifierId"`               // 验证者身份句柄，匿名时为 anonymous
	SourceIP       string             `json:"sourceIp"`                 // 来源 IP
	Method         VerificationMethod `json:"method"`                   // 证据形式
	Result         VerificationState  `json:"result"`                   // 验证结论
	Timestamp      time.Time          `json:"timestamp"`                // 验证时间
	UserAgent      string             `json:"userAgent"`                // 客户端 UA
	LedgerChecked  bool               `json:"ledgerChecked"`            // 是否进行了账本交叉检查
	BytesRechecked bool               `json:"bytesRechecked"`           // 是否重新核对了文件字节
	AnchorTxID     string             `json:"anchorTxId,omitempty"`     // 关联的锚定交易 ID
}

// StorageInfo 表示验证结果中返回的存储信息
type StorageInfo struct {
	CID        string `json:"cid"`        // 存储内容标识
	Provider   string `json:"provider"`   // 提供方名称
	GatewayURL string `json:"gatewayUrl"` // 公共网关读取地址
}

// VerificationDiagnostics 表示 tampered 结论附带的诊断布尔值。
// 结论为 tampered 时绝不返回元数据、存储与锚定信息，只返回这些布尔值。
type VerificationDiagnostics struct {
	HashMatch       bool  `json:"hashMatch"`             // 提交字节的哈希是否与登记哈希一致
	LedgerValid     *bool `json:"ledgerValid,omitempty"` // 账本检查结论，无法访问账本时为 null（unknown）
	FileIntegrityOK bool  `json:"fileIntegrityOk"`       // 存储字节的完整性核对是否通过
}

// VerificationResult 表示验证引擎的输出
type VerificationResult struct {
	State             VerificationState        `json:"state"`                 // 三态结论
	DocumentHash      string                   `json:"hash"`                  // 被验证的哈希
	Timestamp         time.Time                `json:"timestamp"`             // 验证时间
	Method            VerificationMethod       `json:"method"`                // 证据形式
	VerifierID        string                   `json:"verifier"`              // 验证者（可为 anonymous）
	VerificationCount int64                    `json:"verificationCount"`     // 递增后的验证次数
	Metadata          *DocumentMetadata        `json:"metadata,omitempty"`    // 仅 authentic 时返回
	Anchor            *AnchorInfo              `json:"anchor,omitempty"`      // 仅 authentic 时返回
	Storage           *StorageInfo             `json:"storage,omitempty"`     // 仅 authentic 时返回
	Diagnostics       *VerificationDiagnostics `json:"diagnostics,omitempty"` // 仅 tampered 时返回
	Warning           string                   `json:"warning,omitempty"`     // 如账本不可达时的降级提示
}

// QRPayload 表示二维码负载，绑定内容哈希与锚定交易 ID。
// 负载本身的签名与完整性保护是预留的扩展点。
type QRPayload struct {
	DocumentHash string `json:"documentHash"`
	AnchorTxID   string `json:"anchorTxId"`
}

// Encode 将负载序列化为 base64url 字符串，供外部二维码渲染使用。
func (p *QRPayload) Encode() (string, error) {
	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("无法序列化二维码负载: %v", err)
	}

	return base64.RawURLEncoding.EncodeToString(payloadBytes), nil
}

// ParseQRPayload 解析 base64url 字符串为 QRPayload，并检查负载形状。
func ParseQRPayload(encoded string) (*QRPayload, error) {
	payloadBytes, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("二维码负载不是合法的 base64url 字符串")
	}

	var payload QRPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("二维码负载不是合法的 JSON 对象")
	}

	if payload.DocumentHash == "" {
		return nil, fmt.Errorf("二维码负载缺少文档哈希")
	}

	return &payload, nil
}

// RegistrationState 表示注册操作的几种结局
type RegistrationState int

const (
	// Registered 表示注册完整成功，锚定回执已获取
	Registered RegistrationState = iota
	// PartialAnchorFailed 表示存储成功但上链失败
	PartialAnchorFailed
	// RegistrationQueued 表示所有远端提供方不可用，上传任务已入队
	RegistrationQueued
	// DuplicateDocument 表示该哈希已被注册
	DuplicateDocument
)

func (s RegistrationState) String() string {
	switch s {
	case Registered:
		return "registered"
	case PartialAnchorFailed:
		return "partial_anchor_failed"
	case RegistrationQueued:
		return "queued"
	case DuplicateDocument:
		return "duplicate"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// RegistrationReceipt 表示注册操作返回给调用方的回执
type RegistrationReceipt struct {
	State         RegistrationState `json:"state"`                   // 注册结局
	DocumentHash  string            `json:"hash"`                    // 内容哈希
	Anchor        *AnchorInfo       `json:"anchor,omitempty"`        // 完整成功时的锚定回执
	Storage       *StorageInfo      `json:"storage,omitempty"`       // 存储回执
	QRPayload     string            `json:"qrPayload,omitempty"`     // 编码后的二维码负载
	QueuePosition int               `json:"queuePosition,omitempty"` // 入队时的队列位置
	Warning       string            `json:"warning,omitempty"`       // 部分成功时的提示
}
