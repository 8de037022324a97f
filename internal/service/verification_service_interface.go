package service

import (
	"context"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/db"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
)

// VerificationEvidence 表示一次验证请求携带的证据与请求上下文。
type VerificationEvidence struct {
	Method common.VerificationMethod
	// FileBytes 为 upload 方式提交的原始文件字节
	FileBytes []byte
	// ClaimedHash 为调用方声称的内容哈希。upload 方式下可选：提供时按声称
	// 哈希查找记录，并据此判断提交的字节是否被篡改；hash 方式下即为证据本身。
	ClaimedHash string
	// QRPayload 为 qr 方式提交的 base64url 负载
	QRPayload string

	VerifierID string
	SourceIP   string
	UserAgent  string
}

// VerificationServiceInterface 定义了验证引擎与审计日志查询的接口。
type VerificationServiceInterface interface {
	// 验证一份文档证据，返回三态结论。验证本身不要求身份，
	// 匿名请求以 `common.AnonymousVerifier` 记账。
	//
	// 参数：
	//   证据与请求上下文
	//
	// 返回：
	//   验证结果
	Verify(ctx context.Context, evidence *VerificationEvidence) (*common.VerificationResult, error)

	// 获取某哈希的验证审计轨迹（时间倒序）及汇总统计。
	// 仅所有者、签发机构与被授权查看者可以查询。
	//
	// 参数：
	//   内容哈希
	//   请求者 ID
	//   条数上限（<= 0 表示不限制）
	//
	// 返回：
	//   审计轨迹报告
	AuditTrail(documentHash string, requesterID string, limit int) (*AuditTrailReport, error)

	// 聚合窗口期内失败验证达到阈值的可疑文档。
	//
	// 参数：
	//   回溯窗口
	//
	// 返回：
	//   可疑文档摘要列表
	SuspiciousActivity(window time.Duration) ([]db.SuspiciousDocument, error)

	// 统计窗口期内各结论的验证次数。
	//
	// 参数：
	//   回溯窗口
	//
	// 返回：
	//   汇总统计
	Stats(window time.Duration) (*db.LogStats, error)
}
