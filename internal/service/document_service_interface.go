package service

import (
	"context"

	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
)

// DocumentServiceInterface 定义了用于托管学历文档的服务的接口。
type DocumentServiceInterface interface {
	// 注册一份文档：计算哈希、信封加密、持久化到存储提供方并在账本上锚定。
	// 同一哈希重复注册时返回 duplicate 结局的回执而非错误。
	//
	// 参数：
	//   文档内容
	//   结构化元数据
	//   所有者 ID
	//   签发机构 ID
	//   上传者 ID
	//
	// 返回：
	//   注册回执
	RegisterDocument(ctx context.Context, contents []byte, metadata *common.DocumentMetadata, ownerID string, issuerID string, uploaderID string) (*common.RegistrationReceipt, error)

	// 获取文档记录。仅所有者、签发者与被授权查看者可见。
	//
	// 参数：
	//   内容哈希
	//   请求者 ID
	//
	// 返回：
	//   文档记录
	GetDocumentRecord(documentHash string, requesterID string) (*common.DocumentRecord, error)

	// 获取解密后的文档明文。取回密文、解开数据密钥、解密并核对内容哈希。
	//
	// 参数：
	//   内容哈希
	//   请求者 ID
	//
	// 返回：
	//   文档记录
	//   文档明文
	GetDocument(ctx context.Context, documentHash string, requesterID string) (*common.DocumentRecord, []byte, error)

	// 授权一个查看者。账本同步失败时本地授权仍然生效，并通过 warning 提示。
	//
	// 参数：
	//   内容哈希
	//   查看者 ID
	//   请求者 ID
	//
	// 返回：
	//   降级提示（账本同步失败时非空）
	GrantViewer(documentHash string, viewerID string, requesterID string) (string, error)

	// 撤销一个查看者。
	//
	// 参数：
	//   内容哈希
	//   查看者 ID
	//   请求者 ID
	//
	// 返回：
	//   降级提示（账本同步失败时非空）
	RevokeViewer(documentHash string, viewerID string, requesterID string) (string, error)

	// 停用（软删除）一条文档记录。停用后验证返回 not_found。
	//
	// 参数：
	//   内容哈希
	//   停用原因
	//   请求者 ID
	//
	// 返回：
	//   降级提示（账本同步失败时非空）
	DeactivateDocument(documentHash string, reason string, requesterID string) (string, error)

	// 列出某所有者名下的文档记录。
	ListDocumentsByOwner(ownerID string) ([]*common.DocumentRecord, error)

	// 列出某学生的文档记录。
	ListDocumentsByStudent(studentID string) ([]*common.DocumentRecord, error)

	// 在学生姓名、机构与课程上做模糊检索。
	SearchDocuments(keyword string) ([]*common.DocumentRecord, error)
}
