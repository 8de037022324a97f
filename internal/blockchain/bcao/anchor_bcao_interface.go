package bcao

import (
	"github.com/12Omega/blockchain-doc-sub002/pkg/models/anchordata"
)

// IAnchorBCAO 定义了锚定记录在账本上的访问操作（BCAO = BlockChain Access Object）。
type IAnchorBCAO interface {
	// CreateAnchor 在账本上创建一条锚定记录。文档哈希已存在时返回 `errorcode.ErrorDuplicate`。
	CreateAnchor(record *anchordata.AnchorRecord, eventID ...string) (*TransactionCreationInfo, error)
	// GetAnchor 按文档哈希查询锚定记录。记录不存在时返回 `errorcode.ErrorNotFound`。
	GetAnchor(documentHash string) (*anchordata.AnchorRecordStored, error)
	// GrantViewer 将 viewerID 加入锚定记录的授权查看列表。
	GrantViewer(documentHash string, viewerID string) (string, error)
	// RevokeViewer 将 viewerID 移出锚定记录的授权查看列表。
	RevokeViewer(documentHash string, viewerID string) (string, error)
	// DeactivateAnchor 将锚定记录标记为停用。
	DeactivateAnchor(documentHash string) (string, error)
}
