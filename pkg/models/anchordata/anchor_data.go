// Package anchordata 定义锚定记录在链上的参数与存储形态。
package anchordata

import "time"

// AnchorRecord 为创建锚定记录时的链码参数。
type AnchorRecord struct {
	DocumentHash string `json:"documentHash"` // 文档明文的 SHA-256 摘要（0x + 64 位十六进制）
	CID          string `json:"cid"`          // 加密内容在存储提供方处的 CID
	Provider     string `json:"provider"`     // 接收内容的存储提供方名称
	OwnerID      string `json:"ownerId"`      // 文档所有者 ID
	IssuerID     string `json:"issuerId"`     // 签发机构 ID
}

// AnchorRecordStored 为锚定记录在链上的存储形态。
type AnchorRecordStored struct {
	DocumentHash string    `json:"documentHash"`
	CID          string    `json:"cid"`
	Provider     string    `json:"provider"`
	OwnerID      string    `json:"ownerId"`
	IssuerID     string    `json:"issuerId"`
	Viewers      []string  `json:"viewers"`  // 被授权查看的用户 ID 列表
	Active       bool      `json:"active"`   // false 表示记录已被停用
	AnchoredAt   time.Time `json:"anchoredAt"`
}

// HasViewer 判断 viewerID 是否在授权列表中。
func (r *AnchorRecordStored) HasViewer(viewerID string) bool {
	for _, viewer := range r.Viewers {
		if viewer == viewerID {
			return true
		}
	}

	return false
}
