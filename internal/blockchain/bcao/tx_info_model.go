package bcao

// TransactionCreationInfo 包含交易成功创建时应该返回的信息
type TransactionCreationInfo struct {
	TransactionID string `json:"transactionId"`         // 交易 ID
	BlockHeight   uint64 `json:"blockHeight,omitempty"` // 交易所在区块高度
	GasUsed       uint64 `json:"gasUsed,omitempty"`     // 消耗的 gas（Fabric 账本恒为 0）
	ContractID    string `json:"contractId,omitempty"`  // 合约（链码）ID
}
