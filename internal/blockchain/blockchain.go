package blockchain

import (
	"strings"

	"github.com/pkg/errors"
)

// BCType 表示账本的区块链类型。
type BCType int

const (
	// Fabric 表示 Hyperledger Fabric 账本
	Fabric BCType = iota
)

func (t BCType) String() string {
	switch t {
	case Fabric:
		return "fabric"
	default:
		return "unknown"
	}
}

// NewBCTypeFromString 从字符串解析账本类型。
func NewBCTypeFromString(str string) (BCType, error) {
	switch strings.ToLower(str) {
	case "fabric":
		return Fabric, nil
	default:
		return -1, errors.Errorf("不支持的区块链类型 '%v'", str)
	}
}
