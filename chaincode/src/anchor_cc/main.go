package main

import (
	"fmt"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/peer"
)

// AnchorCC 实现 Chaincode 接口。它负责文档内容哈希的锚定记录在区块链上的存取。
type AnchorCC struct{}

// Init 用于初始化链码。
func (ac *AnchorCC) Init(stub shim.ChaincodeStubInterface) peer.Response {
	args := stub.GetArgs()
	if len(args) != 0 {
		return shim.Error("初始化不接收参数")
	}

	return shim.Success(nil)
}

// Invoke 用于分流链码调用。
func (ac *AnchorCC) Invoke(stub shim.ChaincodeStubInterface) peer.Response {
	// 解出具体函数名与参数
	funcName, args := stub.GetFunctionAndParameters()

	switch funcName {
	// anchor.go
	case "createAnchor":
		return ac.createAnchor(stub, args)
	case "getAnchor":
		return ac.getAnchor(stub, args)
	case "grantViewer":
		return ac.grantViewer(stub, args)
	case "revokeViewer":
		return ac.revokeViewer(stub, args)
	case "deactivateAnchor":
		return ac.deactivateAnchor(stub, args)
	}

	return shim.Error("未知的链码函数调用")
}

func main() {
	err := shim.Start(new(AnchorCC))
	if err != nil {
		fmt.Printf("无法启动 AnchorCC: %s", err)
	}
}
