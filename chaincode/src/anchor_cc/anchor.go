package main

import (
	"encoding/json"
	"fmt"

	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/12Omega/blockchain-doc-sub002/pkg/models/anchordata"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/peer"
)

func (ac *AnchorCC) createAnchor(stub shim.ChaincodeStubInterface, args []string) peer.Response {
	// 检查参数数量
	lenArgs := len(args)
	if lenArgs < 1 || lenArgs > 2 {
		return shim.Error("参数数量不正确。应为 1 或 2 个")
	}

	// 解析第 0 个参数为 anchordata.AnchorRecord
	record := anchordata.AnchorRecord{}
	if err := json.Unmarshal([]byte(args[0]), &record); err != nil {
		return shim.Error(fmt.Sprintf("无法解析参数中的 JSON 对象: %v", err))
	}

	// 若第 1 个参数有指定，则解析为 eventID
	var eventID string
	if lenArgs == 2 {
		eventID = args[1]
	}

	if record.DocumentHash == "" {
		return shim.Error("锚定记录缺少文档哈希")
	}

	// 检查该哈希是否已被锚定
	dbKey := getKeyForAnchor(record.DocumentHash)
	dbVal, err := stub.GetState(dbKey)
	if err != nil {
		return shim.Error(fmt.Sprintf("无法确定文档哈希可用性: %v", err))
	}

	if len(dbVal) != 0 {
		return shim.Error(errorcode.CodeDuplicate)
	}

	// 获取时间戳
	timestamp, err := getTimeFromStub(stub)
	if err != nil {
		return shim.Error(fmt.Sprintf("无法获得时间戳: %v", err))
	}

	// 准备存储形态
	anchorStored := anchordata.AnchorRecordStored{
		DocumentHash: record.DocumentHash,
		CID:          record.CID,
		Provider:     record.Provider,
		OwnerID:      record.OwnerID,
		IssuerID:     record.IssuerID,
		Viewers:      []string{},
		Active:       true,
		AnchoredAt:   timestamp,
	}

	anchorStoredBytes, err := json.Marshal(anchorStored)
	if err != nil {
		return shim.Error(fmt.Sprintf("无法序列化锚定记录: %v", err))
	}

	// 写入数据库
	if err := stub.PutState(dbKey, anchorStoredBytes); err != nil {
		return shim.Error(fmt.Sprintf("无法写入锚定记录: %v", err))
	}

	// 发事件
	if eventID != "" {
		if err := stub.SetEvent(eventID, nil); err != nil {
			return shim.Error(fmt.Sprintf("无法生成事件 '%v': %v", eventID, err))
		}
	}

	return shim.Success([]byte(stub.GetTxID()))
}

func (ac *AnchorCC) getAnchor(stub shim.ChaincodeStubInterface, args []string) peer.Response {
	// 检查参数数量
	if len(args) != 1 {
		return shim.Error("参数数量不正确。应为 1 个")
	}

	documentHash := args[0]

	anchorStoredBytes, err := stub.GetState(getKeyForAnchor(documentHash))
	if err != nil {
		return shim.Error(fmt.Sprintf("无法读取锚定记录: %v", err))
	}

	if len(anchorStoredBytes) == 0 {
		return shim.Error(errorcode.CodeNotFound)
	}

	return shim.Success(anchorStoredBytes)
}

func (ac *AnchorCC) grantViewer(stub shim.ChaincodeStubInterface, args []string) peer.Response {
	// 检查参数数量
	if len(args) != 2 {
		return shim.Error("参数数量不正确。应为 2 个")
	}

	documentHash, viewerID := args[0], args[1]
	if viewerID == "" {
		return shim.Error("查看者 ID 不能为空")
	}

	anchorStored, resp := ac.loadAnchor(stub, documentHash)
	if resp != nil {
		return *resp
	}

	// 重复授权不报错，保持幂等
	if !anchorStored.HasViewer(viewerID) {
		anchorStored.Viewers = append(anchorStored.Viewers, viewerID)
		if resp := ac.saveAnchor(stub, anchorStored); resp != nil {
			return *resp
		}
	}

	return shim.Success([]byte(stub.GetTxID()))
}

func (ac *AnchorCC) revokeViewer(stub shim.ChaincodeStubInterface, args []string) peer.Response {
	// 检查参数数量
	if len(args) != 2 {
		return shim.Error("参数数量不正确。应为 2 个")
	}

	documentHash, viewerID := args[0], args[1]

	anchorStored, resp := ac.loadAnchor(stub, documentHash)
	if resp != nil {
		return *resp
	}

	viewers := make([]string, 0, len(anchorStored.Viewers))
	for _, viewer := range anchorStored.Viewers {
		if viewer != viewerID {
			viewers = append(viewers, viewer)
		}
	}
	anchorStored.Viewers = viewers

	if resp := ac.saveAnchor(stub, anchorStored); resp != nil {
		return *resp
	}

	return shim.Success([]byte(stub.GetTxID()))
}

func (ac *AnchorCC) deactivateAnchor(stub shim.ChaincodeStubInterface, args []string) peer.Response {
	// 检查参数数量
	if len(args) != 1 {
		return shim.Error("参数数量不正确。应为 1 个")
	}

	anchorStored, resp := ac.loadAnchor(stub, args[0])
	if resp != nil {
		return *resp
	}

	anchorStored.Active = false

	if resp := ac.saveAnchor(stub, anchorStored); resp != nil {
		return *resp
	}

	return shim.Success([]byte(stub.GetTxID()))
}

// loadAnchor 读取并解析锚定记录。出错时返回待回复的 Response。
func (ac *AnchorCC) loadAnchor(stub shim.ChaincodeStubInterface, documentHash string) (*anchordata.AnchorRecordStored, *peer.Response) {
	anchorStoredBytes, err := stub.GetState(getKeyForAnchor(documentHash))
	if err != nil {
		resp := shim.Error(fmt.Sprintf("无法读取锚定记录: %v", err))
		return nil, &resp
	}

	if len(anchorStoredBytes) == 0 {
		resp := shim.Error(errorcode.CodeNotFound)
		return nil, &resp
	}

	anchorStored := anchordata.AnchorRecordStored{}
	if err := json.Unmarshal(anchorStoredBytes, &anchorStored); err != nil {
		resp := shim.Error(fmt.Sprintf("无法解析锚定记录: %v", err))
		return nil, &resp
	}

	return &anchorStored, nil
}

func (ac *AnchorCC) saveAnchor(stub shim.ChaincodeStubInterface, anchorStored *anchordata.AnchorRecordStored) *peer.Response {
	anchorStoredBytes, err := json.Marshal(anchorStored)
	if err != nil {
		resp := shim.Error(fmt.Sprintf("无法序列化锚定记录: %v", err))
		return &resp
	}

	if err := stub.PutState(getKeyForAnchor(anchorStored.DocumentHash), anchorStoredBytes); err != nil {
		resp := shim.Error(fmt.Sprintf("无法写入锚定记录: %v", err))
		return &resp
	}

	return nil
}
