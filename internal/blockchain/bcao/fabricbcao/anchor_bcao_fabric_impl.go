package fabricbcao

import (
	"encoding/json"

	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/bcao"
	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/chaincodectx"
	"github.com/12Omega/blockchain-doc-sub002/pkg/models/anchordata"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/channel"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type AnchorBCAOFabricImpl struct {
	ctx *chaincodectx.FabricChaincodeCtx
}

func NewAnchorBCAOFabricImpl(ctx *chaincodectx.FabricChaincodeCtx) *AnchorBCAOFabricImpl {
	return &AnchorBCAOFabricImpl{
		ctx: ctx,
	}
}

func (o *AnchorBCAOFabricImpl) CreateAnchor(record *anchordata.AnchorRecord, eventID ...string) (*bcao.TransactionCreationInfo, error) {
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrap(err, "无法序列化链码参数")
	}

	chaincodeFcn := "createAnchor"
	chaincodeArgs := [][]byte{recordBytes}
	if len(eventID) != 0 {
		chaincodeArgs = append(chaincodeArgs, []byte(eventID[0]))
	}
	channelReq := channel.Request{
		ChaincodeID: o.ctx.ChaincodeID,
		Fcn:         chaincodeFcn,
		Args:        chaincodeArgs,
	}

	resp, err := executeChannelRequestWithTimer(o.ctx.ChannelClient, &channelReq, "链上锚定文档")
	if err != nil {
		return nil, bcao.GetClassifiedError(chaincodeFcn, err)
	}

	creationInfo := &bcao.TransactionCreationInfo{
		TransactionID: string(resp.TransactionID),
		ContractID:    o.ctx.ChaincodeID,
	}

	// 区块高度仅用于回执展示，查询失败不影响锚定本身
	if o.ctx.LedgerClient != nil {
		blockHeight, err := getBlockHeightFromTxID(o.ctx.LedgerClient, resp.TransactionID)
		if err != nil {
			log.WithError(err).Debug("无法查询交易所在区块高度")
		} else {
			creationInfo.BlockHeight = blockHeight
		}
	}

	return creationInfo, nil
}

func (o *AnchorBCAOFabricImpl) GetAnchor(documentHash string) (*anchordata.AnchorRecordStored, error) {
	chaincodeFcn := "getAnchor"
	channelReq := channel.Request{
		ChaincodeID: o.ctx.ChaincodeID,
		Fcn:         chaincodeFcn,
		Args:        [][]byte{[]byte(documentHash)},
	}

	resp, err := o.ctx.ChannelClient.Query(channelReq)
	if err != nil {
		return nil, bcao.GetClassifiedError(chaincodeFcn, err)
	}

	var anchorStored anchordata.AnchorRecordStored
	if err = json.Unmarshal(resp.Payload, &anchorStored); err != nil {
		return nil, errors.Wrap(err, "获取的锚定记录不合法")
	}

	return &anchorStored, nil
}

func (o *AnchorBCAOFabricImpl) GrantViewer(documentHash string, viewerID string) (string, error) {
	chaincodeFcn := "grantViewer"
	channelReq := channel.Request{
		ChaincodeID: o.ctx.ChaincodeID,
		Fcn:         chaincodeFcn,
		Args:        [][]byte{[]byte(documentHash), []byte(viewerID)},
	}

	resp, err := o.ctx.ChannelClient.Execute(channelReq)
	if err != nil {
		return "", bcao.GetClassifiedError(chaincodeFcn, err)
	}

	return string(resp.TransactionID), nil
}

func (o *AnchorBCAOFabricImpl) RevokeViewer(documentHash string, viewerID string) (string, error) {
	chaincodeFcn := "revokeViewer"
	channelReq := channel.Request{
		ChaincodeID: o.ctx.ChaincodeID,
		Fcn:         chaincodeFcn,
		Args:        [][]byte{[]byte(documentHash), []byte(viewerID)},
	}

	resp, err := o.ctx.ChannelClient.Execute(channelReq)
	if err != nil {
		return "", bcao.GetClassifiedError(chaincodeFcn, err)
	}

	return string(resp.TransactionID), nil
}

func (o *AnchorBCAOFabricImpl) DeactivateAnchor(documentHash string) (string, error) {
	chaincodeFcn := "deactivateAnchor"
	channelReq := channel.Request{
		ChaincodeID: o.ctx.ChaincodeID,
		Fcn:         chaincodeFcn,
		Args:        [][]byte{[]byte(documentHash)},
	}

	resp, err := o.ctx.ChannelClient.Execute(channelReq)
	if err != nil {
		return "", bcao.GetClassifiedError(chaincodeFcn, err)
	}

	return string(resp.TransactionID), nil
}
