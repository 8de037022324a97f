package appinit

import (
	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/chaincodectx"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/channel"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/event"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/ledger"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	errors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SetupSDK creates a Fabric SDK instance from the specified config file.
//
// Parameters:
//   the path to the config file
//
// Returns:
//   the Fabric SDK instance. The caller is responsible for closing it.
func SetupSDK(configFilePath string) (*fabsdk.FabricSDK, error) {
	configProvider := config.FromFile(configFilePath)
	sdk, err := fabsdk.New(configProvider)
	if err != nil {
		return nil, errors.Wrap(err, "初始化 Fabric SDK 失败")
	}

	return sdk, nil
}

// NewChaincodeCtx creates the channel, event and ledger clients on the
// specified channel for the specified user and bundles them with the anchor
// chaincode ID into a chaincode context.
//
// Parameters:
//   initialized Fabric SDK instance
//   channel ID
//   chaincode ID
//   organization name
//   user ID
//
// Returns:
//   the chaincode context for the BCAO layer
func NewChaincodeCtx(sdk *fabsdk.FabricSDK, channelID, chaincodeID, orgName, userID string) (*chaincodectx.FabricChaincodeCtx, error) {
	clientCtx := sdk.ChannelContext(channelID, fabsdk.WithUser(userID), fabsdk.WithOrg(orgName))

	channelClient, err := channel.New(clientCtx)
	if err != nil {
		return nil, errors.Wrapf(err, "无法在通道 '%v' 上为 %v@%v 创建通道客户端", channelID, userID, orgName)
	}

	eventClient, err := event.New(clientCtx, event.WithBlockEvents())
	if err != nil {
		return nil, errors.Wrapf(err, "无法在通道 '%v' 上为 %v@%v 创建事件客户端", channelID, userID, orgName)
	}

	ledgerClient, err := ledger.New(clientCtx)
	if err != nil {
		return nil, errors.Wrapf(err, "无法在通道 '%v' 上为 %v@%v 创建账本客户端", channelID, userID, orgName)
	}

	log.Printf("已在通道 '%v' 上为 %v@%v 创建链码客户端。", channelID, userID, orgName)

	return &chaincodectx.FabricChaincodeCtx{
		ChannelID:     channelID,
		OrgName:       orgName,
		Username:      userID,
		ChaincodeID:   chaincodeID,
		ChannelClient: channelClient,
		EventClient:   eventClient,
		LedgerClient:  ledgerClient,
	}, nil
}
