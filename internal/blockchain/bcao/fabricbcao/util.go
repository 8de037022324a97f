package fabricbcao

import (
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/timingutils"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/channel"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/ledger"
	"github.com/hyperledger/fabric-sdk-go/pkg/common/providers/fab"
)

func executeChannelRequestWithTimer(channelClient *channel.Client, channelRequest *channel.Request, timerMsg string) (resp channel.Response, err error) {
	defer timingutils.GetDeferrableTimingLogger(timerMsg)()

	resp, err = channelClient.Execute(*channelRequest)
	return
}

func getBlockHeightFromTxID(ledgerClient *ledger.Client, txID fab.TransactionID) (uint64, error) {
	block, err := ledgerClient.QueryBlockByTxID(txID)
	if err != nil {
		return 0, err
	}

	return block.GetHeader().GetNumber(), nil
}
