package main

import (
	"encoding/json"
	"testing"

	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/12Omega/blockchain-doc-sub002/pkg/models/anchordata"
	"github.com/google/uuid"
)

const (
	sampleHash1 = "0x9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	sampleHash2 = "0x60303ae22b998861bce3b28f33eec1be758a213c86c93c076dbe9f558c11c752"
)

func getSampleAnchorRecord1() anchordata.AnchorRecord {
	return anchordata.AnchorRecord{
		DocumentHash: sampleHash1,
		CID:          "QmSampleCid1",
		Provider:     "ipfs-primary",
		OwnerID:      "owner-1",
		IssuerID:     "issuer-1",
	}
}

func TestCreateAnchorWithNormalRecord(t *testing.T) {
	targetFunction := "createAnchor"

	stub := createMockStub("TestCreateAnchorWithNormalRecord")
	_ = initChaincode(stub, [][]byte{})

	// Prepare the arg
	sampleRecord := getSampleAnchorRecord1()
	recordBytes, _ := json.Marshal(sampleRecord)

	// Invoke with the sample record and expect the response status to be OK
	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte(targetFunction), recordBytes})
	expectResponseStatusOK(t, &resp)

	// Check if the stored record can be parsed
	anchorStoredBytes := stub.State[getKeyForAnchor(sampleRecord.DocumentHash)]
	anchorStored := anchordata.AnchorRecordStored{}
	if err := json.Unmarshal(anchorStoredBytes, &anchorStored); err != nil {
		testLogger.Infof("Cannot read stored anchor record: %v\n", err)
		t.FailNow()
	}

	// Check if the stored record is correct
	expectEqual(t, sampleRecord.DocumentHash, anchorStored.DocumentHash)
	expectEqual(t, sampleRecord.CID, anchorStored.CID)
	expectEqual(t, sampleRecord.Provider, anchorStored.Provider)
	expectEqual(t, sampleRecord.OwnerID, anchorStored.OwnerID)
	expectEqual(t, sampleRecord.IssuerID, anchorStored.IssuerID)
	expectEqual(t, true, anchorStored.Active)
	expectEqual(t, 0, len(anchorStored.Viewers))
}

func TestCreateAnchorWithDuplicateHashes(t *testing.T) {
	targetFunction := "createAnchor"

	stub := createMockStub("TestCreateAnchorWithDuplicateHashes")
	_ = initChaincode(stub, [][]byte{})

	recordBytes, _ := json.Marshal(getSampleAnchorRecord1())

	// Invoke with the record and expect the response status to be OK
	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte(targetFunction), recordBytes})
	expectResponseStatusOK(t, &resp)

	// Invoke again with the same hash and expect an error ending with the duplicate code
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte(targetFunction), recordBytes})
	expectResponseStatusERROR(t, &resp)
	expectStringEndsWith(t, errorcode.CodeDuplicate, resp.Message)
}

func TestCreateAnchorWithExcessiveParameters(t *testing.T) {
	targetFunction := "createAnchor"

	stub := createMockStub("TestCreateAnchorWithExcessiveParameters")
	_ = initChaincode(stub, [][]byte{})

	recordBytes, _ := json.Marshal(getSampleAnchorRecord1())

	// Invoke with 3 args and expect the response status to be ERROR
	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte(targetFunction), recordBytes, []byte("event1"), []byte("excessive")})
	expectResponseStatusERROR(t, &resp)
}

func TestGetAnchorWithNormalRecord(t *testing.T) {
	stub := createMockStub("TestGetAnchorWithNormalRecord")
	_ = initChaincode(stub, [][]byte{})

	sampleRecord := getSampleAnchorRecord1()
	recordBytes, _ := json.Marshal(sampleRecord)

	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("createAnchor"), recordBytes})
	expectResponseStatusOK(t, &resp)

	// Query the anchor and expect the stored form back
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("getAnchor"), []byte(sampleRecord.DocumentHash)})
	expectResponseStatusOK(t, &resp)

	anchorStored := anchordata.AnchorRecordStored{}
	if err := json.Unmarshal(resp.Payload, &anchorStored); err != nil {
		testLogger.Infof("Cannot parse the query payload: %v\n", err)
		t.FailNow()
	}

	expectEqual(t, sampleRecord.DocumentHash, anchorStored.DocumentHash)
	expectEqual(t, sampleRecord.CID, anchorStored.CID)
}

func TestGetAnchorWithNonExistentHash(t *testing.T) {
	stub := createMockStub("TestGetAnchorWithNonExistentHash")
	_ = initChaincode(stub, [][]byte{})

	// Query a hash that was never anchored and expect an error ending with the not-found code
	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("getAnchor"), []byte(sampleHash2)})
	expectResponseStatusERROR(t, &resp)
	expectStringEndsWith(t, errorcode.CodeNotFound, resp.Message)
}

func TestGrantAndRevokeViewer(t *testing.T) {
	stub := createMockStub("TestGrantAndRevokeViewer")
	_ = initChaincode(stub, [][]byte{})

	sampleRecord := getSampleAnchorRecord1()
	recordBytes, _ := json.Marshal(sampleRecord)

	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("createAnchor"), recordBytes})
	expectResponseStatusOK(t, &resp)

	// Grant a viewer and expect it to appear in the stored record
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("grantViewer"), []byte(sampleRecord.DocumentHash), []byte("viewer-1")})
	expectResponseStatusOK(t, &resp)

	// Granting the same viewer again should keep the list unchanged
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("grantViewer"), []byte(sampleRecord.DocumentHash), []byte("viewer-1")})
	expectResponseStatusOK(t, &resp)

	anchorStored := anchordata.AnchorRecordStored{}
	_ = json.Unmarshal(stub.State[getKeyForAnchor(sampleRecord.DocumentHash)], &anchorStored)
	expectEqual(t, []string{"viewer-1"}, anchorStored.Viewers)

	// Revoke the viewer and expect the list to be empty again
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("revokeViewer"), []byte(sampleRecord.DocumentHash), []byte("viewer-1")})
	expectResponseStatusOK(t, &resp)

	_ = json.Unmarshal(stub.State[getKeyForAnchor(sampleRecord.DocumentHash)], &anchorStored)
	expectEqual(t, 0, len(anchorStored.Viewers))
}

func TestGrantViewerWithNonExistentHash(t *testing.T) {
	stub := createMockStub("TestGrantViewerWithNonExistentHash")
	_ = initChaincode(stub, [][]byte{})

	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("grantViewer"), []byte(sampleHash2), []byte("viewer-1")})
	expectResponseStatusERROR(t, &resp)
	expectStringEndsWith(t, errorcode.CodeNotFound, resp.Message)
}

func TestDeactivateAnchor(t *testing.T) {
	stub := createMockStub("TestDeactivateAnchor")
	_ = initChaincode(stub, [][]byte{})

	sampleRecord := getSampleAnchorRecord1()
	recordBytes, _ := json.Marshal(sampleRecord)

	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("createAnchor"), recordBytes})
	expectResponseStatusOK(t, &resp)

	// Deactivate the anchor and expect the stored record to be inactive
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("deactivateAnchor"), []byte(sampleRecord.DocumentHash)})
	expectResponseStatusOK(t, &resp)

	anchorStored := anchordata.AnchorRecordStored{}
	_ = json.Unmarshal(stub.State[getKeyForAnchor(sampleRecord.DocumentHash)], &anchorStored)
	expectEqual(t, false, anchorStored.Active)

	// The record stays readable after deactivation
	resp = stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("getAnchor"), []byte(sampleRecord.DocumentHash)})
	expectResponseStatusOK(t, &resp)
}

func TestInvokeWithUnknownFunction(t *testing.T) {
	stub := createMockStub("TestInvokeWithUnknownFunction")
	_ = initChaincode(stub, [][]byte{})

	resp := stub.MockInvoke(uuid.NewString(), [][]byte{[]byte("unknownFunction")})
	expectResponseStatusERROR(t, &resp)
}
