package cipherutils

import (
	"testing"

	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSealOpenRoundTrip(t *testing.T) {
	for _, suite := range []Suite{SuiteAES256GCM, SuiteSM4GCM} {
		dataKey, err := GenerateDataKey(suite)
		if isNoError := assert.NoError(t, err); !isNoError {
			t.FailNow()
		}

		documentBytes := []byte("Document for test")
		envelope, err := SealBytes(suite, dataKey, documentBytes)
		if isNoError := assert.NoError(t, err); !isNoError {
			t.FailNow()
		}

		decryptedBytes, err := OpenBytes(dataKey, envelope)
		if isNoError := assert.NoError(t, err); !isNoError {
			t.FailNow()
		}
		if isEqual := assert.Equal(t, documentBytes, decryptedBytes); !isEqual {
			t.FailNow()
		}
	}
}

func TestOpenRejectsTamperedEnvelope(t *testing.T) {
	dataKey, err := GenerateDataKey(SuiteAES256GCM)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	envelope, err := SealBytes(SuiteAES256GCM, dataKey, []byte("Document for test"))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	// 翻转密文中的一个比特
	envelope[len(envelope)-1] ^= 0x01

	_, err = OpenBytes(dataKey, envelope)
	assert.Equal(t, errorcode.ErrorAuthFailure, errors.Cause(err))
}

func TestOpenRejectsWrongKey(t *testing.T) {
	dataKey, _ := GenerateDataKey(SuiteAES256GCM)
	otherKey, _ := GenerateDataKey(SuiteAES256GCM)

	envelope, err := SealBytes(SuiteAES256GCM, dataKey, []byte("Document for test"))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	_, err = OpenBytes(otherKey, envelope)
	assert.Equal(t, errorcode.ErrorAuthFailure, errors.Cause(err))
}

func TestSealedDataKeyContextSeparation(t *testing.T) {
	masterKey, _ := GenerateDataKey(SuiteAES256GCM)
	dataKey, _ := GenerateDataKey(SuiteAES256GCM)

	sealedKey, err := SealDataKey(SuiteAES256GCM, masterKey, dataKey)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	opened, err := OpenDataKey(masterKey, sealedKey)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}
	assert.Equal(t, dataKey, opened)

	// 封存的数据密钥不能当作文档信封解开（AEAD 上下文不同）
	_, err = OpenBytes(masterKey, sealedKey)
	assert.Equal(t, errorcode.ErrorAuthFailure, errors.Cause(err))
}

func TestDataKeysAreUniquePerDocument(t *testing.T) {
	first, err := GenerateDataKey(SuiteAES256GCM)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	second, err := GenerateDataKey(SuiteAES256GCM)
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 32)
	assert.Len(t, second, 32)
}

func TestNewSuiteFromString(t *testing.T) {
	suite, err := NewSuiteFromString("")
	assert.NoError(t, err)
	assert.Equal(t, SuiteAES256GCM, suite)

	suite, err = NewSuiteFromString("sm4-gcm")
	assert.NoError(t, err)
	assert.Equal(t, SuiteSM4GCM, suite)

	_, err = NewSuiteFromString("rot13")
	assert.Error(t, err)
}
