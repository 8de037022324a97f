// This package contains the envelope encryption helpers used within the
// entire app. Every document gets a fresh data key from a cryptographically
// secure source; the payload is sealed with an AEAD suite (AES-256-GCM by
// default, SM4-GCM as the alternative), and the data key itself is sealed
// under the service master key in a distinct AEAD context.
//
// The sealed output is a compact binary envelope:
//
//	[1 byte suite][12 byte nonce][ciphertext || auth tag]
//
// A nonce is drawn fresh for every seal, so it never repeats under a given
// data key, and data keys are never reused across documents.
package cipherutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	"github.com/tjfoc/gmsm/sm4"
)

// Suite identifies the AEAD suite used to seal an envelope.
type Suite byte

const (
	// SuiteAES256GCM 表示 AES-256-GCM 套件
	SuiteAES256GCM Suite = 0x01
	// SuiteSM4GCM 表示 SM4-GCM 套件
	SuiteSM4GCM Suite = 0x02
)

func (s Suite) String() string {
	switch s {
	case SuiteAES256GCM:
		return "aes-256-gcm"
	case SuiteSM4GCM:
		return "sm4-gcm"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// NewSuiteFromString 从配置字符串获得 Suite。
func NewSuiteFromString(s string) (Suite, error) {
	switch s {
	case "", "aes-256-gcm":
		return SuiteAES256GCM, nil
	case "sm4-gcm":
		return SuiteSM4GCM, nil
	default:
		return 0, fmt.Errorf("不支持的加密套件 '%v'", s)
	}
}

// KeySize 返回套件要求的对称密钥长度。
func (s Suite) KeySize() int {
	if s == SuiteSM4GCM {
		return 16
	}
	return 32
}

const nonceSize = 12

// The data key is sealed in its own AEAD context so that a sealed key can
// never be fed back as a document envelope (and vice versa).
var dataKeyAAD = []byte("sealed-data-key/v1")

// GenerateDataKey draws a fresh per-document key for the suite.
func GenerateDataKey(suite Suite) ([]byte, error) {
	key := make([]byte, suite.KeySize())
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errors.Wrap(err, "无法生成文档数据密钥")
	}

	return key, nil
}

func newGCM(suite Suite, key []byte) (cipher.AEAD, error) {
	if len(key) != suite.KeySize() {
		return nil, fmt.Errorf("密钥长度不正确，套件 %v 应为 %v 字节", suite, suite.KeySize())
	}

	var block cipher.Block
	var err error
	switch suite {
	case SuiteAES256GCM:
		block, err = aes.NewCipher(key)
	case SuiteSM4GCM:
		block, err = sm4.NewCipher(key)
	default:
		return nil, fmt.Errorf("不支持的加密套件 %v", suite)
	}
	if err != nil {
		return nil, errors.Wrap(err, "无法创建加密块")
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, errors.Wrap(err, "无法创建 GCM 实例")
	}

	return aead, nil
}

func sealWithAAD(suite Suite, key, plaintext, aad []byte) ([]byte, error) {
	aead, err := newGCM(suite, key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "无法生成随机 nonce")
	}

	envelope := make([]byte, 0, 1+nonceSize+len(plaintext)+aead.Overhead())
	envelope = append(envelope, byte(suite))
	envelope = append(envelope, nonce...)
	envelope = aead.Seal(envelope, nonce, plaintext, aad)

	return envelope, nil
}

func openWithAAD(key, envelope, aad []byte) ([]byte, error) {
	if len(envelope) < 1+nonceSize {
		return nil, errors.Wrap(errorcode.ErrorAuthFailure, "密文信封长度太短")
	}

	suite := Suite(envelope[0])
	aead, err := newGCM(suite, key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := envelope[1:1+nonceSize], envelope[1+nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		// 认证标签不匹配：内容被篡改或密钥不正确
		return nil, errors.Wrap(errorcode.ErrorAuthFailure, "密文认证失败")
	}

	return plaintext, nil
}

// SealBytes 使用文档数据密钥封存明文，返回二进制信封。
func SealBytes(suite Suite, dataKey, plaintext []byte) ([]byte, error) {
	return sealWithAAD(suite, dataKey, plaintext, nil)
}

// OpenBytes 解开文档信封。任何篡改或密钥不匹配都会得到 ErrorAuthFailure。
func OpenBytes(dataKey, envelope []byte) ([]byte, error) {
	return openWithAAD(dataKey, envelope, nil)
}

// SealDataKey 用服务主密钥封存文档数据密钥。
func SealDataKey(suite Suite, masterKey, dataKey []byte) ([]byte, error) {
	return sealWithAAD(suite, masterKey, dataKey, dataKeyAAD)
}

// OpenDataKey 用服务主密钥解开封存的文档数据密钥。
func OpenDataKey(masterKey, sealedKey []byte) ([]byte, error) {
	return openWithAAD(masterKey, sealedKey, dataKeyAAD)
}
