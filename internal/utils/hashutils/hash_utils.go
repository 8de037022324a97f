// Package hashutils computes the canonical content fingerprint used across
// the app: SHA-256 rendered as "0x" followed by 64 lowercase hex characters.
// All functions are pure and safe for concurrent use.
package hashutils

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// HashPrefix is prepended to the hex rendering of every digest.
const HashPrefix = "0x"

// HashBytes 计算字节切片的 SHA-256 摘要。
func HashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// HashReader 以流式方式计算 reader 内容的 SHA-256 摘要。
// 仅当字节源中途出错时返回错误。
func HashReader(r io.Reader) (digest [32]byte, err error) {
	h := sha256.New()
	if _, err = io.Copy(h, r); err != nil {
		err = errors.Wrap(err, "无法读取字节流以计算哈希")
		return
	}

	copy(digest[:], h.Sum(nil))
	return
}

// FormatDigest 将 32 字节摘要渲染为 0x + 64 位小写十六进制。
func FormatDigest(digest [32]byte) string {
	return HashPrefix + hex.EncodeToString(digest[:])
}

// HashBytesToString 计算字节切片的规范哈希字符串。
func HashBytesToString(b []byte) string {
	return FormatDigest(HashBytes(b))
}

// ParseHashString 解析规范哈希字符串为 32 字节摘要。接受带或不带 0x 前缀的形式。
func ParseHashString(s string) (digest [32]byte, err error) {
	trimmed := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), HashPrefix)
	if len(trimmed) != 64 {
		err = fmt.Errorf("哈希字符串长度不正确，应为 64 位十六进制字符，得到 %v 位", len(trimmed))
		return
	}

	digestBytes, err := hex.DecodeString(trimmed)
	if err != nil {
		err = errors.Wrap(err, "哈希字符串不是合法的十六进制")
		return
	}

	copy(digest[:], digestBytes)
	return
}

// IsValidHashString 判断字符串是否为规范哈希形式。
func IsValidHashString(s string) bool {
	_, err := ParseHashString(s)
	return err == nil
}

// VerifyIntegrity 以常数时间比较字节内容的哈希与期望哈希是否一致。
func VerifyIntegrity(b []byte, expectedHash string) bool {
	expected, err := ParseHashString(expectedHash)
	if err != nil {
		return false
	}

	actual := HashBytes(b)
	return subtle.ConstantTimeCompare(actual[:], expected[:]) == 1
}
