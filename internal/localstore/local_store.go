// Package localstore is the content-addressed fallback store on the local
// filesystem. Payloads are written as "<timestamp>_<sanitized filename>"
// with a sidecar "<name>.meta.json" describing the entry; the pseudo-CID is
// "local_" followed by the first 32 hex characters of the payload SHA-256,
// so later lookups can route here by prefix.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/utils/hashutils"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/disk"
)

// CIDPrefix marks CIDs served by the local store.
const CIDPrefix = "local_"

const metaSuffix = ".meta.json"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._\-]`)

// LocalStore 表示本地回退存储目录。
type LocalStore struct {
	root string
}

// PutResult 表示一次本地写入的结果。
type PutResult struct {
	CID       string `json:"cid"`
	Size      int64  `json:"size"`
	LocalPath string `json:"localPath"`
}

// entryMeta 为 sidecar 元数据文件的内容。
type entryMeta struct {
	OriginalFilename string            `json:"original_filename"`
	LocalFilename    string            `json:"local_filename"`
	LocalCID         string            `json:"local_cid"`
	Size             int64             `json:"size"`
	UploadedAt       time.Time         `json:"uploaded_at"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// New 创建（或打开）root 目录下的本地存储。
func New(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(errorcode.ErrorStorage, "无法创建本地存储目录 %v: %v", root, err)
	}

	return &LocalStore{root: root}, nil
}

// Root 返回存储根目录。
func (s *LocalStore) Root() string {
	return s.root
}

// DeriveCID 由内容字节导出本地伪 CID。
func DeriveCID(b []byte) string {
	digest := hashutils.HashBytes(b)
	return CIDPrefix + hashutils.FormatDigest(digest)[2:34]
}

// sanitizeFilename 去除路径穿越字符，只保留安全的文件名成分。
func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, "..", "_")
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = "unnamed"
	}

	return base
}

// Put 持久化内容字节与 sidecar 元数据，返回本地伪 CID。
func (s *LocalStore) Put(b []byte, filename string, metadata map[string]string) (*PutResult, error) {
	cid := DeriveCID(b)
	now := time.Now()

	localFilename := fmt.Sprintf("%v_%v", now.UnixNano(), sanitizeFilename(filename))
	localPath := filepath.Join(s.root, localFilename)

	if err := os.WriteFile(localPath, b, 0o644); err != nil {
		return nil, errors.Wrapf(errorcode.ErrorStorage, "无法写入本地文件 %v: %v", localPath, err)
	}

	meta := entryMeta{
		OriginalFilename: filename,
		LocalFilename:    localFilename,
		LocalCID:         cid,
		Size:             int64(len(b)),
		UploadedAt:       now,
		Metadata:         metadata,
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, errors.Wrap(err, "无法序列化 sidecar 元数据")
	}

	if err := os.WriteFile(localPath+metaSuffix, metaBytes, 0o644); err != nil {
		return nil, errors.Wrapf(errorcode.ErrorStorage, "无法写入 sidecar 元数据 %v: %v", localPath+metaSuffix, err)
	}

	return &PutResult{CID: cid, Size: int64(len(b)), LocalPath: localPath}, nil
}

// Get 按本地伪 CID 检索内容字节。扫描 sidecar 元数据定位条目。
func (s *LocalStore) Get(cid string) ([]byte, error) {
	metaPaths, err := filepath.Glob(filepath.Join(s.root, "*"+metaSuffix))
	if err != nil {
		return nil, errors.Wrapf(errorcode.ErrorStorage, "无法扫描本地存储目录: %v", err)
	}

	for _, metaPath := range metaPaths {
		metaBytes, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta entryMeta
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			continue
		}

		if meta.LocalCID != cid {
			continue
		}

		contentBytes, err := os.ReadFile(filepath.Join(s.root, meta.LocalFilename))
		if err != nil {
			return nil, errors.Wrapf(errorcode.ErrorStorage, "无法读取本地文件 %v: %v", meta.LocalFilename, err)
		}

		return contentBytes, nil
	}

	return nil, errors.Wrapf(errorcode.ErrorNotFound, "本地存储中不存在 CID '%v'", cid)
}

// HealthInfo 表示本地存储的健康状况。
type HealthInfo struct {
	FreeBytes   uint64  `json:"freeBytes"`
	TotalBytes  uint64  `json:"totalBytes"`
	UsedPercent float64 `json:"usedPercent"`
}

// Health 检查存储目录所在卷的可用空间。
func (s *LocalStore) Health() (*HealthInfo, error) {
	usage, err := disk.Usage(s.root)
	if err != nil {
		return nil, errors.Wrapf(errorcode.ErrorStorage, "无法获取磁盘用量: %v", err)
	}

	return &HealthInfo{
		FreeBytes:   usage.Free,
		TotalBytes:  usage.Total,
		UsedPercent: usage.UsedPercent,
	}, nil
}
