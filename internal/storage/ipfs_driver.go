package storage

import (
	"bytes"
	"context"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/pkg/errors"
)

const ipfsRequestTimeout = 60 * time.Second

// IPFSProvider 通过 IPFS 节点的 HTTP API 上传内容。
type IPFSProvider struct {
	name     string
	priority int
	sh       *shell.Shell
}

// NewIPFSProvider 创建一个 IPFS 节点驱动。endpoint 为节点 API 地址。
// 超时在这里一次性设定：shell 被并发的上传与探测共享，不能在调用期改动。
func NewIPFSProvider(name string, priority int, endpoint string) *IPFSProvider {
	sh := shell.NewShell(endpoint)
	sh.SetTimeout(ipfsRequestTimeout)

	return &IPFSProvider{
		name:     name,
		priority: priority,
		sh:       sh,
	}
}

// Name 实现 Provider 接口。
func (p *IPFSProvider) Name() string {
	return p.name
}

// Priority 实现 Provider 接口。
func (p *IPFSProvider) Priority() int {
	return p.priority
}

// Upload 将内容添加到 IPFS 网络。
func (p *IPFSProvider) Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "上传被取消")
	}

	cid, err := p.sh.Add(bytes.NewReader(b))
	if err != nil {
		return "", errors.Wrap(err, "无法将加密后的文档上传至 IPFS 网络")
	}

	return cid, nil
}

// Probe 查询节点版本以确认可达。
func (p *IPFSProvider) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, _, err := p.sh.Version(); err != nil {
		return errors.Wrap(err, "IPFS 节点不可达")
	}

	return nil
}
