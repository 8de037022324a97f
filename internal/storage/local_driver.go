package storage

import (
	"context"

	"github.com/12Omega/blockchain-doc-sub002/internal/localstore"
	"github.com/pkg/errors"
)

// LocalProvider 将本地回退存储包装为 Provider。它永远排在所有远端提供方
// 之后，且不参与重试。
type LocalProvider struct {
	priority int
	store    *localstore.LocalStore
}

// NewLocalProvider 创建本地回退驱动。
func NewLocalProvider(priority int, store *localstore.LocalStore) *LocalProvider {
	return &LocalProvider{
		priority: priority,
		store:    store,
	}
}

// Name 实现 Provider 接口。
func (p *LocalProvider) Name() string {
	return "local"
}

// Priority 实现 Provider 接口。
func (p *LocalProvider) Priority() int {
	return p.priority
}

// Upload 实现 Provider 接口。
func (p *LocalProvider) Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (string, error) {
	result, err := p.store.Put(b, filename, metadata)
	if err != nil {
		return "", err
	}

	return result.CID, nil
}

// Probe 检查存储卷剩余空间。
func (p *LocalProvider) Probe(ctx context.Context) error {
	health, err := p.store.Health()
	if err != nil {
		return err
	}

	if health.FreeBytes == 0 {
		return errors.New("本地存储卷已无可用空间")
	}

	return nil
}

// Store 返回底层本地存储，供下载路由使用。
func (p *LocalProvider) Store() *localstore.LocalStore {
	return p.store
}
