package storage

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/localstore"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage/uploadqueue"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 10 * time.Second
	downloadTimeout    = 30 * time.Second
)

// Router 按优先级在多个存储提供方间路由上传，远端全部失败时回退到本地
// 存储并将任务送入持久化重试队列。
type Router struct {
	remotes       []Provider
	local         *LocalProvider
	queue         *uploadqueue.Queue
	gatewayPrefix string
	maxRetries    int
	backoffBase   time.Duration
	backoffCap    time.Duration
	client        *http.Client
}

// ProviderHealth 表示一个提供方的探测结果。
type ProviderHealth struct {
	Provider string `json:"provider"`
	Priority int    `json:"priority"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// HealthReport 汇总所有提供方的探测结果与队列积压。
type HealthReport struct {
	Providers  []ProviderHealth `json:"providers"`
	QueueDepth int              `json:"queueDepth"`
}

// QueueReport 表示重试队列的当前状态。
type QueueReport struct {
	Depth   int                 `json:"depth"`
	Entries []uploadqueue.Entry `json:"entries"`
}

// NewRouter 创建存储路由器。providers 中的 *LocalProvider（至多一个）
// 被识别为回退存储，排在所有远端之后且不参与重试。
func NewRouter(providers []Provider, queue *uploadqueue.Queue, gatewayPrefix string) *Router {
	router := &Router{
		queue:         queue,
		gatewayPrefix: gatewayPrefix,
		maxRetries:    defaultMaxRetries,
		backoffBase:   defaultBackoffBase,
		backoffCap:    defaultBackoffCap,
		client:        &http.Client{Timeout: downloadTimeout},
	}

	for _, provider := range providers {
		if localProvider, ok := provider.(*LocalProvider); ok {
			router.local = localProvider
			continue
		}
		router.remotes = append(router.remotes, provider)
	}

	sort.SliceStable(router.remotes, func(i, j int) bool {
		return router.remotes[i].Priority() < router.remotes[j].Priority()
	})

	return router
}

// Upload 依次尝试各远端提供方，必要时回退到本地存储并入队重试。
// 返回的回执中 Queued 为 true 表示内容暂存本地、等待后台补传。
func (r *Router) Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (*UploadResult, error) {
	cid, provider, err := r.uploadRemote(ctx, b, filename, metadata)
	if err == nil {
		return &UploadResult{
			CID:        cid,
			Provider:   provider,
			Size:       int64(len(b)),
			GatewayURL: r.GatewayURL(cid),
			Timestamp:  time.Now(),
		}, nil
	}

	if r.local == nil {
		return nil, errors.Wrapf(errorcode.ErrorUnavailable, "所有存储提供方均不可用: %v", err)
	}

	localCID, localErr := r.local.Upload(ctx, b, filename, metadata)
	if localErr != nil {
		return nil, errors.Wrapf(errorcode.ErrorUnavailable, "所有存储提供方（含本地回退）均不可用: %v", localErr)
	}

	position, queueErr := r.queue.Enqueue(b, filename, metadata)
	if queueErr != nil {
		// 内容已落盘本地，入队失败只降级为告警
		log.WithError(queueErr).Warn("内容已写入本地存储，但无法加入重试队列")
	}

	log.WithFields(log.Fields{
		"cid":      localCID,
		"position": position,
	}).Info("远端提供方全部失败，内容已回退至本地存储并排队补传")

	return &UploadResult{
		CID:           localCID,
		Provider:      r.local.Name(),
		Size:          int64(len(b)),
		Timestamp:     time.Now(),
		Queued:        true,
		QueuePosition: position,
	}, nil
}

// UploadRemote 仅尝试远端提供方，不做本地回退也不入队。
// 供后台补传器重放队列任务使用。
func (r *Router) UploadRemote(ctx context.Context, b []byte, filename string, metadata map[string]string) (*UploadResult, error) {
	cid, provider, err := r.uploadRemote(ctx, b, filename, metadata)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		CID:        cid,
		Provider:   provider,
		Size:       int64(len(b)),
		GatewayURL: r.GatewayURL(cid),
		Timestamp:  time.Now(),
	}, nil
}

func (r *Router) uploadRemote(ctx context.Context, b []byte, filename string, metadata map[string]string) (cid string, provider string, err error) {
	if len(r.remotes) == 0 {
		return "", "", errors.Wrap(errorcode.ErrorUnavailable, "未配置任何远端存储提供方")
	}

	var lastErr error
	for _, remote := range r.remotes {
		cid, err := r.uploadWithRetry(ctx, remote, b, filename, metadata)
		if err == nil {
			return cid, remote.Name(), nil
		}

		lastErr = err
		log.WithError(err).WithField("provider", remote.Name()).Warn("提供方上传失败，切换至下一优先级")
	}

	return "", "", lastErr
}

// uploadWithRetry 对单个提供方做最多 maxRetries 次尝试。仅网络层错误与
// HTTP >= 500 触发重试；退避从 backoffBase 起倍增，封顶 backoffCap。
func (r *Router) uploadWithRetry(ctx context.Context, provider Provider, b []byte, filename string, metadata map[string]string) (string, error) {
	backoff := r.backoffBase

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		cid, err := provider.Upload(ctx, b, filename, metadata)
		if err == nil {
			return cid, nil
		}

		lastErr = err
		if !isRetriableError(err) {
			return "", err
		}

		if attempt == r.maxRetries {
			break
		}

		log.WithError(err).WithFields(log.Fields{
			"provider": provider.Name(),
			"attempt":  attempt,
		}).Info("提供方上传失败，稍后重试")

		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "上传被取消")
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.backoffCap {
			backoff = r.backoffCap
		}
	}

	return "", lastErr
}

// GatewayURL 返回 CID 的公共网关读取地址。本地伪 CID 没有公共地址，返回空串。
func (r *Router) GatewayURL(cid string) string {
	if r.gatewayPrefix == "" || strings.HasPrefix(cid, localstore.CIDPrefix) {
		return ""
	}

	return r.gatewayPrefix + cid
}

// Download 按 CID 取回内容字节。本地伪 CID 直接读本地存储，
// 其余通过公共网关 GET。
func (r *Router) Download(ctx context.Context, cid string) ([]byte, error) {
	if strings.HasPrefix(cid, localstore.CIDPrefix) {
		if r.local == nil {
			return nil, errors.Wrapf(errorcode.ErrorNotFound, "未配置本地存储，无法取回 CID '%v'", cid)
		}
		return r.local.Store().Get(cid)
	}

	if r.gatewayPrefix == "" {
		return nil, errors.Wrap(errorcode.ErrorUnavailable, "未配置内容网关，无法取回远端内容")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.gatewayPrefix+cid, nil)
	if err != nil {
		return nil, errors.Wrap(err, "无法构造网关请求")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errorcode.ErrorUnavailable, "无法访问内容网关: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(errorcode.ErrorNotFound, "网关上不存在 CID '%v'", cid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(errorcode.ErrorUnavailable, "内容网关返回 HTTP %v", resp.StatusCode)
	}

	contentBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "无法读取网关响应")
	}

	return contentBytes, nil
}

// Health 探测所有提供方并汇总队列积压。
func (r *Router) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{}

	probe := func(provider Provider) {
		health := ProviderHealth{
			Provider: provider.Name(),
			Priority: provider.Priority(),
			OK:       true,
		}
		if err := provider.Probe(ctx); err != nil {
			health.OK = false
			health.Error = err.Error()
		}
		report.Providers = append(report.Providers, health)
	}

	for _, remote := range r.remotes {
		probe(remote)
	}
	if r.local != nil {
		probe(r.local)
	}

	if depth, err := r.queue.Depth(); err == nil {
		report.QueueDepth = depth
	}

	return report
}

// QueueStatus 返回重试队列的深度与任务列表。
func (r *Router) QueueStatus() (*QueueReport, error) {
	entries, err := r.queue.List()
	if err != nil {
		return nil, err
	}

	return &QueueReport{Depth: len(entries), Entries: entries}, nil
}

// Queue 返回底层重试队列，供后台补传器使用。
func (r *Router) Queue() *uploadqueue.Queue {
	return r.queue
}
