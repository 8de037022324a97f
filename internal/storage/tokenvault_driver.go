package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// TokenVaultProvider 对接 Bearer token 风格的托管存储服务。
type TokenVaultProvider struct {
	name     string
	priority int
	endpoint string
	token    string
	client   *http.Client
}

// NewTokenVaultProvider 创建一个 Bearer token 驱动。
func NewTokenVaultProvider(name string, priority int, endpoint, token string) *TokenVaultProvider {
	return &TokenVaultProvider{
		name:     name,
		priority: priority,
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Name 实现 Provider 接口。
func (p *TokenVaultProvider) Name() string {
	return p.name
}

// Priority 实现 Provider 接口。
func (p *TokenVaultProvider) Priority() int {
	return p.priority
}

type tokenVaultUploadResponse struct {
	CID string `json:"cid"`
}

// Upload 实现 Provider 接口。
func (p *TokenVaultProvider) Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filePart, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "无法构造上传表单")
	}
	if _, err := filePart.Write(b); err != nil {
		return "", errors.Wrap(err, "无法写入上传表单")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "无法完成上传表单")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/upload", &body)
	if err != nil {
		return "", errors.Wrap(err, "无法构造上传请求")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "无法访问提供方 '%v'", p.name)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBytes)}
	}

	var parsed tokenVaultUploadResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil || parsed.CID == "" {
		return "", errors.New("提供方响应中缺少 CID")
	}

	return parsed.CID, nil
}

// Probe 访问服务根路径确认可达性。
func (p *TokenVaultProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/", nil)
	if err != nil {
		return errors.Wrap(err, "无法构造探测请求")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "提供方 '%v' 不可达", p.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	return nil
}
