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

// PinnerProvider 对接 API key + secret 风格的托管固定服务。
// 上传走 multipart 表单 POST，元数据作为独立的 JSON 表单项提交。
type PinnerProvider struct {
	name      string
	priority  int
	endpoint  string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewPinnerProvider 创建一个托管固定服务驱动。
func NewPinnerProvider(name string, priority int, endpoint, apiKey, apiSecret string) *PinnerProvider {
	return &PinnerProvider{
		name:      name,
		priority:  priority,
		endpoint:  endpoint,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Name 实现 Provider 接口。
func (p *PinnerProvider) Name() string {
	return p.name
}

// Priority 实现 Provider 接口。
func (p *PinnerProvider) Priority() int {
	return p.priority
}

type pinnerUploadResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Upload 实现 Provider 接口。
func (p *PinnerProvider) Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filePart, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", errors.Wrap(err, "无法构造上传表单")
	}
	if _, err := filePart.Write(b); err != nil {
		return "", errors.Wrap(err, "无法写入上传表单")
	}

	if len(metadata) != 0 {
		metaBytes, err := json.Marshal(map[string]interface{}{
			"name":      filename,
			"keyvalues": metadata,
		})
		if err != nil {
			return "", errors.Wrap(err, "无法序列化上传元数据")
		}
		if err := writer.WriteField("pinataMetadata", string(metaBytes)); err != nil {
			return "", errors.Wrap(err, "无法写入上传元数据")
		}
	}

	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "无法完成上传表单")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", errors.Wrap(err, "无法构造上传请求")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.apiSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "无法访问提供方 '%v'", p.name)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBytes)}
	}

	var parsed pinnerUploadResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil || parsed.IpfsHash == "" {
		return "", errors.New("提供方响应中缺少 CID")
	}

	return parsed.IpfsHash, nil
}

// Probe 调用鉴权测试端点确认凭证与可达性。
func (p *PinnerProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/data/testAuthentication", nil)
	if err != nil {
		return errors.Wrap(err, "无法构造探测请求")
	}
	req.Header.Set("pinata_api_key", p.apiKey)
	req.Header.Set("pinata_secret_api_key", p.apiSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "提供方 '%v' 不可达", p.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPStatusError{StatusCode: resp.StatusCode}
	}

	return nil
}
