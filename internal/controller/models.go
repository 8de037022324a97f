package controller

// AccessUpdateResult 表示授权、撤销与停用操作的响应体。
// 操作已在本地生效；warning 非空时表示账本同步失败。
type AccessUpdateResult struct {
	Warning string `json:"warning,omitempty"`
}
