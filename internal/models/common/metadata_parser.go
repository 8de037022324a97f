package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// 元数据在表单中既可能是结构化对象也可能是 JSON 字符串。
// 这里做一次入口解析，得到唯一的规范结构，栈内更深处不再按运行时类型分支。

const dateOnlyLayout = "2006-01-02"

// ParseDocumentMetadataString 解析 JSON 字符串形式的元数据字段。
func ParseDocumentMetadataString(raw string) (*DocumentMetadata, error) {
	var asMap map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &asMap); err != nil {
		return nil, errors.Wrap(err, "元数据字段不是合法的 JSON 对象")
	}

	return ParseDocumentMetadataMap(asMap)
}

// ParseDocumentMetadataMap 将结构化的元数据对象解码为规范的 DocumentMetadata。
// 文档种类与日期字段以字符串提交，在此处完成类型转换。
func ParseDocumentMetadataMap(asMap map[string]interface{}) (*DocumentMetadata, error) {
	var ret DocumentMetadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &ret,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "无法创建元数据解码器")
	}

	if err := decoder.Decode(asMap); err != nil {
		return nil, errors.Wrap(err, "无法解码元数据字段")
	}

	kindStr, _ := asMap["kind"].(string)
	if kindStr == "" {
		return nil, fmt.Errorf("元数据缺少文档种类")
	}

	kind, err := NewDocumentKindFromString(kindStr)
	if err != nil {
		return nil, errors.Wrapf(err, "文档种类 '%v' 不合法", kindStr)
	}
	ret.Kind = kind

	issueDateStr, _ := asMap["issueDate"].(string)
	if issueDateStr == "" {
		return nil, fmt.Errorf("元数据缺少签发日期")
	}

	issueDate, err := parseDate(issueDateStr)
	if err != nil {
		return nil, errors.Wrapf(err, "签发日期 '%v' 不合法", issueDateStr)
	}
	ret.IssueDate = issueDate

	if expiryDateStr, ok := asMap["expiryDate"].(string); ok && expiryDateStr != "" {
		expiryDate, err := parseDate(expiryDateStr)
		if err != nil {
			return nil, errors.Wrapf(err, "过期日期 '%v' 不合法", expiryDateStr)
		}
		ret.ExpiryDate = &expiryDate
	}

	return &ret, nil
}

// 日期字段接受 RFC 3339 或 yyyy-MM-dd 两种形式。
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	return time.Parse(dateOnlyLayout, s)
}
