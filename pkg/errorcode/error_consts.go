package errorcode

import "fmt"

const (
	// CodeNotFound 表示资源未找到。Service 层收到的错误中若是这样的错误信息则表示是记录或本地 CID 未找到，而非运行出错。
	CodeNotFound = "~NOTFOUND~"
	// CodeForbidden 表示参数被理解，但无权进行操作。
	CodeForbidden = "~FORBIDDEN~"
	// CodeValidation 表示请求参数未通过校验（大小、MIME 类型、元数据约束等）。
	CodeValidation = "~VALIDATION~"
	// CodeDuplicate 表示文档哈希已被注册，重复注册被拒绝。
	CodeDuplicate = "~DUPLICATE~"
	// CodeAuthFailure 表示密文认证失败（认证标签不匹配或密钥不正确）。
	CodeAuthFailure = "~AUTHFAIL~"
	// CodeUnavailable 表示所有存储提供方均不可用，上传任务已进入重试队列。
	CodeUnavailable = "~UNAVAILABLE~"
	// CodePartialAnchor 表示存储成功但上链失败，记录处于部分成功状态。
	CodePartialAnchor = "~PARTIALANCHOR~"
	// CodeTimeout 表示外部调用超时。
	CodeTimeout = "~TIMEOUT~"
	// CodeStorage 表示存储层（本地或远端）出错。
	CodeStorage = "~STORAGE~"
	// CodeLedger 表示账本层出错。
	CodeLedger = "~LEDGER~"
	// CodeNotImplemented 是个在这个项目中约定俗成的代号，表示暂时未实现的功能。
	CodeNotImplemented = "~NOTIMPLEMENTED~"
)

// ErrorNotFound 为使用了 `CodeNotFound` 的 error 实例
var ErrorNotFound = fmt.Errorf(CodeNotFound)

// ErrorForbidden 为使用了 `CodeForbidden` 的 error 实例
var ErrorForbidden = fmt.Errorf(CodeForbidden)

// ErrorValidation 为使用了 `CodeValidation` 的 error 实例
var ErrorValidation = fmt.Errorf(CodeValidation)

// ErrorDuplicate 为使用了 `CodeDuplicate` 的 error 实例
var ErrorDuplicate = fmt.Errorf(CodeDuplicate)

// ErrorAuthFailure 为使用了 `CodeAuthFailure` 的 error 实例
var ErrorAuthFailure = fmt.Errorf(CodeAuthFailure)

// ErrorUnavailable 为使用了 `CodeUnavailable` 的 error 实例
var ErrorUnavailable = fmt.Errorf(CodeUnavailable)

// ErrorPartialAnchor 为使用了 `CodePartialAnchor` 的 error 实例
var ErrorPartialAnchor = fmt.Errorf(CodePartialAnchor)

// ErrorTimeout 为使用了 `CodeTimeout` 的 error 实例
var ErrorTimeout = fmt.Errorf(CodeTimeout)

// ErrorStorage 为使用了 `CodeStorage` 的 error 实例
var ErrorStorage = fmt.Errorf(CodeStorage)

// ErrorLedger 为使用了 `CodeLedger` 的 error 实例
var ErrorLedger = fmt.Errorf(CodeLedger)

// ErrorNotImplemented 为使用了 `CodeNotImplemented` 的 error 实例
var ErrorNotImplemented = fmt.Errorf(CodeNotImplemented)
