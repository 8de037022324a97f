package service

import (
	"context"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/bcao"
	"github.com/12Omega/blockchain-doc-sub002/internal/db"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/cipherutils"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/hashutils"
	"github.com/12Omega/blockchain-doc-sub002/internal/utils/idutils"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// VerificationService 是验证引擎：对提交的证据给出 authentic / tampered /
// not_found 三态结论，追加审计日志并做内联异常检测。
type VerificationService struct {
	Registry   DocumentRegistryInterface
	Log        VerificationLogInterface
	Router     StorageRouterInterface
	AnchorBCAO bcao.IAnchorBCAO
	MasterKey  []byte

	// 异常检测：窗口期内同一哈希的失败验证达到阈值时告警，达到两倍阈值时升级。
	AnomalyWindow    time.Duration
	AnomalyThreshold int64
}

const (
	defaultAnomalyWindow    = 10 * time.Minute
	defaultAnomalyThreshold = 5
)

// Verify 验证一份文档证据。结论的支配顺序为 not_found > tampered > authentic：
// 没有有效记录时一律 not_found；有记录但任一检查不一致时为 tampered。
func (s *VerificationService) Verify(ctx context.Context, evidence *VerificationEvidence) (*common.VerificationResult, error) {
	targetHash, hashMatch, claimedAnchorTxID, err := s.resolveEvidence(evidence)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &common.VerificationResult{
		DocumentHash: targetHash,
		Timestamp:    now,
		Method:       evidence.Method,
		VerifierID:   verifierOrAnonymous(evidence.VerifierID),
	}

	record, err := s.Registry.FindByHash(targetHash)
	if err != nil {
		if errors.Cause(err) == errorcode.ErrorNotFound {
			result.State = common.StateNotFound
			s.appendAttempt(evidence, result, false, false, "")
			s.detectAnomaly(targetHash, now)
			return result, nil
		}
		return nil, err
	}

	// 停用的记录视为不存在
	if record.Status == common.StatusDeactivated {
		result.State = common.StateNotFound
		s.appendAttempt(evidence, result, false, false, "")
		s.detectAnomaly(targetHash, now)
		return result, nil
	}

	// 尚未完成锚定的记录（pending、uploaded、failed）继续走检查流程，
	// 由下面的判定规则给出结论：authentic 要求锚定已完成
	anchoringComplete := record.Status == common.StatusAnchored || record.Status == common.StatusVerified

	diagnostics := &common.VerificationDiagnostics{
		HashMatch:       hashMatch,
		FileIntegrityOK: true,
	}

	// 账本交叉检查。账本不可达时不强行判 tampered，降级为 unknown 并附带提示
	ledgerChecked := false
	anchorStored, ledgerErr := s.AnchorBCAO.GetAnchor(targetHash)
	if ledgerErr != nil {
		if errors.Cause(ledgerErr) == errorcode.ErrorNotFound {
			ledgerChecked = true
			ledgerValid := false
			diagnostics.LedgerValid = &ledgerValid
		} else {
			log.WithError(ledgerErr).WithField("hash", targetHash).Warn("账本不可达，跳过账本交叉检查")
			result.Warning = "账本暂时不可达，本次结论未经账本交叉确认"
		}
	} else {
		ledgerChecked = true
		ledgerValid := anchorStored.Active && anchorStored.DocumentHash == record.DocumentHash
		if claimedAnchorTxID != "" && record.Anchor != nil && claimedAnchorTxID != record.Anchor.TxID {
			// 二维码中的交易 ID 与登记回执不符
			ledgerValid = false
		}
		diagnostics.LedgerValid = &ledgerValid
	}

	// upload 方式额外重新核对存储中的密文能否还原出登记哈希对应的内容
	bytesRechecked := false
	if evidence.Method == common.MethodUpload && record.StorageCID != "" {
		ok, recheckErr := s.recheckStoredBytes(ctx, record)
		if recheckErr != nil {
			log.WithError(recheckErr).WithField("hash", targetHash).Warn("无法重新核对存储字节")
		} else {
			bytesRechecked = true
			diagnostics.FileIntegrityOK = ok
		}
	}

	tampered := !hashMatch ||
		!anchoringComplete ||
		(diagnostics.LedgerValid != nil && !*diagnostics.LedgerValid) ||
		!diagnostics.FileIntegrityOK

	if tampered {
		// 只要记录存在就推进验证计数，但不改变记录状态
		if err := s.Registry.IncrementVerification(targetHash, now, nil); err != nil {
			log.WithError(err).WithField("hash", targetHash).Error("无法累加验证计数")
		}

		result.State = common.StateTampered
		result.VerificationCount = record.Audit.VerificationCount + 1
		result.Diagnostics = diagnostics
		s.appendAttempt(evidence, result, ledgerChecked, bytesRechecked, anchorTxID(record))
		s.detectAnomaly(targetHash, now)
		return result, nil
	}

	// authentic：返回元数据、锚定回执与存储信息，并推进验证计数
	var newStatus *common.DocumentStatus
	if record.Status == common.StatusAnchored {
		verified := common.StatusVerified
		newStatus = &verified
	}
	if err := s.Registry.IncrementVerification(targetHash, now, newStatus); err != nil {
		log.WithError(err).WithField("hash", targetHash).Error("无法累加验证计数")
	}

	metadata := record.Metadata
	result.State = common.StateAuthentic
	result.VerificationCount = record.Audit.VerificationCount + 1
	result.Metadata = &metadata
	result.Anchor = record.Anchor
	result.Storage = &common.StorageInfo{
		CID:        record.StorageCID,
		Provider:   record.StorageProvider,
		GatewayURL: s.Router.GatewayURL(record.StorageCID),
	}

	s.appendAttempt(evidence, result, ledgerChecked, bytesRechecked, anchorTxID(record))
	return result, nil
}

// resolveEvidence 把三种证据形式归一化为待查询的哈希与哈希一致性结论。
func (s *VerificationService) resolveEvidence(evidence *VerificationEvidence) (targetHash string, hashMatch bool, claimedAnchorTxID string, err error) {
	switch evidence.Method {
	case common.MethodUpload:
		if len(evidence.FileBytes) == 0 {
			err = errors.Wrap(errorcode.ErrorValidation, "上传的文件内容为空")
			return
		}

		computedHash := hashutils.HashBytesToString(evidence.FileBytes)
		if evidence.ClaimedHash != "" {
			if !hashutils.IsValidHashString(evidence.ClaimedHash) {
				err = errors.Wrap(errorcode.ErrorValidation, "声称的哈希不是合法的哈希字符串")
				return
			}
			digest, _ := hashutils.ParseHashString(evidence.ClaimedHash)
			targetHash = hashutils.FormatDigest(digest)
			hashMatch = computedHash == targetHash
		} else {
			targetHash = computedHash
			hashMatch = true
		}
		return

	case common.MethodQR:
		payload, parseErr := common.ParseQRPayload(evidence.QRPayload)
		if parseErr != nil {
			err = errors.Wrapf(errorcode.ErrorValidation, "二维码负载不合法: %v", parseErr)
			return
		}
		if !hashutils.IsValidHashString(payload.DocumentHash) {
			err = errors.Wrap(errorcode.ErrorValidation, "二维码负载中的哈希不合法")
			return
		}

		digest, _ := hashutils.ParseHashString(payload.DocumentHash)
		targetHash = hashutils.FormatDigest(digest)
		hashMatch = true
		claimedAnchorTxID = payload.AnchorTxID
		return

	case common.MethodHash:
		if !hashutils.IsValidHashString(evidence.ClaimedHash) {
			err = errors.Wrap(errorcode.ErrorValidation, "提交的哈希不是合法的哈希字符串")
			return
		}

		digest, _ := hashutils.ParseHashString(evidence.ClaimedHash)
		targetHash = hashutils.FormatDigest(digest)
		hashMatch = true
		return

	default:
		err = errors.Wrap(errorcode.ErrorValidation, "不支持的验证方式")
		return
	}
}

// recheckStoredBytes 取回密文、解密并核对内容哈希，确认存储字节未被调换。
func (s *VerificationService) recheckStoredBytes(ctx context.Context, record *common.DocumentRecord) (bool, error) {
	envelope, err := s.Router.Download(ctx, record.StorageCID)
	if err != nil {
		return false, err
	}

	dataKey, err := cipherutils.OpenDataKey(s.MasterKey, record.SealedDataKey)
	if err != nil {
		return false, err
	}

	contents, err := cipherutils.OpenBytes(dataKey, envelope)
	if err != nil {
		// 认证失败本身就是完整性核对的结论
		if errors.Cause(err) == errorcode.ErrorAuthFailure {
			return false, nil
		}
		return false, err
	}

	return hashutils.VerifyIntegrity(contents, record.DocumentHash), nil
}

// appendAttempt 追加审计日志。审计失败不影响验证结论本身。
func (s *VerificationService) appendAttempt(evidence *VerificationEvidence, result *common.VerificationResult, ledgerChecked bool, bytesRechecked bool, attemptAnchorTxID string) {
	id, err := idutils.GenerateSnowflakeId()
	if err != nil {
		log.WithError(err).Error("无法生成验证日志 ID")
		return
	}

	attempt := &common.VerificationAttempt{
		ID:             id,
		DocumentHash:   result.DocumentHash,
		VerifierID:     result.VerifierID,
		SourceIP:       evidence.SourceIP,
		Method:         evidence.Method,
		Result:         result.State,
		Timestamp:      result.Timestamp,
		UserAgent:      evidence.UserAgent,
		LedgerChecked:  ledgerChecked,
		BytesRechecked: bytesRechecked,
		AnchorTxID:     attemptAnchorTxID,
	}

	if err := s.Log.Append(attempt); err != nil {
		log.WithError(err).WithField("hash", result.DocumentHash).Error("无法写入验证日志")
	}
}

// detectAnomaly 在失败验证后检查窗口期内的失败密度。
func (s *VerificationService) detectAnomaly(documentHash string, now time.Time) {
	window := s.AnomalyWindow
	if window <= 0 {
		window = defaultAnomalyWindow
	}
	threshold := s.AnomalyThreshold
	if threshold <= 0 {
		threshold = defaultAnomalyThreshold
	}

	failures, err := s.Log.CountFailuresInWindow(documentHash, now.Add(-window))
	if err != nil {
		log.WithError(err).WithField("hash", documentHash).Error("无法统计失败验证次数")
		return
	}

	if failures >= 2*threshold {
		log.WithFields(log.Fields{
			"hash":     documentHash,
			"failures": failures,
			"window":   window,
		}).Error("检测到高密度的失败验证活动")
	} else if failures >= threshold {
		log.WithFields(log.Fields{
			"hash":     documentHash,
			"failures": failures,
			"window":   window,
		}).Warn("检测到可疑的失败验证活动")
	}
}

// AuditTrailReport 是审计轨迹查询的复合结果：记录列表、各结论的计数
// 与当前异常窗口的状态。
type AuditTrailReport struct {
	DocumentHash string                        `json:"documentHash"`
	Attempts     []*common.VerificationAttempt `json:"attempts"`
	Total        int64                         `json:"total"`
	Authentic    int64                         `json:"authentic"`
	Tampered     int64                         `json:"tampered"`
	NotFound     int64                         `json:"notFound"`
	// WindowFailures 为异常窗口内的失败验证次数；达到阈值时 Severity 非空
	WindowFailures int64  `json:"windowFailures"`
	Severity       string `json:"severity,omitempty"`
}

// AuditTrail 获取某哈希的验证审计轨迹。仅所有者、签发机构与被授权
// 查看者可以查询。
func (s *VerificationService) AuditTrail(documentHash string, requesterID string, limit int) (*AuditTrailReport, error) {
	if !hashutils.IsValidHashString(documentHash) {
		return nil, errors.Wrap(errorcode.ErrorValidation, "哈希不是合法的哈希字符串")
	}

	digest, _ := hashutils.ParseHashString(documentHash)
	normalizedHash := hashutils.FormatDigest(digest)

	record, err := s.Registry.FindByHash(normalizedHash)
	if err != nil {
		return nil, err
	}
	if !record.Access.CanAccess(requesterID) {
		return nil, errors.Wrap(errorcode.ErrorForbidden, "无权查询该文档的审计轨迹")
	}

	attempts, err := s.Log.ListByHash(normalizedHash, 0)
	if err != nil {
		return nil, err
	}

	report := &AuditTrailReport{
		DocumentHash: normalizedHash,
		Attempts:     attempts,
		Total:        int64(len(attempts)),
	}
	for _, attempt := range attempts {
		switch attempt.Result {
		case common.StateAuthentic:
			report.Authentic++
		case common.StateTampered:
			report.Tampered++
		case common.StateNotFound:
			report.NotFound++
		}
	}

	if limit > 0 && len(attempts) > limit {
		report.Attempts = attempts[:limit]
	}

	window := s.AnomalyWindow
	if window <= 0 {
		window = defaultAnomalyWindow
	}
	threshold := s.AnomalyThreshold
	if threshold <= 0 {
		threshold = defaultAnomalyThreshold
	}

	failures, err := s.Log.CountFailuresInWindow(normalizedHash, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	report.WindowFailures = failures
	if failures >= threshold {
		report.Severity = db.SuspiciousSeverity(failures, threshold)
	}

	return report, nil
}

// SuspiciousActivity 聚合窗口期内失败验证达到阈值的文档。
func (s *VerificationService) SuspiciousActivity(window time.Duration) ([]db.SuspiciousDocument, error) {
	if window <= 0 {
		window = defaultAnomalyWindow
	}
	threshold := s.AnomalyThreshold
	if threshold <= 0 {
		threshold = defaultAnomalyThreshold
	}

	return s.Log.AggregateSuspicious(time.Now().Add(-window), threshold)
}

// Stats 统计窗口期内各结论的验证次数。
func (s *VerificationService) Stats(window time.Duration) (*db.LogStats, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}

	return s.Log.Stats(time.Now().Add(-window))
}

func verifierOrAnonymous(verifierID string) string {
	if verifierID == "" {
		return common.AnonymousVerifier
	}

	return verifierID
}

func anchorTxID(record *common.DocumentRecord) string {
	if record.Anchor == nil {
		return ""
	}

	return record.Anchor.TxID
}
