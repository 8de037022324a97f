package db

import (
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/sqlmodel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// VerificationLog 封装了 verification_attempts 表的读写。该表只追加，
// 既是审计轨迹也是异常检测的数据源。
type VerificationLog struct {
	db *gorm.DB
}

// NewVerificationLog 创建一个验证日志访问对象。
func NewVerificationLog(db *gorm.DB) *VerificationLog {
	return &VerificationLog{db: db}
}

// Append 追加一条验证记录。
func (l *VerificationLog) Append(attempt *common.VerificationAttempt) error {
	attemptDB, err := sqlmodel.NewVerificationAttemptFromModel(attempt)
	if err != nil {
		return err
	}

	dbResult := l.db.Create(attemptDB)
	if dbResult.Error != nil {
		return errors.Wrap(dbResult.Error, "无法写入验证日志")
	}

	return nil
}

// ListByHash 按时间倒序列出某哈希的验证记录。limit <= 0 时不限制条数。
func (l *VerificationLog) ListByHash(documentHash string, limit int) ([]*common.VerificationAttempt, error) {
	query := l.db.Where("document_hash = ?", documentHash).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attemptDBs []sqlmodel.VerificationAttempt
	dbResult := query.Find(&attemptDBs)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法从数据库中获取验证日志")
	}

	ret := make([]*common.VerificationAttempt, 0, len(attemptDBs))
	for i := range attemptDBs {
		attempt, err := attemptDBs[i].ToModel()
		if err != nil {
			return nil, err
		}
		ret = append(ret, attempt)
	}

	return ret, nil
}

// CountFailuresInWindow 统计某哈希自 since 以来非 authentic 的验证次数。
func (l *VerificationLog) CountFailuresInWindow(documentHash string, since time.Time) (int64, error) {
	var count int64
	dbResult := l.db.Model(&sqlmodel.VerificationAttempt{}).
		Where("document_hash = ? AND result <> ? AND timestamp >= ?", documentHash, "AUTHENTIC", since).
		Count(&count)
	if dbResult.Error != nil {
		return 0, errors.Wrap(dbResult.Error, "无法统计验证失败次数")
	}

	return count, nil
}

// 可疑活动的告警级别：失败次数达到阈值为 medium，达到两倍阈值升级为 high。
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SuspiciousSeverity 按失败次数与阈值给出告警级别。
func SuspiciousSeverity(failures int64, threshold int64) string {
	if failures >= 2*threshold {
		return SeverityHigh
	}
	return SeverityMedium
}

// SuspiciousDocument 表示异常检测聚合出的一条可疑文档摘要。
type SuspiciousDocument struct {
	DocumentHash string    `json:"documentHash"`
	Failures     int64     `json:"failures"`
	LastAttempt  time.Time `json:"lastAttempt"`
	Severity     string    `json:"severity" gorm:"-"`
}

// AggregateSuspicious 聚合自 since 以来失败验证达到 threshold 的文档哈希。
func (l *VerificationLog) AggregateSuspicious(since time.Time, threshold int64) ([]SuspiciousDocument, error) {
	var ret []SuspiciousDocument
	dbResult := l.db.Model(&sqlmodel.VerificationAttempt{}).
		Select("document_hash, COUNT(*) AS failures, MAX(timestamp) AS last_attempt").
		Where("result <> ? AND timestamp >= ?", "AUTHENTIC", since).
		Group("document_hash").
		Having("COUNT(*) >= ?", threshold).
		Order("failures DESC").
		Scan(&ret)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法聚合可疑验证活动")
	}

	for i := range ret {
		ret[i].Severity = SuspiciousSeverity(ret[i].Failures, threshold)
	}

	return ret, nil
}

// LogStats 表示验证日志的汇总统计。
type LogStats struct {
	Total     int64 `json:"total"`
	Authentic int64 `json:"authentic"`
	Tampered  int64 `json:"tampered"`
	NotFound  int64 `json:"notFound"`
}

// Stats 统计自 since 以来各结论的验证次数。
func (l *VerificationLog) Stats(since time.Time) (*LogStats, error) {
	type resultCount struct {
		Result string
		Count  int64
	}

	var counts []resultCount
	dbResult := l.db.Model(&sqlmodel.VerificationAttempt{}).
		Select("result, COUNT(*) AS count").
		Where("timestamp >= ?", since).
		Group("result").
		Scan(&counts)
	if dbResult.Error != nil {
		return nil, errors.Wrap(dbResult.Error, "无法统计验证日志")
	}

	stats := &LogStats{}
	for _, rc := range counts {
		stats.Total += rc.Count
		switch rc.Result {
		case "AUTHENTIC":
			stats.Authentic += rc.Count
		case "TAMPERED":
			stats.Tampered += rc.Count
		case "NOT_FOUND":
			stats.NotFound += rc.Count
		}
	}

	return stats, nil
}
