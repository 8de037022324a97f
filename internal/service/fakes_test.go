package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/12Omega/blockchain-doc-sub002/internal/blockchain/bcao"
	"github.com/12Omega/blockchain-doc-sub002/internal/db"
	"github.com/12Omega/blockchain-doc-sub002/internal/models/common"
	"github.com/12Omega/blockchain-doc-sub002/internal/storage"
	"github.com/12Omega/blockchain-doc-sub002/pkg/errorcode"
	"github.com/12Omega/blockchain-doc-sub002/pkg/models/anchordata"
)

// fakeRegistry 是 DocumentRegistryInterface 的内存实现。
type fakeRegistry struct {
	records map[string]*common.DocumentRecord
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{records: make(map[string]*common.DocumentRecord)}
}

func (r *fakeRegistry) ClaimHash(record *common.DocumentRecord) error {
	if _, ok := r.records[record.DocumentHash]; ok {
		return errorcode.ErrorDuplicate
	}

	clone := *record
	clone.Audit.CreatedAt = time.Now()
	r.records[record.DocumentHash] = &clone
	return nil
}

func (r *fakeRegistry) UpdateStorageResult(documentHash string, cid string, provider string, status common.DocumentStatus) error {
	record, ok := r.records[documentHash]
	if !ok {
		return errorcode.ErrorNotFound
	}

	record.StorageCID = cid
	record.StorageProvider = provider
	record.Status = status
	return nil
}

func (r *fakeRegistry) FinalizeAnchor(documentHash string, anchor *common.AnchorInfo) error {
	record, ok := r.records[documentHash]
	if !ok {
		return errorcode.ErrorNotFound
	}

	clone := *anchor
	record.Anchor = &clone
	record.Status = common.StatusAnchored
	return nil
}

func (r *fakeRegistry) MarkFailed(documentHash string, diagnostic string) error {
	record, ok := r.records[documentHash]
	if !ok {
		return errorcode.ErrorNotFound
	}

	record.Status = common.StatusFailed
	record.Diagnostic = diagnostic
	return nil
}

func (r *fakeRegistry) FindByHash(documentHash string) (*common.DocumentRecord, error) {
	record, ok := r.records[documentHash]
	if !ok {
		return nil, errorcode.ErrorNotFound
	}

	clone := *record
	return &clone, nil
}

func (r *fakeRegistry) IncrementVerification(documentHash string, at time.Time, newStatus *common.DocumentStatus) error {
	record, ok := r.records[documentHash]
	if !ok {
		return errorcode.ErrorNotFound
	}

	record.Audit.VerificationCount++
	record.Audit.LastVerifiedAt = &at
	if newStatus != nil {
		record.Status = *newStatus
	}
	return nil
}

func (r *fakeRegistry) UpdateViewers(documentHash string, viewerIDs []string) error {
	record, ok := r.records[documentHash]
	if !ok {
		return errorcode.ErrorNotFound
	}

	record.Access.ViewerIDs = viewerIDs
	return nil
}

func (r *fakeRegistry) Deactivate(documentHash string, info *common.DeactivationInfo) error {
	record, ok := r.records[documentHash]
	if !ok {
		return errorcode.ErrorNotFound
	}

	record.Status = common.StatusDeactivated
	clone := *info
	record.Deactivation = &clone
	return nil
}

func (r *fakeRegistry) ListByOwner(ownerID string) ([]*common.DocumentRecord, error) {
	var ret []*common.DocumentRecord
	for _, record := range r.records {
		if record.Access.OwnerID == ownerID {
			clone := *record
			ret = append(ret, &clone)
		}
	}
	return ret, nil
}

func (r *fakeRegistry) ListByStudent(studentID string) ([]*common.DocumentRecord, error) {
	var ret []*common.DocumentRecord
	for _, record := range r.records {
		if record.Metadata.StudentID == studentID {
			clone := *record
			ret = append(ret, &clone)
		}
	}
	return ret, nil
}

func (r *fakeRegistry) Search(keyword string) ([]*common.DocumentRecord, error) {
	var ret []*common.DocumentRecord
	lowered := strings.ToLower(keyword)
	for _, record := range r.records {
		if strings.Contains(strings.ToLower(record.Metadata.StudentName), lowered) ||
			strings.Contains(strings.ToLower(record.Metadata.Institution), lowered) {
			clone := *record
			ret = append(ret, &clone)
		}
	}
	return ret, nil
}

// fakeLog 是 VerificationLogInterface 的内存实现。
type fakeLog struct {
	attempts []*common.VerificationAttempt
}

func (l *fakeLog) Append(attempt *common.VerificationAttempt) error {
	clone := *attempt
	l.attempts = append(l.attempts, &clone)
	return nil
}

func (l *fakeLog) ListByHash(documentHash string, limit int) ([]*common.VerificationAttempt, error) {
	var ret []*common.VerificationAttempt
	for i := len(l.attempts) - 1; i >= 0; i-- {
		if l.attempts[i].DocumentHash == documentHash {
			ret = append(ret, l.attempts[i])
			if limit > 0 && len(ret) >= limit {
				break
			}
		}
	}
	return ret, nil
}

func (l *fakeLog) CountFailuresInWindow(documentHash string, since time.Time) (int64, error) {
	var count int64
	for _, attempt := range l.attempts {
		if attempt.DocumentHash == documentHash && attempt.Result != common.StateAuthentic && !attempt.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (l *fakeLog) AggregateSuspicious(since time.Time, threshold int64) ([]db.SuspiciousDocument, error) {
	counts := make(map[string]*db.SuspiciousDocument)
	for _, attempt := range l.attempts {
		if attempt.Result == common.StateAuthentic || attempt.Timestamp.Before(since) {
			continue
		}
		entry, ok := counts[attempt.DocumentHash]
		if !ok {
			entry = &db.SuspiciousDocument{DocumentHash: attempt.DocumentHash}
			counts[attempt.DocumentHash] = entry
		}
		entry.Failures++
		if attempt.Timestamp.After(entry.LastAttempt) {
			entry.LastAttempt = attempt.Timestamp
		}
	}

	var ret []db.SuspiciousDocument
	for _, entry := range counts {
		if entry.Failures >= threshold {
			entry.Severity = db.SuspiciousSeverity(entry.Failures, threshold)
			ret = append(ret, *entry)
		}
	}
	return ret, nil
}

func (l *fakeLog) Stats(since time.Time) (*db.LogStats, error) {
	stats := &db.LogStats{}
	for _, attempt := range l.attempts {
		if attempt.Timestamp.Before(since) {
			continue
		}
		stats.Total++
		switch attempt.Result {
		case common.StateAuthentic:
			stats.Authentic++
		case common.StateTampered:
			stats.Tampered++
		case common.StateNotFound:
			stats.NotFound++
		}
	}
	return stats, nil
}

// fakeRouter 是 StorageRouterInterface 的内存实现，按递增序号分配 CID。
type fakeRouter struct {
	objects    map[string][]byte
	nextID     int
	uploadErr  error
	queueNext  bool
	downErr    error
	lastUpload []byte
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{objects: make(map[string][]byte)}
}

func (r *fakeRouter) Upload(ctx context.Context, b []byte, filename string, metadata map[string]string) (*storage.UploadResult, error) {
	if r.uploadErr != nil {
		return nil, r.uploadErr
	}

	r.nextID++
	r.lastUpload = append([]byte{}, b...)

	if r.queueNext {
		cid := fmt.Sprintf("local_%032x", r.nextID)
		r.objects[cid] = r.lastUpload
		return &storage.UploadResult{
			CID:           cid,
			Provider:      "local",
			Size:          int64(len(b)),
			Timestamp:     time.Now(),
			Queued:        true,
			QueuePosition: 1,
		}, nil
	}

	cid := fmt.Sprintf("Qm%032x", r.nextID)
	r.objects[cid] = r.lastUpload
	return &storage.UploadResult{
		CID:        cid,
		Provider:   "ipfs-primary",
		Size:       int64(len(b)),
		GatewayURL: "https://gateway.example/ipfs/" + cid,
		Timestamp:  time.Now(),
	}, nil
}

func (r *fakeRouter) GatewayURL(cid string) string {
	if strings.HasPrefix(cid, "local_") {
		return ""
	}
	return "https://gateway.example/ipfs/" + cid
}

func (r *fakeRouter) Download(ctx context.Context, cid string) ([]byte, error) {
	if r.downErr != nil {
		return nil, r.downErr
	}

	b, ok := r.objects[cid]
	if !ok {
		return nil, errorcode.ErrorNotFound
	}
	return b, nil
}

// fakeAnchorBCAO 是 IAnchorBCAO 的内存实现。
type fakeAnchorBCAO struct {
	anchors     map[string]*anchordata.AnchorRecordStored
	nextTx      int
	createErr   error
	getErr      error
	syncErr     error
	unreachable bool
}

func newFakeAnchorBCAO() *fakeAnchorBCAO {
	return &fakeAnchorBCAO{anchors: make(map[string]*anchordata.AnchorRecordStored)}
}

func (o *fakeAnchorBCAO) CreateAnchor(record *anchordata.AnchorRecord, eventID ...string) (*bcao.TransactionCreationInfo, error) {
	if o.createErr != nil {
		return nil, o.createErr
	}
	if _, ok := o.anchors[record.DocumentHash]; ok {
		return nil, errorcode.ErrorDuplicate
	}

	o.nextTx++
	o.anchors[record.DocumentHash] = &anchordata.AnchorRecordStored{
		DocumentHash: record.DocumentHash,
		CID:          record.CID,
		Provider:     record.Provider,
		OwnerID:      record.OwnerID,
		IssuerID:     record.IssuerID,
		Active:       true,
		AnchoredAt:   time.Now(),
	}

	return &bcao.TransactionCreationInfo{
		TransactionID: fmt.Sprintf("tx-%v", o.nextTx),
		BlockHeight:   uint64(100 + o.nextTx),
		ContractID:    "anchor_cc",
	}, nil
}

func (o *fakeAnchorBCAO) GetAnchor(documentHash string) (*anchordata.AnchorRecordStored, error) {
	if o.unreachable {
		return nil, fmt.Errorf("连接被拒绝")
	}
	if o.getErr != nil {
		return nil, o.getErr
	}

	anchor, ok := o.anchors[documentHash]
	if !ok {
		return nil, errorcode.ErrorNotFound
	}
	return anchor, nil
}

func (o *fakeAnchorBCAO) GrantViewer(documentHash string, viewerID string) (string, error) {
	if o.syncErr != nil {
		return "", o.syncErr
	}

	anchor, ok := o.anchors[documentHash]
	if !ok {
		return "", errorcode.ErrorNotFound
	}

	anchor.Viewers = append(anchor.Viewers, viewerID)
	o.nextTx++
	return fmt.Sprintf("tx-%v", o.nextTx), nil
}

func (o *fakeAnchorBCAO) RevokeViewer(documentHash string, viewerID string) (string, error) {
	if o.syncErr != nil {
		return "", o.syncErr
	}

	anchor, ok := o.anchors[documentHash]
	if !ok {
		return "", errorcode.ErrorNotFound
	}

	viewers := anchor.Viewers[:0]
	for _, id := range anchor.Viewers {
		if id != viewerID {
			viewers = append(viewers, id)
		}
	}
	anchor.Viewers = viewers
	o.nextTx++
	return fmt.Sprintf("tx-%v", o.nextTx), nil
}

func (o *fakeAnchorBCAO) DeactivateAnchor(documentHash string) (string, error) {
	if o.syncErr != nil {
		return "", o.syncErr
	}

	anchor, ok := o.anchors[documentHash]
	if !ok {
		return "", errorcode.ErrorNotFound
	}

	anchor.Active = false
	o.nextTx++
	return fmt.Sprintf("tx-%v", o.nextTx), nil
}
