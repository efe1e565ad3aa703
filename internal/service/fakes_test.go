package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	appErrors "github.com/JGooseK41/NFTServiceApp-sub011/pkg/errors"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/jobs"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

const (
	testRecipient = "TFfagVe1aZpSfYaruY6xJfVPYZBuMj57FH"
	testServer    = "TGdD34RR3rZfUozoQLze9d4tzFbigL4JAY"
	testStranger  = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
)

func int64Ptr(v int64) *int64 { return &v }

type memNoticeRepo struct {
	mu      sync.Mutex
	notices map[string]*models.Notice
	access  *memAccessRepo
	clock    time.Time
	getErr   error
	proofErr error
}

func newMemNoticeRepo() *memNoticeRepo {
	return &memNoticeRepo{
		notices: make(map[string]*models.Notice),
		clock:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memNoticeRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memNoticeRepo) UpsertWithCase(ctx context.Context, notice *models.Notice) (*models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.notices[notice.NoticeID]; ok {
		merged := *existing
		merged.CaseNumber = notice.CaseNumber
		merged.RecipientAddress = notice.RecipientAddress
		merged.ServerAddress = notice.ServerAddress
		if notice.AlertTokenID != nil {
			merged.AlertTokenID = notice.AlertTokenID
		}
		if notice.DocumentTokenID != nil {
			merged.DocumentTokenID = notice.DocumentTokenID
		}
		if notice.TransactionHash != nil {
			merged.TransactionHash = notice.TransactionHash
		}
		merged.UpdatedAt = m.tick()
		m.notices[notice.NoticeID] = &merged
		out := merged
		return &out, nil
	}
	stored := *notice
	stored.CreatedAt = m.tick()
	stored.UpdatedAt = stored.CreatedAt
	caseID := "case-" + notice.CaseNumber
	stored.CaseID = &caseID
	m.notices[notice.NoticeID] = &stored
	out := stored
	return &out, nil
}

func (m *memNoticeRepo) InsertIfAbsent(ctx context.Context, notice *models.Notice) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notices[notice.NoticeID]; ok {
		return false, nil
	}
	stored := *notice
	m.notices[notice.NoticeID] = &stored
	return true, nil
}

func (m *memNoticeRepo) GetByID(ctx context.Context, noticeID string) (*models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	n, ok := m.notices[noticeID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *n
	return &out, nil
}

func (m *memNoticeRepo) FindByAlertToken(ctx context.Context, alertTokenID int64) (*models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notices {
		if n.AlertTokenID != nil && *n.AlertTokenID == alertTokenID {
			out := *n
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memNoticeRepo) FindByTokenID(ctx context.Context, tokenID int64) (*models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notices {
		if (n.AlertTokenID != nil && *n.AlertTokenID == tokenID) || (n.DocumentTokenID != nil && *n.DocumentTokenID == tokenID) {
			out := *n
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memNoticeRepo) ListByServer(ctx context.Context, serverAddress string, includeDismissed bool, limit int) ([]models.Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Notice, 0)
	for _, n := range m.notices {
		if !strings.EqualFold(n.ServerAddress, serverAddress) {
			continue
		}
		if n.Dismissed && !includeDismissed {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNoticeRepo) CountActiveByServer(ctx context.Context, serverAddress string) (int, error) {
	items, _ := m.ListByServer(ctx, serverAddress, false, 0)
	return len(items), nil
}

func (m *memNoticeRepo) ListByRecipient(ctx context.Context, recipientAddress string) ([]models.RecipientNotice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RecipientNotice, 0)
	for _, n := range m.notices {
		if !strings.EqualFold(n.RecipientAddress, recipientAddress) {
			continue
		}
		item := models.RecipientNotice{Notice: *n}
		if m.access != nil {
			if a, err := m.access.Get(ctx, n.NoticeID, recipientAddress); err == nil {
				item.Viewed = a.ViewCount > 0
				item.Signed = a.Signed
				item.ViewCount = a.ViewCount
				item.SignedAt = a.SignedAt
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memNoticeRepo) MarkAccepted(ctx context.Context, noticeID, signature string, acceptedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notices[noticeID]
	if !ok || n.Accepted {
		return false, nil
	}
	n.Accepted = true
	n.AcceptedAt = &acceptedAt
	n.AcceptanceSignature = &signature
	return true, nil
}

func (m *memNoticeRepo) SetDismissed(ctx context.Context, noticeID string, dismissed bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notices[noticeID]
	if !ok {
		return sql.ErrNoRows
	}
	n.Dismissed = dismissed
	if dismissed {
		n.DismissedAt = &at
	} else {
		n.DismissedAt = nil
	}
	return nil
}

func (m *memNoticeRepo) UpdateChainProof(ctx context.Context, noticeID string, blockNumber int64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proofErr != nil {
		return m.proofErr
	}
	n, ok := m.notices[noticeID]
	if !ok {
		return sql.ErrNoRows
	}
	n.BlockNumber = &blockNumber
	n.ChainTimestamp = &ts
	return nil
}

type memAccessRepo struct {
	mu       sync.Mutex
	rows     map[string]*models.NoticeAccess
	attempts []models.AccessAttempt
	logErr   error
}

func newMemAccessRepo() *memAccessRepo {
	return &memAccessRepo{rows: make(map[string]*models.NoticeAccess)}
}

func accessKey(noticeID, wallet string) string {
	return noticeID + "|" + strings.ToLower(wallet)
}

func (m *memAccessRepo) Get(ctx context.Context, noticeID, wallet string) (*models.NoticeAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[accessKey(noticeID, wallet)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *row
	return &out, nil
}

func (m *memAccessRepo) row(noticeID, wallet string) *models.NoticeAccess {
	key := accessKey(noticeID, wallet)
	row, ok := m.rows[key]
	if !ok {
		row = &models.NoticeAccess{ID: uuid.NewString(), NoticeID: noticeID, WalletAddress: wallet}
		m.rows[key] = row
	}
	return row
}

func (m *memAccessRepo) RecordView(ctx context.Context, noticeID, wallet string, meta models.RequestMeta, at time.Time) (*models.NoticeAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.row(noticeID, wallet)
	if row.FirstViewedAt == nil {
		row.FirstViewedAt = &at
	}
	row.LastViewedAt = &at
	row.ViewCount++
	out := *row
	return &out, nil
}

func (m *memAccessRepo) Sign(ctx context.Context, noticeID, wallet, signature string, meta models.RequestMeta, at time.Time) (*models.NoticeAccess, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.row(noticeID, wallet)
	if row.Signed {
		out := *row
		return &out, false, nil
	}
	row.Signed = true
	row.SignedAt = &at
	row.Signature = &signature
	out := *row
	return &out, true, nil
}

func (m *memAccessRepo) LogAttempt(ctx context.Context, attempt *models.AccessAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logErr != nil {
		return m.logErr
	}
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memAccessRepo) ListAttempts(ctx context.Context, noticeID string, limit int) ([]models.AccessAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AccessAttempt, 0)
	for _, a := range m.attempts {
		if a.NoticeID == noticeID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memBlobRepo struct {
	mu        sync.Mutex
	blobs     map[string]*models.NoticeBlob
	createErr error
	attachErr error
}

func newMemBlobRepo() *memBlobRepo {
	return &memBlobRepo{blobs: make(map[string]*models.NoticeBlob)}
}

func (m *memBlobRepo) Create(ctx context.Context, blob *models.NoticeBlob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if blob.ID == "" {
		blob.ID = uuid.NewString()
	}
	if blob.CreatedAt.IsZero() {
		blob.CreatedAt = time.Now().UTC()
	}
	stored := *blob
	m.blobs[blob.ID] = &stored
	return nil
}

func (m *memBlobRepo) GetByID(ctx context.Context, id string) (*models.NoticeBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *b
	return &out, nil
}

func (m *memBlobRepo) GetByFileName(ctx context.Context, fileName string) (*models.NoticeBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.blobs {
		if b.FileName == fileName {
			out := *b
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memBlobRepo) LatestForNotice(ctx context.Context, noticeID string, kind models.BlobKind) (*models.NoticeBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.NoticeBlob
	for _, b := range m.blobs {
		if b.NoticeID == nil || *b.NoticeID != noticeID || b.Kind != kind {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	out := *latest
	return &out, nil
}

func (m *memBlobRepo) Attach(ctx context.Context, ids []string, noticeID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return 0, m.attachErr
	}
	var n int64
	for _, id := range ids {
		if b, ok := m.blobs[id]; ok && (b.NoticeID == nil || *b.NoticeID == noticeID) {
			nid := noticeID
			b.NoticeID = &nid
			n++
		}
	}
	return n, nil
}

func (m *memBlobRepo) ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]models.NoticeBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.NoticeBlob, 0)
	for _, b := range m.blobs {
		if b.NoticeID == nil && b.CreatedAt.Before(olderThan) {
			out = append(out, *b)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memBlobRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.blobs, id)
	return nil
}

type memDiscrepancyStore struct {
	mu    sync.Mutex
	items map[string]*models.Discrepancy
}

func newMemDiscrepancyStore() *memDiscrepancyStore {
	return &memDiscrepancyStore{items: make(map[string]*models.Discrepancy)}
}

func (m *memDiscrepancyStore) Upsert(ctx context.Context, d *models.Discrepancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(d.Kind) + "|" + strconv.FormatInt(d.TokenID, 10)
	if existing, ok := m.items[key]; ok && existing.Status == models.DiscrepancyOpen {
		*d = *existing
		return nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	stored := *d
	m.items[key] = &stored
	return nil
}

func (m *memDiscrepancyStore) List(ctx context.Context, status models.DiscrepancyStatus, limit int) ([]models.Discrepancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Discrepancy, 0)
	for _, d := range m.items {
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func (m *memDiscrepancyStore) Resolve(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.items {
		if d.ID == id && d.Status == models.DiscrepancyOpen {
			d.Status = models.DiscrepancyResolved
			d.ResolvedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeChain struct {
	mu        sync.Mutex
	owners    map[uint64]string
	uris      map[uint64]string
	events    []tron.TransferEvent
	head      uint64
	ownerErr  error
	txs       map[string]*tron.TxInfo
	txErr     error
	txCalls   int
}

func newFakeChain() *fakeChain {
	return &fakeChain{owners: map[uint64]string{}, uris: map[uint64]string{}, txs: map[string]*tron.TxInfo{}}
}

func (f *fakeChain) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ownerErr != nil {
		return "", f.ownerErr
	}
	owner, ok := f.owners[tokenID]
	if !ok {
		return "", tron.ErrTokenNotFound
	}
	return owner, nil
}

func (f *fakeChain) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uris[tokenID], nil
}

func (f *fakeChain) TransferEvents(ctx context.Context, fromBlock, toBlock uint64) ([]tron.TransferEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tron.TransferEvent, 0)
	for _, ev := range f.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeChain) LatestBlock(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) TransactionInfo(ctx context.Context, txHash string) (*tron.TxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	if f.txErr != nil {
		return nil, f.txErr
	}
	info, ok := f.txs[txHash]
	if !ok {
		return nil, tron.ErrTxNotFound
	}
	return info, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: make(map[string][]byte)}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = payload
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pattern)
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}
