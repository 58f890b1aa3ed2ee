// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"giftcode-redemption/internal/config"
	"giftcode-redemption/internal/domain"
	"giftcode-redemption/internal/domain/model"
	"giftcode-redemption/internal/domain/ports/adapter"
	"giftcode-redemption/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testRedeemConfig() config.RedeemConfig {
	return config.RedeemConfig{
		MaxCaptchaCycles:  4,
		CycleDelayMin:     time.Millisecond,
		CycleDelayMax:     2 * time.Millisecond,
		InterAccountDelay: time.Millisecond,
		ParkCooldown:      time.Millisecond,
		ValidationAccount: "validator",
	}
}

func testConfig() config.Config {
	return config.Config{
		Redeem: testRedeemConfig(),
		Batch:  config.BatchConfig{Order: "group_major", ProgressInterval: time.Millisecond},
		Revalidate: config.RevalidateConfig{
			MaxCodesPerRun: 50,
			RetentionDays:  7,
		},
	}
}

func noSleep(ctx context.Context, d time.Duration) {}

// --- Repositories ---

type memCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*model.GiftCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: make(map[string]*model.GiftCode)}
}

func (r *memCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.GiftCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.codes[c.Code] = &cp
	return nil
}

func (r *memCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.GiftCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCodeRepo) ListByStatus(ctx context.Context, tx repository.Tx, statuses ...model.CodeStatus) ([]*model.GiftCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.GiftCode
	for _, c := range r.codes {
		for _, s := range statuses {
			if c.Status == s {
				cp := *c
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *memCodeRepo) UpdateStatus(ctx context.Context, tx repository.Tx, code string, to model.CodeStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok || c.Status == to {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *memCodeRepo) DeleteInvalidOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted []string
	for code, c := range r.codes {
		if c.Status == model.CodeStatusInvalid && c.UpdatedAt.Before(cutoff) {
			delete(r.codes, code)
			deleted = append(deleted, code)
		}
	}
	return deleted, nil
}

func (r *memCodeRepo) status(code string) model.CodeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.codes[code]; ok {
		return c.Status
	}
	return ""
}

type memRecordRepo struct {
	mu              sync.Mutex
	recs            map[string]*model.RedemptionRecord // key: accountID + "/" + code
	upsertManyCalls int
	findCalls       int
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{recs: make(map[string]*model.RedemptionRecord)}
}

func recKey(accountID, code string) string { return accountID + "/" + code }

func (r *memRecordRepo) Upsert(ctx context.Context, tx repository.Tx, rec *model.RedemptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recs[recKey(rec.AccountID, rec.Code)] = &cp
	return nil
}

func (r *memRecordRepo) UpsertMany(ctx context.Context, tx repository.Tx, recs []*model.RedemptionRecord) error {
	r.mu.Lock()
	r.upsertManyCalls++
	r.mu.Unlock()
	for _, rec := range recs {
		if err := r.Upsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *memRecordRepo) Find(ctx context.Context, tx repository.Tx, accountID, code string) (*model.RedemptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	rec, ok := r.recs[recKey(accountID, code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memRecordRepo) ListByCode(ctx context.Context, tx repository.Tx, code string) ([]*model.RedemptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RedemptionRecord
	for _, rec := range r.recs {
		if rec.Code == code {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRecordRepo) DeleteByCode(ctx context.Context, tx repository.Tx, code string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.recs {
		if rec.Code == code {
			delete(r.recs, k)
			n++
		}
	}
	return n, nil
}

func (r *memRecordRepo) Delete(ctx context.Context, tx repository.Tx, accountID, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, recKey(accountID, code))
	return nil
}

func (r *memRecordRepo) has(accountID, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.recs[recKey(accountID, code)]
	return ok
}

type memGroupRepo struct {
	groups  map[string]*model.Group
	members map[string][]*model.Account
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{
		groups:  make(map[string]*model.Group),
		members: make(map[string][]*model.Account),
	}
}

func (r *memGroupRepo) addGroup(id string, autoRedeem bool, memberIDs ...string) {
	r.groups[id] = &model.Group{ID: id, Name: id, AutoRedeem: autoRedeem}
	for _, m := range memberIDs {
		r.members[id] = append(r.members[id], &model.Account{ID: m, Name: "lord" + m, GroupID: id})
	}
}

func (r *memGroupRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

func (r *memGroupRepo) ListAutoRedeem(ctx context.Context, tx repository.Tx) ([]*model.Group, error) {
	var out []*model.Group
	for _, g := range r.groups {
		if g.AutoRedeem {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memGroupRepo) ListMembers(ctx context.Context, tx repository.Tx, groupID string) ([]*model.Account, error) {
	return r.members[groupID], nil
}

// --- Adapters ---

type mockGameClient struct {
	LoginFunc      func(ctx context.Context, accountID string) (*adapter.PlayerProfile, error)
	GetCaptchaFunc func(ctx context.Context, accountID string) ([]byte, error)
	SubmitFunc     func(ctx context.Context, accountID, code, answer string) (adapter.SubmitReply, error)

	mu      sync.Mutex
	submits []string // accountID + "/" + code
}

func (m *mockGameClient) Login(ctx context.Context, accountID string) (*adapter.PlayerProfile, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, accountID)
	}
	return &adapter.PlayerProfile{AccountID: accountID, Nickname: "lord" + accountID}, nil
}

func (m *mockGameClient) GetCaptcha(ctx context.Context, accountID string) ([]byte, error) {
	if m.GetCaptchaFunc != nil {
		return m.GetCaptchaFunc(ctx, accountID)
	}
	return []byte("png"), nil
}

func (m *mockGameClient) SubmitCode(ctx context.Context, accountID, code, answer string) (adapter.SubmitReply, error) {
	m.mu.Lock()
	m.submits = append(m.submits, recKey(accountID, code))
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, accountID, code, answer)
	}
	return adapter.SubmitReply{Message: "SUCCESS", ErrCode: 20000}, nil
}

func (m *mockGameClient) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submits)
}

type mockSolver struct {
	enabled   bool
	SolveFunc func(ctx context.Context, image []byte) (adapter.SolveResult, error)
}

func (m *mockSolver) Enabled() bool { return m.enabled }

func (m *mockSolver) Solve(ctx context.Context, image []byte) (adapter.SolveResult, error) {
	if m.SolveFunc != nil {
		return m.SolveFunc(ctx, image)
	}
	return adapter.SolveResult{Text: "abcd", OK: true, Confidence: 0.99}, nil
}

type mockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMockLocker() *mockLocker { return &mockLocker{held: make(map[string]string)} }

func (l *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockHeld
	}
	token := fmt.Sprintf("tok-%d", len(l.held))
	l.held[key] = token
	return token, nil
}

func (l *mockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *mockNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *mockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type mockRemovals struct {
	mu    sync.Mutex
	codes []string
}

func (r *mockRemovals) ScheduleRemoval(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

func (r *mockRemovals) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.codes...)
}

type recordingObserver struct {
	mu        sync.Mutex
	updates   []model.ProgressSnapshot
	completes []model.ProgressSnapshot
}

func (o *recordingObserver) Update(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, snap)
}

func (o *recordingObserver) Complete(ctx context.Context, batchID string, snap model.ProgressSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completes = append(o.completes, snap)
}

func (o *recordingObserver) final() (model.ProgressSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.completes) == 0 {
		return model.ProgressSnapshot{}, false
	}
	return o.completes[len(o.completes)-1], true
}
