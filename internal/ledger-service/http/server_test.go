package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/noloss-ledger-poc/internal/custody"
	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/internal/ledger-service/dto"
)

// memCache segue a mesma regra do BetCache: só grava versão maior
type memCache struct {
	mu          sync.Mutex
	entries     map[uint64][]byte
	versions    map[uint64]uint64
	ttls        map[uint64]time.Duration
	invalidated []uint64
	rejected    int

	// beforeSet roda antes de cada Set, fora do lock
	beforeSet func(id, version uint64)
}

func newMemCache() *memCache {
	return &memCache{entries: map[uint64][]byte{}, versions: map[uint64]uint64{}, ttls: map[uint64]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, id uint64, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, id, version uint64, v any, ttl time.Duration) error {
	if hook := c.beforeSet; hook != nil {
		hook(id, version)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.versions[id]; ok && cur >= version {
		c.rejected++
		return nil
	}
	b, _ := json.Marshal(v)
	c.entries[id] = b
	c.versions[id] = version
	c.ttls[id] = ttl
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	delete(c.versions, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type mapIdem struct {
	mu sync.Mutex
	m  map[string]uint64
}

func (i *mapIdem) Lookup(k string) (uint64, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.m[k]
	return v, ok
}

func (i *mapIdem) Remember(k string, id uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.m[k] = id
}

type env struct {
	h     http.Handler
	cust  *custody.Memory
	cache *memCache
	now   time.Time
	mu    sync.Mutex
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{cust: custody.NewMemory(), cache: newMemCache(), now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	for _, p := range []string{"creator", "alice", "bob"} {
		e.cust.Deposit(p, 10_000)
	}
	l, err := ledger.New(context.Background(), ledger.Options{
		Factory:   ledger.StaticFactory("root"),
		Instance:  "svc",
		Params:    ledger.DefaultParams(),
		Custodian: e.cust,
		Logger:    zaptest.NewLogger(t),
		Clock:     e.clock,
	})
	require.NoError(t, err)
	e.h = NewServer(zaptest.NewLogger(t), l,
		WithCache(e.cache),
		WithIdempotency(&mapIdem{m: map[string]uint64{}}),
		WithClock(e.clock),
	).Router()
	return e
}

func (e *env) do(t *testing.T, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const createBody = `{"creatorId":"creator","minStake":10,"condition":"rain tomorrow","durationDays":1,"stake":400,"prediction":true}`

func TestBetLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/bets", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[dto.CreateBetResponse](t, rec)
	assert.Equal(t, uint64(1), created.BetID)

	rec = e.do(t, http.MethodPost, "/v1/bets/1/stakes", `{"participantId":"bob","amount":100,"prediction":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decodeBody[ledger.BetDetails](t, rec)
	assert.Equal(t, int64(100), d.TotalStakeFalse)

	e.cust.AccrueYield(ledger.EscrowKey{Instance: "svc", Bet: 1}, 25)
	e.advance(ledger.Day)
	rec = e.do(t, http.MethodPost, "/v1/bets/1/attestations", `{"participantId":"creator","outcome":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	e.advance(ledger.Day)
	rec = e.do(t, http.MethodPost, "/v1/bets/1/finalize", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d = decodeBody[ledger.BetDetails](t, rec)
	assert.Equal(t, ledger.StatusAutoResolved, d.Status)

	assert.Equal(t, int64(10_020), e.cust.Balance("creator"))
	assert.Equal(t, int64(10_005), e.cust.Balance("bob"))

	rec = e.do(t, http.MethodPost, "/v1/bets/1/finalize", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(ledger.KindIdempotency), decodeBody[dto.ErrorResponse](t, rec).Kind)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/bets", createBody).Code)

	cases := []struct {
		name, method, path, body string
		status                   int
		kind                     ledger.Kind
	}{
		{"stake too low", http.MethodPost, "/v1/bets/1/stakes", `{"participantId":"alice","amount":1,"prediction":true}`, http.StatusUnprocessableEntity, ledger.KindValidation},
		{"attest too early", http.MethodPost, "/v1/bets/1/attestations", `{"participantId":"creator","outcome":true}`, http.StatusConflict, ledger.KindTiming},
		{"not admin", http.MethodPost, "/v1/bets/1/admin-finalize", `{"callerId":"alice","outcome":true}`, http.StatusForbidden, ledger.KindAuthorization},
		{"unknown bet", http.MethodPost, "/v1/bets/7/finalize", "", http.StatusNotFound, ledger.KindNotFound},
		{"insolvent joiner", http.MethodPost, "/v1/bets/1/stakes", `{"participantId":"nobody","amount":50,"prediction":true}`, http.StatusBadGateway, ledger.KindCustody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, string(tc.kind), decodeBody[dto.ErrorResponse](t, rec).Kind)
		})
	}

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/v1/bets/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/v1/bets/1/stakes", "{").Code)
}

func TestCreateBetIdempotencyKey(t *testing.T) {
	e := newEnv(t)

	first := e.do(t, http.MethodPost, "/v1/bets", createBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	replay := e.do(t, http.MethodPost, "/v1/bets", createBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, replay.Code)

	assert.Equal(t, decodeBody[dto.CreateBetResponse](t, first).BetID, decodeBody[dto.CreateBetResponse](t, replay).BetID)
	assert.Equal(t, int64(10_000-400), e.cust.Balance("creator"))

	other := e.do(t, http.MethodPost, "/v1/bets", createBody, "Idempotency-Key", "def")
	assert.Equal(t, uint64(2), decodeBody[dto.CreateBetResponse](t, other).BetID)
}

func TestGetBetUsesCacheAndMutationsRefreshIt(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/bets", createBody).Code)

	rec := e.do(t, http.MethodGet, "/v1/bets/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	e.cache.mu.Lock()
	_, cached := e.cache.entries[1]
	ttl := e.cache.ttls[1]
	version := e.cache.versions[1]
	e.cache.mu.Unlock()
	assert.True(t, cached)
	assert.Equal(t, ledger.Day, ttl)
	assert.Equal(t, uint64(1), version)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/v1/bets/1/stakes", `{"participantId":"alice","amount":50,"prediction":true}`).Code)
	e.cache.mu.Lock()
	version = e.cache.versions[1]
	e.cache.mu.Unlock()
	assert.Equal(t, uint64(2), version)
	assert.Empty(t, e.cache.invalidated)

	d := decodeBody[ledger.BetDetails](t, e.do(t, http.MethodGet, "/v1/bets/1", ""))
	assert.Equal(t, int64(450), d.TotalStakeTrue)
	assert.Equal(t, "svc", d.Instance)
}

func TestSlowReadDoesNotOverwriteNewerJoin(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/bets", createBody).Code)

	// o GET já leu a versão 1; antes de gravar, um join completa e grava a 2
	var once sync.Once
	e.cache.beforeSet = func(_, version uint64) {
		if version != 1 {
			return
		}
		once.Do(func() {
			rec := e.do(t, http.MethodPost, "/v1/bets/1/stakes", `{"participantId":"alice","amount":50,"prediction":true}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	stale := decodeBody[ledger.BetDetails](t, e.do(t, http.MethodGet, "/v1/bets/1", ""))
	assert.Equal(t, 1, stale.Participants)

	e.cache.mu.Lock()
	assert.Equal(t, uint64(2), e.cache.versions[1])
	assert.Equal(t, 1, e.cache.rejected)
	e.cache.mu.Unlock()

	fresh := decodeBody[ledger.BetDetails](t, e.do(t, http.MethodGet, "/v1/bets/1", ""))
	assert.Equal(t, 2, fresh.Participants)
	assert.Equal(t, int64(450), fresh.TotalStakeTrue)
}

func TestParticipantStakeEndpoint(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/bets", createBody).Code)

	s := decodeBody[dto.StakeResponse](t, e.do(t, http.MethodGet, "/v1/bets/1/stakes/creator", ""))
	assert.Equal(t, int64(400), s.Amount)

	s = decodeBody[dto.StakeResponse](t, e.do(t, http.MethodGet, "/v1/bets/99/stakes/ghost", ""))
	assert.Zero(t, s.Amount)

	stakes := decodeBody[[]ledger.StakeRecord](t, e.do(t, http.MethodGet, "/v1/bets/1/stakes", ""))
	require.Len(t, stakes, 1)
	assert.Equal(t, "creator", stakes[0].Participant)
}

func TestAdminCancelAndAdministration(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/v1/bets", createBody).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/v1/bets/1/stakes", `{"participantId":"alice","amount":200,"prediction":false}`).Code)

	rec := e.do(t, http.MethodPost, "/v1/bets/1/admin-finalize", `{"callerId":"root","cancel":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	e.advance(ledger.Day)
	rec = e.do(t, http.MethodPost, "/v1/bets/1/admin-finalize", `{"callerId":"root","cancel":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[ledger.BetDetails](t, rec).Cancelled)
	assert.Equal(t, int64(10_000), e.cust.Balance("creator"))
	assert.Equal(t, int64(10_000), e.cust.Balance("alice"))

	rec = e.do(t, http.MethodPut, "/v1/admin/yield-rate", `{"callerId":"root","percent":8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint32(8), decodeBody[dto.YieldRateResponse](t, e.do(t, http.MethodGet, "/v1/admin/yield-rate", "")).Percent)

	rec = e.do(t, http.MethodPut, "/v1/admin/owner", `{"callerId":"root","newAdmin":"ops"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", decodeBody[dto.AdminResponse](t, e.do(t, http.MethodGet, "/v1/admin/owner", "")).Admin)

	rec = e.do(t, http.MethodPut, "/v1/admin/yield-rate", `{"callerId":"root","percent":9}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCacheTTLStopsAtNextTransition(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := ledger.BetDetails{ExpirationTime: now.Add(time.Hour), ResolutionDeadline: now.Add(25 * time.Hour)}

	assert.Equal(t, time.Hour, cacheTTL(d, now))
	assert.Equal(t, 23*time.Hour, cacheTTL(d, now.Add(2*time.Hour)))
	assert.Zero(t, cacheTTL(d, now.Add(30*time.Hour)))

	d.Settlement = &ledger.Settlement{}
	assert.Zero(t, cacheTTL(d, now))
}
