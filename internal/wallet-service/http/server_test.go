package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/noloss-ledger-poc/internal/custody"
	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/internal/wallet-service/dto"
	"github.com/radieske/noloss-ledger-poc/internal/wallet-service/repo"
)

type fakeRepo struct {
	pullErr    error
	refundErr  error
	releaseErr error
	surplus    int64
	lastBet    uint64
	pulled     []dto.PullRequest
	refunded   []dto.RefundRequest
	released   []dto.Transfer
}

func (f *fakeRepo) GetOrCreateWallet(_ context.Context, userID string) (string, int64, error) {
	return "w-" + userID, 0, nil
}

func (f *fakeRepo) Deposit(_ context.Context, userID string, amount int64, _ string) (string, int64, error) {
	return "w-" + userID, amount, nil
}

func (f *fakeRepo) Pull(_ context.Context, key ledger.EscrowKey, userID string, amount int64) error {
	if f.pullErr != nil {
		return f.pullErr
	}
	f.pulled = append(f.pulled, dto.PullRequest{LedgerID: key.Instance, BetID: uint64(key.Bet), UserID: userID, AmountCents: amount})
	return nil
}

func (f *fakeRepo) Refund(_ context.Context, key ledger.EscrowKey, userID string) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunded = append(f.refunded, dto.RefundRequest{LedgerID: key.Instance, BetID: uint64(key.Bet), UserID: userID})
	return nil
}

func (f *fakeRepo) Release(_ context.Context, _ ledger.EscrowKey, transfers []dto.Transfer) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.released = append(f.released, transfers...)
	return nil
}

func (f *fakeRepo) Surplus(context.Context, ledger.EscrowKey) (int64, error) { return f.surplus, nil }

func (f *fakeRepo) LastBetID(context.Context, string) (uint64, error) { return f.lastBet, nil }

func (f *fakeRepo) AccrueYield(context.Context, ledger.EscrowKey, int64) error { return nil }

func (f *fakeRepo) Escrow(_ context.Context, key ledger.EscrowKey) (dto.EscrowResponse, error) {
	if key.Bet == 404 {
		return dto.EscrowResponse{}, repo.ErrNotFound
	}
	return dto.EscrowResponse{LedgerID: key.Instance, BetID: uint64(key.Bet), PrincipalCents: 10, BalanceCents: 12}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPull(t *testing.T) {
	f := &fakeRepo{}
	h := NewServer(zaptest.NewLogger(t), f).Router()

	rec := do(t, h, http.MethodPost, "/custody/pull", `{"ledgerId":"main","betId":3,"userId":"alice","amount_cents":250}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.pulled, 1)
	assert.Equal(t, dto.PullRequest{LedgerID: "main", BetID: 3, UserID: "alice", AmountCents: 250}, f.pulled[0])

	rec = do(t, h, http.MethodPost, "/custody/pull", `{"ledgerId":"main","betId":3,"userId":"","amount_cents":250}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// sem instância o escrow seria compartilhado
	rec = do(t, h, http.MethodPost, "/custody/pull", `{"betId":3,"userId":"alice","amount_cents":250}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.pulled, 1)
}

func TestRefund(t *testing.T) {
	f := &fakeRepo{}
	h := NewServer(zaptest.NewLogger(t), f).Router()

	rec := do(t, h, http.MethodPost, "/custody/refund", `{"ledgerId":"main","betId":3,"userId":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []dto.RefundRequest{{LedgerID: "main", BetID: 3, UserID: "alice"}}, f.refunded)

	rec = do(t, h, http.MethodPost, "/custody/refund", `{"betId":3,"userId":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLastBet(t *testing.T) {
	h := NewServer(zaptest.NewLogger(t), &fakeRepo{lastBet: 17}).Router()

	rec := do(t, h, http.MethodGet, "/custody/last-bet?ledgerId=main", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out dto.LastBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, dto.LastBetResponse{LedgerID: "main", BetID: 17}, out)

	rec = do(t, h, http.MethodGet, "/custody/last-bet", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustodyErrorsCarryCodes(t *testing.T) {
	cases := []struct {
		name   string
		repo   *fakeRepo
		path   string
		body   string
		status int
		code   string
	}{
		{"insufficient funds", &fakeRepo{pullErr: repo.ErrInsufficientFunds}, "/custody/pull",
			`{"ledgerId":"m","betId":1,"userId":"a","amount_cents":5}`, http.StatusConflict, custody.CodeInsufficientFunds},
		{"stake conflict", &fakeRepo{pullErr: repo.ErrStakeConflict}, "/custody/pull",
			`{"ledgerId":"m","betId":1,"userId":"a","amount_cents":5}`, http.StatusConflict, custody.CodeStakeConflict},
		{"refund after release", &fakeRepo{refundErr: repo.ErrAlreadyReleased}, "/custody/refund",
			`{"ledgerId":"m","betId":1,"userId":"a"}`, http.StatusConflict, custody.CodeAlreadyReleased},
		{"already released", &fakeRepo{releaseErr: repo.ErrAlreadyReleased}, "/custody/release",
			`{"ledgerId":"m","betId":1,"transfers":[{"userId":"a","amount_cents":5}]}`, http.StatusConflict, custody.CodeAlreadyReleased},
		{"unknown escrow", &fakeRepo{releaseErr: repo.ErrUnknownEscrow}, "/custody/release",
			`{"ledgerId":"m","betId":1,"transfers":[]}`, http.StatusNotFound, custody.CodeUnknownEscrow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewServer(zaptest.NewLogger(t), tc.repo).Router()
			rec := do(t, h, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code)

			var out dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, tc.code, out.Code)
		})
	}
}

func TestRelease_RejectsNegativeTransfer(t *testing.T) {
	f := &fakeRepo{}
	h := NewServer(zaptest.NewLogger(t), f).Router()

	rec := do(t, h, http.MethodPost, "/custody/release", `{"ledgerId":"m","betId":1,"transfers":[{"userId":"a","amount_cents":-1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.released)
}

func TestSurplusAndEscrow(t *testing.T) {
	h := NewServer(zaptest.NewLogger(t), &fakeRepo{surplus: 42}).Router()

	rec := do(t, h, http.MethodGet, "/custody/surplus?ledgerId=main&betId=8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var s dto.SurplusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, dto.SurplusResponse{LedgerID: "main", BetID: 8, SurplusCents: 42}, s)

	rec = do(t, h, http.MethodGet, "/custody/surplus?betId=8", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/custody/escrow?ledgerId=main&betId=404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeposit(t *testing.T) {
	h := NewServer(zaptest.NewLogger(t), &fakeRepo{}).Router()

	rec := do(t, h, http.MethodPost, "/wallet/deposit", `{"userId":"bob","amount_cents":900}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var w dto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, int64(900), w.BalanceCents)

	rec = do(t, h, http.MethodPost, "/wallet/deposit", `{"userId":"bob","amount_cents":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
