package ledgerctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/internal/ledger-service/dto"
	walletdto "github.com/radieske/noloss-ledger-poc/internal/wallet-service/dto"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate_AppliesSchemaInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS wallets").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	assert.ErrorContains(t, Migrate(context.Background(), db), "apply schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_CoversEveryTable(t *testing.T) {
	for _, table := range []string{"wallets", "wallet_ledger", "bet_escrow", "escrow_stakes", "bet_settlements", "bet_payouts"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestAccrueYield(t *testing.T) {
	var got walletdto.YieldRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custody/yield", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := run(t, "accrue-yield", "--wallet-url", srv.URL, "--ledger", "main", "--bet", "7", "--amount", "250")
	require.NoError(t, err)
	assert.Equal(t, walletdto.YieldRequest{LedgerID: "main", BetID: 7, AmountCents: 250}, got)
	assert.Contains(t, out, "accrued 250 cents into main/7")
}

func TestAccrueYield_ValidatesFlags(t *testing.T) {
	_, err := run(t, "accrue-yield", "--ledger", "main", "--amount", "10")
	assert.ErrorContains(t, err, "--bet")

	_, err = run(t, "accrue-yield", "--ledger", "", "--bet", "1", "--amount", "10")
	assert.ErrorContains(t, err, "--ledger")

	_, err = run(t, "accrue-yield", "--ledger", "main", "--bet", "1", "--amount", "0")
	assert.ErrorContains(t, err, "--amount")
}

func TestRefund(t *testing.T) {
	var got walletdto.RefundRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/custody/refund", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, err := run(t, "refund", "--wallet-url", srv.URL, "--ledger", "main", "--bet", "9", "--user", "alice")
	require.NoError(t, err)
	assert.Equal(t, walletdto.RefundRequest{LedgerID: "main", BetID: 9, UserID: "alice"}, got)
	assert.Contains(t, out, "refunded alice on main/9")

	_, err = run(t, "refund", "--wallet-url", srv.URL, "--ledger", "main", "--bet", "9")
	assert.ErrorContains(t, err, "--user")
}

func TestInspect_RendersStakesAndPayouts(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	details := ledger.BetDetails{
		ID:                 3,
		Creator:            "carol",
		Condition:          "rain in Lisbon",
		MinStake:           10,
		ExpirationTime:     at,
		ResolutionDeadline: at.Add(24 * time.Hour),
		Status:             ledger.StatusAutoResolved,
		TotalStakeTrue:     400,
		TotalStakeFalse:    100,
		Participants:       2,
		Attestations:       1,
		Settlement: &ledger.Settlement{
			Kind:    ledger.SettledBySupermajority,
			Outcome: true,
			Surplus: 25,
			Payouts: []ledger.Payout{{Participant: "carol", Principal: 400, Yield: 20}, {Participant: "dave", Principal: 100, Yield: 5}},
		},
	}
	stakes := []ledger.StakeRecord{
		{Participant: "carol", Amount: 400, Prediction: true, Attested: true, AttestedOutcome: true},
		{Participant: "dave", Amount: 100},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/bets/3":
			_ = json.NewEncoder(w).Encode(details)
		case "/v1/bets/3/stakes":
			_ = json.NewEncoder(w).Encode(stakes)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := run(t, "inspect", "--ledger-url", srv.URL, "--bet", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Bet 3  [AUTO_RESOLVED]")
	assert.Contains(t, out, "rain in Lisbon")
	assert.Contains(t, out, "carol")
	assert.Contains(t, out, "dave")
	assert.Contains(t, out, "Settled by SUPERMAJORITY (outcome true) surplus=25 dust=0")
}

func TestInspect_SurfacesLedgerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "bet not found", Kind: "not_found"})
	}))
	defer srv.Close()

	_, err := run(t, "inspect", "--ledger-url", srv.URL, "--bet", "99")
	assert.ErrorContains(t, err, "ledger http 404: bet not found")
}
