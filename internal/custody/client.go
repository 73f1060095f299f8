package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	walletdto "github.com/radieske/noloss-ledger-poc/internal/wallet-service/dto"
)

// Códigos devolvidos pelo wallet-service no corpo de erro
const (
	CodeInsufficientFunds  = "insufficient_funds"
	CodeInsufficientEscrow = "insufficient_escrow"
	CodeAlreadyReleased    = "already_released"
	CodeUnknownEscrow      = "unknown_escrow"
	CodeStakeConflict      = "stake_conflict"
)

var codeErrors = map[string]error{
	CodeInsufficientFunds:  ErrInsufficientFunds,
	CodeInsufficientEscrow: ErrInsufficientEscrow,
	CodeAlreadyReleased:    ErrAlreadyReleased,
	CodeUnknownEscrow:      ErrUnknownEscrow,
	CodeStakeConflict:      ErrStakeConflict,
}

// CodeFor é o inverso de codeErrors, usado pelo servidor
func CodeFor(err error) string {
	for code, e := range codeErrors {
		if errors.Is(err, e) {
			return code
		}
	}
	return ""
}

// Client implementa ledger.Custodian falando HTTP com o wallet-service
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Pull(ctx context.Context, key ledger.EscrowKey, participant string, amount int64) error {
	return c.post(ctx, "/custody/pull", walletdto.PullRequest{
		LedgerID:    key.Instance,
		BetID:       uint64(key.Bet),
		UserID:      participant,
		AmountCents: amount,
	}, nil)
}

func (c *Client) Refund(ctx context.Context, key ledger.EscrowKey, participant string) error {
	return c.post(ctx, "/custody/refund", walletdto.RefundRequest{
		LedgerID: key.Instance,
		BetID:    uint64(key.Bet),
		UserID:   participant,
	}, nil)
}

func (c *Client) Release(ctx context.Context, key ledger.EscrowKey, transfers []ledger.Transfer) error {
	req := walletdto.ReleaseRequest{
		LedgerID:  key.Instance,
		BetID:     uint64(key.Bet),
		Transfers: make([]walletdto.Transfer, 0, len(transfers)),
	}
	for _, t := range transfers {
		req.Transfers = append(req.Transfers, walletdto.Transfer{UserID: t.Participant, AmountCents: t.Amount})
	}
	return c.post(ctx, "/custody/release", req, nil)
}

func (c *Client) SurplusFor(ctx context.Context, key ledger.EscrowKey) (int64, error) {
	q := url.Values{
		"ledgerId": {key.Instance},
		"betId":    {strconv.FormatUint(uint64(key.Bet), 10)},
	}
	var out walletdto.SurplusResponse
	if err := c.get(ctx, "/custody/surplus?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return out.SurplusCents, nil
}

// LastBetID implementa ledger.BetIndex
func (c *Client) LastBetID(ctx context.Context, instance string) (ledger.BetID, error) {
	q := url.Values{"ledgerId": {instance}}
	var out walletdto.LastBetResponse
	if err := c.get(ctx, "/custody/last-bet?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return ledger.BetID(out.BetID), nil
}

// Ping confere se o wallet-service responde (usado no /healthz do ledger-service)
func (c *Client) Ping(ctx context.Context) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("wallet http %d", res.StatusCode)
	}
	return nil
}

// AccrueYield registra rendimento no escrow (usado pelo ledgerctl)
func (c *Client) AccrueYield(ctx context.Context, key ledger.EscrowKey, amount int64) error {
	return c.post(ctx, "/custody/yield", walletdto.YieldRequest{
		LedgerID:    key.Instance,
		BetID:       uint64(key.Bet),
		AmountCents: amount,
	}, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return decodeError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, _ := json.Marshal(in)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return decodeError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func decodeError(res *http.Response) error {
	var e walletdto.ErrorResponse
	if json.NewDecoder(res.Body).Decode(&e) == nil {
		if known, ok := codeErrors[e.Code]; ok {
			return known
		}
		if e.Error != "" {
			return fmt.Errorf("wallet http %d: %s", res.StatusCode, e.Error)
		}
	}
	return fmt.Errorf("wallet http %d", res.StatusCode)
}
