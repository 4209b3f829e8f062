package costs

import (
	"context"
	"fmt"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/repos"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

// Credits are fixed-point: one credit is 1_000_000 micro-credits. Token
// rates below are micro-credits per token.
const MicroPerCredit int64 = 1_000_000

type Rate struct {
	InputMicro      int64
	OutputMicro     int64
	CacheReadMicro  int64
	CacheWriteMicro int64
}

// Per-API pricing. Cache terms are priced only when the API reports the
// counts; reads bill at the input rate, writes at the output rate.
var rates = map[types.APITag]Rate{
	types.APILocal:  {InputMicro: 500, OutputMicro: 1500, CacheReadMicro: 500, CacheWriteMicro: 1500},
	types.APIOpenAI: {InputMicro: 500, OutputMicro: 1500, CacheReadMicro: 500, CacheWriteMicro: 1500},
	types.APIGroq:   {},
}

func RateFor(tag types.APITag) Rate {
	return rates[tag]
}

// CostMicro prices one generation result in micro-credits.
func CostMicro(res types.GenerationResult) int64 {
	r := rates[res.APITag]
	return int64(res.PromptTokens)*r.InputMicro +
		int64(res.GeneratedTokens)*r.OutputMicro +
		int64(res.CacheReadTokens)*r.CacheReadMicro +
		int64(res.CacheWriteTokens)*r.CacheWriteMicro
}

// Credits converts micro-credits to a display value.
func Credits(micro int64) float64 {
	return float64(micro) / float64(MicroPerCredit)
}

// Ledger persists priced per-call rows and derives the two billing views.
type Ledger interface {
	Record(ctx context.Context, reportID string, results []types.GenerationResult) error
	TokenBill(ctx context.Context, reportID string) ([]TokenBillLine, error)
	WalletBill(ctx context.Context, reportID string, openingMicro int64) ([]WalletLine, error)
}

// TokenBillLine is one billed call; only calls with a nonzero per-token cost
// appear on the token bill.
type TokenBillLine struct {
	APITag          types.APITag
	PromptTokens    int
	GeneratedTokens int
	CostMicro       int64
}

// WalletLine is one movement on the wallet view with the running balance
// after it. Credit additions have positive deltas, token debits negative.
type WalletLine struct {
	Description  string
	DeltaMicro   int64
	BalanceMicro int64
}

type ledger struct {
	log  *logger.Logger
	rows repos.GenerationLogRepo
}

func NewLedger(baseLog *logger.Logger, rows repos.GenerationLogRepo) Ledger {
	return &ledger{log: baseLog.With("service", "CostLedger"), rows: rows}
}

func (l *ledger) Record(ctx context.Context, reportID string, results []types.GenerationResult) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]*types.GenerationLogRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, &types.GenerationLogRow{
			ReportID:         reportID,
			APITag:           string(res.APITag),
			PromptTokens:     res.PromptTokens,
			GeneratedTokens:  res.GeneratedTokens,
			CacheReadTokens:  res.CacheReadTokens,
			CacheWriteTokens: res.CacheWriteTokens,
			DurationMicros:   res.DurationMicros,
			CostMicroCredits: CostMicro(res),
		})
	}
	return l.rows.Create(ctx, rows)
}

func (l *ledger) TokenBill(ctx context.Context, reportID string) ([]TokenBillLine, error) {
	rows, err := l.rows.ListByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	var lines []TokenBillLine
	for _, row := range rows {
		r := rates[types.APITag(row.APITag)]
		if r.InputMicro == 0 && r.OutputMicro == 0 {
			continue
		}
		lines = append(lines, TokenBillLine{
			APITag:          types.APITag(row.APITag),
			PromptTokens:    row.PromptTokens,
			GeneratedTokens: row.GeneratedTokens,
			CostMicro:       row.CostMicroCredits,
		})
	}
	return lines, nil
}

func (l *ledger) WalletBill(ctx context.Context, reportID string, openingMicro int64) ([]WalletLine, error) {
	rows, err := l.rows.ListByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	lines := []WalletLine{{
		Description:  "opening balance",
		DeltaMicro:   openingMicro,
		BalanceMicro: openingMicro,
	}}
	balance := openingMicro
	for _, row := range rows {
		if row.CostMicroCredits == 0 {
			continue
		}
		balance -= row.CostMicroCredits
		lines = append(lines, WalletLine{
			Description: fmt.Sprintf("%s generation (%d in / %d out tokens)",
				row.APITag, row.PromptTokens, row.GeneratedTokens),
			DeltaMicro:   -row.CostMicroCredits,
			BalanceMicro: balance,
		})
	}
	return lines, nil
}
