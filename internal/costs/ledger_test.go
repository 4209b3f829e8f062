package costs

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

type memLogRepo struct {
	rows []types.GenerationLogRow
}

func (m *memLogRepo) Create(_ context.Context, rows []*types.GenerationLogRow) error {
	for _, row := range rows {
		r := *row
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		m.rows = append(m.rows, r)
	}
	return nil
}

func (m *memLogRepo) ListByReport(_ context.Context, reportID string) ([]types.GenerationLogRow, error) {
	var out []types.GenerationLogRow
	for _, row := range m.rows {
		if row.ReportID == reportID {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestCostMicro_LocalModelExample(t *testing.T) {
	// 100 prompt tokens at 0.0005 cr plus 50 generated at 0.0015 cr is
	// 0.125 credits.
	micro := CostMicro(types.GenerationResult{
		APITag:          types.APILocal,
		PromptTokens:    100,
		GeneratedTokens: 50,
	})
	if micro != 125_000 {
		t.Fatalf("got %d micro-credits, want 125000", micro)
	}
	if Credits(micro) != 0.125 {
		t.Fatalf("got %f credits, want 0.125", Credits(micro))
	}
}

func TestCostMicro_GroqIsFree(t *testing.T) {
	micro := CostMicro(types.GenerationResult{
		APITag:          types.APIGroq,
		PromptTokens:    1000,
		GeneratedTokens: 1000,
	})
	if micro != 0 {
		t.Fatalf("got %d, want 0", micro)
	}
}

func TestCostMicro_CacheTermsPriced(t *testing.T) {
	micro := CostMicro(types.GenerationResult{
		APITag:           types.APIOpenAI,
		CacheReadTokens:  10,
		CacheWriteTokens: 10,
	})
	// reads at input rate, writes at output rate
	if micro != 10*500+10*1500 {
		t.Fatalf("got %d", micro)
	}
}

func TestTokenBill_SkipsZeroRateAPIs(t *testing.T) {
	repo := &memLogRepo{}
	ledger := NewLedger(logger.NewNop(), repo)
	ctx := context.Background()

	err := ledger.Record(ctx, "r1", []types.GenerationResult{
		{APITag: types.APILocal, PromptTokens: 100, GeneratedTokens: 50},
		{APITag: types.APIGroq, PromptTokens: 9999, GeneratedTokens: 9999},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	lines, err := ledger.TokenBill(ctx, "r1")
	if err != nil {
		t.Fatalf("token bill: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 billed line, got %d", len(lines))
	}
	if lines[0].APITag != types.APILocal || lines[0].CostMicro != 125_000 {
		t.Fatalf("unexpected line: %+v", lines[0])
	}
}

func TestWalletBill_RunningBalance(t *testing.T) {
	repo := &memLogRepo{}
	ledger := NewLedger(logger.NewNop(), repo)
	ctx := context.Background()

	err := ledger.Record(ctx, "r1", []types.GenerationResult{
		{APITag: types.APILocal, PromptTokens: 100, GeneratedTokens: 50},
		{APITag: types.APILocal, PromptTokens: 200, GeneratedTokens: 100},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	opening := int64(1_000_000)
	lines, err := ledger.WalletBill(ctx, "r1", opening)
	if err != nil {
		t.Fatalf("wallet bill: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected opening plus 2 debits, got %d", len(lines))
	}
	if lines[0].BalanceMicro != opening {
		t.Fatalf("opening balance wrong: %+v", lines[0])
	}
	if lines[1].DeltaMicro != -125_000 || lines[1].BalanceMicro != 875_000 {
		t.Fatalf("first debit wrong: %+v", lines[1])
	}
	if lines[2].DeltaMicro != -250_000 || lines[2].BalanceMicro != 625_000 {
		t.Fatalf("second debit wrong: %+v", lines[2])
	}
}
