package models

import (
	"sort"
	"time"

	"github.com/procureflow/backend/internal/types"
	"github.com/shopspring/decimal"
)

// ForecastStatus classifies how long a budget code will last at the current
// burn rate.
type ForecastStatus string

const (
	ForecastExhausted ForecastStatus = "exhausted"
	ForecastCritical  ForecastStatus = "critical" // less than 2 months left
	ForecastWarning   ForecastStatus = "warning"  // less than 4 months left
	ForecastMonitor   ForecastStatus = "monitor"  // less than 8 months left
	ForecastHealthy   ForecastStatus = "healthy"
	ForecastUnused    ForecastStatus = "unused" // no spend recorded yet
)

// MonthlySpend is the net spend of a budget code in one calendar month.
type MonthlySpend struct {
	Month  types.Month     `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// Forecast projects when a budget code runs out of money.
type Forecast struct {
	MonthlySpend   []MonthlySpend  `json:"monthlySpend"`
	AverageBurn    decimal.Decimal `json:"averageBurn"` // average net spend per active month
	MonthsLeft     decimal.Decimal `json:"monthsLeft"`
	ExhaustionDate *types.Month    `json:"exhaustionDate"`
	Status         ForecastStatus  `json:"status"`
}

// Forecast buckets the code's disbursements by calendar month, computes the
// average monthly burn and projects an exhaustion date from the remaining
// balance. Returns are netted against the month they happen in. The
// calculation is read-only.
func (b BudgetCode) Forecast(now time.Time) (Forecast, error) {
	var transactions []LedgerTransaction
	err := DB.
		Where("budget_code_id = ? AND type IN ?", b.ID, []TransactionType{TransactionDeduction, TransactionReturn}).
		Order("created_at ASC").
		Find(&transactions).Error
	if err != nil {
		return Forecast{}, err
	}

	byMonth := make(map[types.Month]decimal.Decimal)
	for _, t := range transactions {
		month := types.MonthOf(t.CreatedAt)
		if t.Type == TransactionReturn {
			byMonth[month] = byMonth[month].Sub(t.Amount)
		} else {
			byMonth[month] = byMonth[month].Add(t.Amount)
		}
	}

	months := make([]types.Month, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	forecast := Forecast{
		MonthlySpend: make([]MonthlySpend, 0, len(months)),
	}

	total := decimal.Zero
	for _, month := range months {
		forecast.MonthlySpend = append(forecast.MonthlySpend, MonthlySpend{Month: month, Amount: byMonth[month]})
		total = total.Add(byMonth[month])
	}

	if !b.Remaining().IsPositive() {
		forecast.Status = ForecastExhausted
		return forecast, nil
	}

	if len(months) == 0 || !total.IsPositive() {
		forecast.Status = ForecastUnused
		return forecast, nil
	}

	forecast.AverageBurn = total.Div(decimal.NewFromInt(int64(len(months))))
	forecast.MonthsLeft = b.Remaining().Div(forecast.AverageBurn)

	exhaustion := types.MonthOf(now).AddDate(0, int(forecast.MonthsLeft.Ceil().IntPart()))
	forecast.ExhaustionDate = &exhaustion

	switch {
	case forecast.MonthsLeft.LessThan(decimal.NewFromInt(2)):
		forecast.Status = ForecastCritical
	case forecast.MonthsLeft.LessThan(decimal.NewFromInt(4)):
		forecast.Status = ForecastWarning
	case forecast.MonthsLeft.LessThan(decimal.NewFromInt(8)):
		forecast.Status = ForecastMonitor
	default:
		forecast.Status = ForecastHealthy
	}

	return forecast, nil
}
