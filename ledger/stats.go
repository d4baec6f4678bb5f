/*
stats.go - Time-bucketed income/expense statistics

PURPOSE:
  Derives the chart series from the transaction log. Three horizons share
  one shape: materialize a fixed ordered sequence of calendar buckets up
  front, fetch the user's transactions for the covering range, and fold
  each one into its bucket by exact calendar key. Buckets with no
  transactions stay at zero so gaps are visible.

BUCKET KEYS:
  Weekly:  ISO date ("2006-01-02"), labeled with the weekday ("Mon")
  Monthly: short month + short year ("Jan 06")
  Yearly:  four-digit year ("2006")

SERIES SHAPE:
  Per bucket, two adjacent points: the income total carrying the bucket's
  label, then the expense total unlabeled. The fetched transactions ride
  along for incidental display.
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ChartPoint is one bar of the paired income/expense series.
type ChartPoint struct {
	Value decimal.Decimal `json:"value"`
	Label string          `json:"label,omitempty"`
}

// Stats is a bucketed series plus the transactions it was derived from.
type Stats struct {
	Points       []ChartPoint   `json:"points"`
	Transactions []*Transaction `json:"transactions"`
}

// StatsAggregator folds the transaction log into calendar buckets.
type StatsAggregator struct {
	Transactions TransactionStore

	// Now is the clock the horizons are anchored on. Overridable in tests.
	Now func() time.Time
}

func NewStatsAggregator(store TransactionStore) *StatsAggregator {
	return &StatsAggregator{
		Transactions: store,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

type statBucket struct {
	key     string
	label   string
	income  decimal.Decimal
	expense decimal.Decimal
}

// =============================================================================
// HORIZONS
// =============================================================================

// Weekly buckets the last 7 days, oldest first, today last.
func (s *StatsAggregator) Weekly(ctx context.Context, userID string) (*Stats, error) {
	today := s.Now()
	buckets := make([]statBucket, 0, 7)
	for d := 6; d >= 0; d-- {
		day := today.AddDate(0, 0, -d)
		buckets = append(buckets, statBucket{
			key:   day.Format("2006-01-02"),
			label: day.Format("Mon"),
		})
	}

	from := startOfDay(today.AddDate(0, 0, -6))
	return s.aggregate(ctx, userID, from, today, buckets, func(t time.Time) string {
		return t.Format("2006-01-02")
	})
}

// Monthly buckets the last 12 months, oldest first. Month arithmetic is
// anchored at the first of the month so a 31st never normalizes into a
// neighboring bucket.
func (s *StatsAggregator) Monthly(ctx context.Context, userID string) (*Stats, error) {
	today := s.Now()
	anchor := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	buckets := make([]statBucket, 0, 12)
	for i := 11; i >= 0; i-- {
		m := anchor.AddDate(0, -i, 0)
		buckets = append(buckets, statBucket{
			key:   m.Format("Jan 06"),
			label: m.Format("Jan 06"),
		})
	}

	from := anchor.AddDate(0, -11, 0)
	return s.aggregate(ctx, userID, from, today, buckets, func(t time.Time) string {
		return t.Format("Jan 06")
	})
}

// Yearly buckets every year from the user's earliest transaction through
// the current year.
func (s *StatsAggregator) Yearly(ctx context.Context, userID string) (*Stats, error) {
	txs, err := s.Transactions.TransactionsByUser(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, upstream("query transactions", err)
	}

	currentYear := s.Now().Year()
	firstYear := currentYear
	for _, tx := range txs {
		if y := tx.Date.Year(); y < firstYear {
			firstYear = y
		}
	}

	buckets := make([]statBucket, 0, currentYear-firstYear+1)
	for y := firstYear; y <= currentYear; y++ {
		label := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC).Format("2006")
		buckets = append(buckets, statBucket{key: label, label: label})
	}

	fold(buckets, txs, func(t time.Time) string { return t.Format("2006") })
	return series(buckets, txs), nil
}

// =============================================================================
// SHARED FOLD
// =============================================================================

func (s *StatsAggregator) aggregate(ctx context.Context, userID string, from, to time.Time, buckets []statBucket, key func(time.Time) string) (*Stats, error) {
	txs, err := s.Transactions.TransactionsByUser(ctx, userID, from, to)
	if err != nil {
		return nil, upstream("query transactions", err)
	}
	fold(buckets, txs, key)
	return series(buckets, txs), nil
}

func fold(buckets []statBucket, txs []*Transaction, key func(time.Time) string) {
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.key] = i
	}
	for _, tx := range txs {
		i, ok := index[key(tx.Date)]
		if !ok {
			continue
		}
		switch tx.Type {
		case TypeIncome:
			buckets[i].income = buckets[i].income.Add(tx.Amount)
		case TypeExpense:
			buckets[i].expense = buckets[i].expense.Add(tx.Amount)
		}
	}
}

func series(buckets []statBucket, txs []*Transaction) *Stats {
	points := make([]ChartPoint, 0, len(buckets)*2)
	for _, b := range buckets {
		points = append(points,
			ChartPoint{Value: b.income, Label: b.label},
			ChartPoint{Value: b.expense},
		)
	}
	if txs == nil {
		txs = []*Transaction{}
	}
	return &Stats{Points: points, Transactions: txs}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
