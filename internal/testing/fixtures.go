package testing

import "github.com/Thetason/korean-stock-daily-report/internal/domain"

// FixtureDate is the session the fixtures describe, a Friday
const FixtureDate = "2024-06-07"

// NewStockFixtures returns a small universe: two surges, one plunge and one
// unchanged stock. Change rates:
//   - 000660 SK하이닉스 +7.69%
//   - 005930 삼성전자 +6.67%
//   - 068270 셀트리온 -16.67%
//   - 035420 NAVER 0%
func NewStockFixtures() []domain.StockRecord {
	return []domain.StockRecord{
		domain.NewStockRecord("005930", "삼성전자", 80000, 75000, 20_000_000),
		domain.NewStockRecord("000660", "SK하이닉스", 210000, 195000, 5_000_000),
		domain.NewStockRecord("068270", "셀트리온", 150000, 180000, 900_000),
		domain.NewStockRecord("035420", "NAVER", 170000, 170000, 700_000),
	}
}

// NewIndicesFixture returns a rising KOSPI and a slightly falling KOSDAQ
func NewIndicesFixture() domain.MarketIndices {
	return domain.MarketIndices{
		Date:   FixtureDate,
		KOSPI:  domain.NewIndexQuote(2722.67, 2689.5),
		KOSDAQ: domain.NewIndexQuote(864.71, 866.02),
		Source: "primary",
	}
}

// NewSnapshotFixture wraps NewStockFixtures in a snapshot
func NewSnapshotFixture() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{Date: FixtureDate, Records: NewStockFixtures()}
}
