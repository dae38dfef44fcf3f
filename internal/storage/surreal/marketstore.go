// Package surreal implements the market store on SurrealDB.
package surreal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/karimadel/borsa/internal/common"
	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

// tables defined at connect time. SurrealDB v3 errors on querying tables
// that do not exist yet.
var tables = []string{
	"instrument", "alias", "price", "income", "balance", "cashflow",
	"dividend", "shareholder", "news", "fund", "nav",
}

// Connect opens a SurrealDB session and ensures the schema exists.
func Connect(ctx context.Context, cfg common.StorageConfig, logger *common.Logger) (*surrealdb.DB, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB connected")
	return db, nil
}

// MarketStore implements interfaces.MarketStore on SurrealDB.
type MarketStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewMarketStore(db *surrealdb.DB, logger *common.Logger) *MarketStore {
	return &MarketStore{db: db, logger: logger}
}

// recordKey makes a string safe for use inside a record ID.
func recordKey(parts ...string) string {
	joined := strings.Join(parts, "_")
	joined = strings.ReplaceAll(joined, ".", "_")
	joined = strings.ReplaceAll(joined, " ", "_")
	return joined
}

// queryRows runs a SELECT and unwraps the first result set.
func queryRows[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return nil, nil
}

// upsert writes one record with retries.
func upsert[T any](ctx context.Context, db *surrealdb.DB, table, key string, data *T) error {
	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(table, key), "data": data}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]T](ctx, db, sql, vars); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to upsert %s record after retries: %w", table, lastErr)
}

// --- instruments ---

func (s *MarketStore) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	inst, err := surrealdb.Select[models.Instrument](ctx, s.db, surrealmodels.NewRecordID("instrument", recordKey(strings.ToUpper(symbol))))
	if err != nil {
		return nil, fmt.Errorf("failed to select instrument: %w", err)
	}
	if inst == nil || inst.Symbol == "" {
		return nil, interfaces.ErrNotFound
	}
	return inst, nil
}

func (s *MarketStore) GetInstrumentsBatch(ctx context.Context, symbols []string) ([]*models.Instrument, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	upper := make([]string, len(symbols))
	for i, sym := range symbols {
		upper[i] = strings.ToUpper(sym)
	}
	rows, err := queryRows[models.Instrument](ctx, s.db,
		"SELECT * FROM instrument WHERE symbol IN $symbols", map[string]any{"symbols": upper})
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument batch: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) ListInstruments(ctx context.Context) ([]*models.Instrument, error) {
	rows, err := queryRows[models.Instrument](ctx, s.db, "SELECT * FROM instrument ORDER BY symbol ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) ListBySector(ctx context.Context, sector string) ([]*models.Instrument, error) {
	rows, err := queryRows[models.Instrument](ctx, s.db,
		"SELECT * FROM instrument WHERE string::lowercase(sector) = string::lowercase($sector) ORDER BY market_cap DESC",
		map[string]any{"sector": sector})
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments by sector: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) TopMovers(ctx context.Context, direction string, limit int) ([]*models.Instrument, error) {
	order := "DESC"
	if direction == "losers" {
		order = "ASC"
	}
	if limit <= 0 {
		limit = 5
	}
	sql := fmt.Sprintf("SELECT * FROM instrument WHERE entity_type = 'stock' ORDER BY change_percent %s LIMIT %d", order, limit)
	rows, err := queryRows[models.Instrument](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get top movers: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) SaveInstrument(ctx context.Context, inst *models.Instrument) error {
	return upsert(ctx, s.db, "instrument", recordKey(strings.ToUpper(inst.Symbol)), inst)
}

// --- aliases ---

func (s *MarketStore) GetAliases(ctx context.Context, aliasNorm string) ([]*models.Alias, error) {
	rows, err := queryRows[models.Alias](ctx, s.db,
		"SELECT * FROM alias WHERE alias_norm = $norm", map[string]any{"norm": aliasNorm})
	if err != nil {
		return nil, fmt.Errorf("failed to get aliases: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) ListAliases(ctx context.Context) ([]*models.Alias, error) {
	rows, err := queryRows[models.Alias](ctx, s.db, "SELECT * FROM alias", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) SaveAlias(ctx context.Context, alias *models.Alias) error {
	return upsert(ctx, s.db, "alias", recordKey(alias.AliasNorm, alias.Symbol, alias.Market), alias)
}

// --- price series ---

// priceRow adds the owning symbol to a stored bar.
type priceRow struct {
	Symbol string `json:"symbol"`
	models.PricePoint
}

func (s *MarketStore) GetPriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]models.PricePoint, error) {
	rows, err := queryRows[priceRow](ctx, s.db,
		"SELECT * FROM price WHERE symbol = $symbol AND date >= $from AND date <= $to ORDER BY date ASC",
		map[string]any{"symbol": strings.ToUpper(symbol), "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("failed to get price series: %w", err)
	}
	out := make([]models.PricePoint, len(rows))
	for i, r := range rows {
		out[i] = r.PricePoint
	}
	return out, nil
}

func (s *MarketStore) SavePricePoints(ctx context.Context, symbol string, points []models.PricePoint) error {
	upper := strings.ToUpper(symbol)
	for _, p := range points {
		row := priceRow{Symbol: upper, PricePoint: p}
		key := recordKey(upper, p.Date.Format("2006-01-02"))
		if err := upsert(ctx, s.db, "price", key, &row); err != nil {
			return err
		}
	}
	return nil
}

// --- financial statements ---

func (s *MarketStore) GetIncomeRows(ctx context.Context, symbol, periodType string, limit int) ([]models.IncomeRow, error) {
	return statementRows[models.IncomeRow](ctx, s.db, "income", symbol, periodType, limit)
}

func (s *MarketStore) GetBalanceRows(ctx context.Context, symbol, periodType string, limit int) ([]models.BalanceRow, error) {
	return statementRows[models.BalanceRow](ctx, s.db, "balance", symbol, periodType, limit)
}

func (s *MarketStore) GetCashflowRows(ctx context.Context, symbol, periodType string, limit int) ([]models.CashflowRow, error) {
	return statementRows[models.CashflowRow](ctx, s.db, "cashflow", symbol, periodType, limit)
}

func statementRows[T any](ctx context.Context, db *surrealdb.DB, table, symbol, periodType string, limit int) ([]T, error) {
	if limit <= 0 {
		limit = 8
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE symbol = $symbol AND period_type = $period_type ORDER BY period_ending DESC LIMIT %d", table, limit)
	rows, err := queryRows[T](ctx, db, sql, map[string]any{
		"symbol":      strings.ToUpper(symbol),
		"period_type": periodType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s rows: %w", table, err)
	}
	return rows, nil
}

func (s *MarketStore) SaveIncomeRow(ctx context.Context, row *models.IncomeRow) error {
	key := recordKey(strings.ToUpper(row.Symbol), row.PeriodType, fmt.Sprintf("%d_%d", row.FiscalYear, row.FiscalQuarter))
	return upsert(ctx, s.db, "income", key, row)
}

func (s *MarketStore) SaveBalanceRow(ctx context.Context, row *models.BalanceRow) error {
	key := recordKey(strings.ToUpper(row.Symbol), row.PeriodType, fmt.Sprintf("%d_%d", row.FiscalYear, row.FiscalQuarter))
	return upsert(ctx, s.db, "balance", key, row)
}

func (s *MarketStore) SaveCashflowRow(ctx context.Context, row *models.CashflowRow) error {
	key := recordKey(strings.ToUpper(row.Symbol), row.PeriodType, fmt.Sprintf("%d_%d", row.FiscalYear, row.FiscalQuarter))
	return upsert(ctx, s.db, "cashflow", key, row)
}

// --- corporate data ---

func (s *MarketStore) GetDividends(ctx context.Context, symbol string, limit int) ([]models.Dividend, error) {
	if limit <= 0 {
		limit = 10
	}
	sql := fmt.Sprintf("SELECT * FROM dividend WHERE symbol = $symbol ORDER BY ex_date DESC LIMIT %d", limit)
	rows, err := queryRows[models.Dividend](ctx, s.db, sql, map[string]any{"symbol": strings.ToUpper(symbol)})
	if err != nil {
		return nil, fmt.Errorf("failed to get dividends: %w", err)
	}
	return rows, nil
}

func (s *MarketStore) SaveDividend(ctx context.Context, d *models.Dividend) error {
	key := recordKey(strings.ToUpper(d.Symbol), d.ExDate.Format("2006-01-02"))
	return upsert(ctx, s.db, "dividend", key, d)
}

func (s *MarketStore) GetShareholders(ctx context.Context, symbol string) ([]models.Shareholder, error) {
	rows, err := queryRows[models.Shareholder](ctx, s.db,
		"SELECT * FROM shareholder WHERE symbol = $symbol ORDER BY ownership_percent DESC",
		map[string]any{"symbol": strings.ToUpper(symbol)})
	if err != nil {
		return nil, fmt.Errorf("failed to get shareholders: %w", err)
	}
	return rows, nil
}

func (s *MarketStore) SaveShareholder(ctx context.Context, sh *models.Shareholder) error {
	key := recordKey(strings.ToUpper(sh.Symbol), sh.Name)
	return upsert(ctx, s.db, "shareholder", key, sh)
}

func (s *MarketStore) GetNews(ctx context.Context, symbol string, limit int) ([]models.NewsItem, error) {
	if limit <= 0 {
		limit = 5
	}
	sql := fmt.Sprintf("SELECT * FROM news WHERE symbol = $symbol ORDER BY published_at DESC LIMIT %d", limit)
	rows, err := queryRows[models.NewsItem](ctx, s.db, sql, map[string]any{"symbol": strings.ToUpper(symbol)})
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}
	return rows, nil
}

func (s *MarketStore) SaveNews(ctx context.Context, item *models.NewsItem) error {
	key := recordKey(strings.ToUpper(item.Symbol), item.PublishedAt.Format("2006-01-02"), item.Title)
	return upsert(ctx, s.db, "news", key, item)
}

// --- funds ---

func (s *MarketStore) GetFund(ctx context.Context, fundID string) (*models.Fund, error) {
	fund, err := surrealdb.Select[models.Fund](ctx, s.db, surrealmodels.NewRecordID("fund", recordKey(fundID)))
	if err != nil {
		return nil, fmt.Errorf("failed to select fund: %w", err)
	}
	if fund == nil || fund.FundID == "" {
		return nil, interfaces.ErrNotFound
	}
	return fund, nil
}

func (s *MarketStore) ListFunds(ctx context.Context) ([]*models.Fund, error) {
	rows, err := queryRows[models.Fund](ctx, s.db, "SELECT * FROM fund ORDER BY fund_id ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	return toPointers(rows), nil
}

func (s *MarketStore) SaveFund(ctx context.Context, fund *models.Fund) error {
	return upsert(ctx, s.db, "fund", recordKey(fund.FundID), fund)
}

func (s *MarketStore) GetNavSeries(ctx context.Context, fundID string, from, to time.Time) ([]models.NavPoint, error) {
	rows, err := queryRows[models.NavPoint](ctx, s.db,
		"SELECT * FROM nav WHERE fund_id = $fund_id AND date >= $from AND date <= $to ORDER BY date ASC",
		map[string]any{"fund_id": fundID, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("failed to get NAV series: %w", err)
	}
	return rows, nil
}

func (s *MarketStore) SaveNavPoints(ctx context.Context, fundID string, points []models.NavPoint) error {
	for _, p := range points {
		p.FundID = fundID
		key := recordKey(fundID, p.Date.Format("2006-01-02"))
		if err := upsert(ctx, s.db, "nav", key, &p); err != nil {
			return err
		}
	}
	return nil
}

func (s *MarketStore) Close() error {
	return s.db.Close(context.Background())
}

func toPointers[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

var _ interfaces.MarketStore = (*MarketStore)(nil)
