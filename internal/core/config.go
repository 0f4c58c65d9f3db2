package core

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config keys and their documented defaults. A missing or unparseable value
// never fails the caller: the default is used and a warning is logged.
const (
	ConfigValuationMethod      = "valuation_method"
	ConfigVarianceThresholdPct = "variance_threshold_pct"
	ConfigExpiryWarningDays    = "expiry_warning_days"

	DefaultValuationMethod   = "FIFO"
	DefaultExpiryWarningDays = 30
)

// DefaultVarianceThresholdPct is the day-over-day valuation rate movement,
// in percent, above which the ledger aggregator logs a warning.
var DefaultVarianceThresholdPct = decimal.NewFromFloat(5.0)

// ConfigService resolves process parameters from the engine_config table.
type ConfigService interface {
	ValuationMethod(ctx context.Context) string
	VarianceThresholdPct(ctx context.Context) decimal.Decimal
	ExpiryWarningDays(ctx context.Context) int
}

type configService struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

func NewConfigService(pool *pgxpool.Pool, log *logrus.Logger) ConfigService {
	return &configService{pool: pool, log: log}
}

func (c *configService) lookup(ctx context.Context, key string) (string, bool) {
	var value string
	err := c.pool.QueryRow(ctx,
		"SELECT config_value FROM engine_config WHERE config_key = $1", key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			c.log.WithError(err).WithField("key", key).Warn("config lookup failed, using default")
		}
		return "", false
	}
	return value, true
}

// ValuationMethod returns "FIFO" or "FEFO". Anything else in the table is an
// invalid configuration, recovered locally by falling back to FIFO.
func (c *configService) ValuationMethod(ctx context.Context) string {
	raw, ok := c.lookup(ctx, ConfigValuationMethod)
	if !ok {
		return DefaultValuationMethod
	}
	method, err := normalizeValuationMethod(raw)
	if err != nil {
		c.log.WithField("value", raw).Warn("invalid valuation_method, falling back to FIFO")
		return DefaultValuationMethod
	}
	return method
}

func (c *configService) VarianceThresholdPct(ctx context.Context) decimal.Decimal {
	raw, ok := c.lookup(ctx, ConfigVarianceThresholdPct)
	if !ok {
		return DefaultVarianceThresholdPct
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || pct.IsNegative() {
		c.log.WithField("value", raw).Warn("invalid variance_threshold_pct, falling back to default")
		return DefaultVarianceThresholdPct
	}
	return pct
}

func (c *configService) ExpiryWarningDays(ctx context.Context) int {
	raw, ok := c.lookup(ctx, ConfigExpiryWarningDays)
	if !ok {
		return DefaultExpiryWarningDays
	}
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days < 0 {
		c.log.WithField("value", raw).Warn("invalid expiry_warning_days, falling back to default")
		return DefaultExpiryWarningDays
	}
	return days
}

func normalizeValuationMethod(raw string) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(raw))
	switch method {
	case "FIFO", "FEFO":
		return method, nil
	}
	return "", errors.New("valuation method must be FIFO or FEFO")
}
