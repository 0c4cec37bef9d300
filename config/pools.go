package config

import (
	"fmt"
	"os"
	"time"

	"luckystake/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PoolDefinition is one entry of the pool catalog
type PoolDefinition struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	IntervalDays int    `yaml:"intervalDays"`
	MinDeposit   string `yaml:"minDeposit"`
	EstimatedAPY string `yaml:"estimatedAPY"`
	Currency     string `yaml:"currency"`
}

type poolCatalogFile struct {
	Pools []PoolDefinition `yaml:"pools"`
}

// DefaultPoolCatalog is seeded when no catalog file is configured
func DefaultPoolCatalog() []PoolDefinition {
	return []PoolDefinition{
		{ID: models.PoolDaily, Name: "Daily Pool", IntervalDays: 1, MinDeposit: "1", EstimatedAPY: "4.2", Currency: "USDC"},
		{ID: models.PoolWeekly, Name: "Weekly Pool", IntervalDays: 7, MinDeposit: "1", EstimatedAPY: "5.8", Currency: "USDC"},
		{ID: models.PoolBiweekly, Name: "Biweekly Pool", IntervalDays: 15, MinDeposit: "1", EstimatedAPY: "6.4", Currency: "USDC"},
		{ID: models.PoolMonthly, Name: "Monthly Pool", IntervalDays: 30, MinDeposit: "1", EstimatedAPY: "7.1", Currency: "USDC"},
	}
}

// LoadPoolCatalog reads the catalog from path, or returns the default
// catalog when path is empty
func LoadPoolCatalog(path string) ([]PoolDefinition, error) {
	if path == "" {
		return DefaultPoolCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool catalog: %w", err)
	}
	return ParsePoolCatalog(data)
}

// ParsePoolCatalog decodes and validates a YAML pool catalog
func ParsePoolCatalog(data []byte) ([]PoolDefinition, error) {
	var file poolCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pool catalog: %w", err)
	}
	if len(file.Pools) == 0 {
		return nil, fmt.Errorf("pool catalog defines no pools")
	}

	seen := make(map[string]bool, len(file.Pools))
	for i := range file.Pools {
		def := &file.Pools[i]
		if def.ID == "" {
			return nil, fmt.Errorf("pool %d: id is required", i)
		}
		if seen[def.ID] {
			return nil, fmt.Errorf("pool %s defined twice", def.ID)
		}
		seen[def.ID] = true
		if def.IntervalDays < 1 {
			return nil, fmt.Errorf("pool %s: intervalDays must be at least 1", def.ID)
		}
		if def.Name == "" {
			def.Name = def.ID
		}
		if def.Currency == "" {
			def.Currency = "USDC"
		}
		if def.MinDeposit == "" {
			def.MinDeposit = "1"
		}
		if def.EstimatedAPY == "" {
			def.EstimatedAPY = "0"
		}
		if _, err := def.ToPool(time.Now()); err != nil {
			return nil, err
		}
	}
	return file.Pools, nil
}

// ToPool builds an empty pool whose first draw is scheduled after now
func (d PoolDefinition) ToPool(now time.Time) (*models.Pool, error) {
	minDeposit, err := decimal.NewFromString(d.MinDeposit)
	if err != nil || minDeposit.IsNegative() {
		return nil, fmt.Errorf("pool %s: invalid minDeposit %q", d.ID, d.MinDeposit)
	}
	apy, err := decimal.NewFromString(d.EstimatedAPY)
	if err != nil {
		return nil, fmt.Errorf("pool %s: invalid estimatedAPY %q", d.ID, d.EstimatedAPY)
	}

	pool := &models.Pool{
		ID:             d.ID,
		Name:           d.Name,
		IntervalDays:   d.IntervalDays,
		MinDeposit:     minDeposit,
		EstimatedAPY:   apy,
		Currency:       d.Currency,
		TotalDeposited: decimal.Zero,
		YieldAccrued:   decimal.Zero,
		PrizeHistory:   make([]models.PrizeHistoryEntry, 0),
	}
	pool.NextDrawAt = pool.NextDrawAfter(now)
	return pool, nil
}

// BuildPools converts a catalog into pools scheduled from now
func BuildPools(defs []PoolDefinition, now time.Time) ([]*models.Pool, error) {
	pools := make([]*models.Pool, 0, len(defs))
	for _, d := range defs {
		pool, err := d.ToPool(now)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}
