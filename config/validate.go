package config

import (
	"fmt"

	"nftstake/crypto"
	"nftstake/observability/logging"
)

// MaxBurst bounds the token bucket depth of a single client.
var MaxBurst = uint32(10_000)

// Validate checks the normalized configuration.
func (c *Config) Validate() error {
	switch c.IndexerDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("indexer: unknown driver %q", c.IndexerDriver)
	}
	if c.IndexerDriver == DriverPostgres && c.IndexerDSN == "" {
		return fmt.Errorf("indexer: postgres requires IndexerDSN")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if c.RateLimit.Enabled() && c.RateLimit.Burst == 0 {
		return fmt.Errorf("ratelimit: burst must be positive when requests_per_minute is set")
	}
	if c.RateLimit.Burst > MaxBurst {
		return fmt.Errorf("ratelimit: burst %d exceeds %d", c.RateLimit.Burst, MaxBurst)
	}
	return nil
}

// ProgramID decodes the configured staking program identity. The zero address
// means the built-in default.
func (c *Config) ProgramID() (crypto.Address, error) {
	if c.StakingProgramID == "" {
		return crypto.Address{}, nil
	}
	addr, _, err := crypto.DecodeAddress(c.StakingProgramID)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("staking: invalid StakingProgramID: %w", err)
	}
	return addr, nil
}
