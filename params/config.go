// Copyright 2023 The powsim Authors
// This file is part of the powsim library.
//
// The powsim library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powsim library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powsim library. If not, see <http://www.gnu.org/licenses/>.

package params

import (
	"github.com/pkg/errors"
)

// SimConfig holds the process-wide simulation parameters. It is read-only
// after startup.
type SimConfig struct {
	TestCaseName string

	NumberOfPeers int // n, including the two adversaries

	// Fractions of the total hash power held by the adversaries S01 and S02.
	Z1 float64
	Z2 float64

	// Fraction of peers on a slow network link.
	Z0 float64

	AvgTxnIntervalTime  float64 // mean inter-arrival of transaction creation, virtual ms
	AvgBlockMiningTime  float64 // mean mining time, virtual ms, divided by cpu power
	InitialCoins        float64 // per-peer balance at genesis
	MaxNumBlocks        int     // soft-stop threshold on successful mines
	NumberOfTransaction int     // transaction-create events pre-seeded

	// Block formation thresholds.
	BlockTxnsMaxThreshold    int
	BlockTxnsTargetThreshold int
	BlockTxnsMinThreshold    int

	MiningReward float64 // coinbase amount credited to the miner

	RandomSeed int64

	SaveResults bool
	OutputDir   string

	// Snapshot store backend: "memory", "leveldb" or "badger".
	DBType string

	// Optional kafka export of admitted blocks. Empty list disables it.
	KafkaBrokers []string
	KafkaTopic   string

	MetricsEnabled bool
	MetricsPort    int
}

// DefaultSimConfig mirrors the reference experiment setup.
func DefaultSimConfig() *SimConfig {
	cfg := &SimConfig{
		TestCaseName:             "z1_10_z2_0",
		NumberOfPeers:            50,
		Z0:                       0.5,
		Z1:                       0.1,
		Z2:                       0.001,
		AvgTxnIntervalTime:       100,
		AvgBlockMiningTime:       10000,
		InitialCoins:             1000,
		BlockTxnsMaxThreshold:    1020,
		BlockTxnsTargetThreshold: 5,
		BlockTxnsMinThreshold:    2,
		MiningReward:             50,
		RandomSeed:               1,
		SaveResults:              true,
		OutputDir:                "output",
		DBType:                   "leveldb",
		KafkaTopic:               "powsim-blocks",
		MetricsPort:              61001,
	}
	cfg.MaxNumBlocks = cfg.NumberOfPeers * 3
	cfg.NumberOfTransaction = cfg.MaxNumBlocks * cfg.BlockTxnsTargetThreshold
	return cfg
}

// Validate rejects configurations the simulator cannot run.
func (cfg *SimConfig) Validate() error {
	if cfg.NumberOfPeers < 3 {
		return errors.Errorf("need at least 3 peers, got %d", cfg.NumberOfPeers)
	}
	if cfg.Z1 < 0 || cfg.Z2 < 0 {
		return errors.Errorf("negative adversary hash power: z1=%v z2=%v", cfg.Z1, cfg.Z2)
	}
	if cfg.Z1+cfg.Z2 > 1 {
		return errors.Errorf("adversary hash power exceeds total: z1=%v z2=%v", cfg.Z1, cfg.Z2)
	}
	if cfg.Z0 < 0 || cfg.Z0 > 1 {
		return errors.Errorf("slow-network fraction out of range: z0=%v", cfg.Z0)
	}
	if cfg.AvgTxnIntervalTime <= 0 || cfg.AvgBlockMiningTime <= 0 {
		return errors.New("average interval times must be positive")
	}
	if cfg.InitialCoins < 0 {
		return errors.Errorf("negative initial coins: %v", cfg.InitialCoins)
	}
	if cfg.MaxNumBlocks <= 0 || cfg.NumberOfTransaction <= 0 {
		return errors.New("stop conditions must be positive")
	}
	switch cfg.DBType {
	case "memory", "leveldb", "badger":
	default:
		return errors.Errorf("unknown db type %q", cfg.DBType)
	}
	return nil
}
