// Copyright 2023 The powsim Authors
// This file is part of powsim.
//
// powsim is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// powsim is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with powsim. If not, see <http://www.gnu.org/licenses/>.

package utils

import (
	"bufio"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/powsim/powsim/params"
)

var (
	TestCaseNameFlag = cli.StringFlag{
		Name:  "testcase",
		Usage: "Name of the experiment, used as the output subdirectory",
	}
	NumberOfPeersFlag = cli.IntFlag{
		Name:  "peers",
		Usage: "Number of peers, the two adversaries included",
	}
	Z0Flag = cli.Float64Flag{
		Name:  "z0",
		Usage: "Fraction of peers on slow network links",
	}
	Z1Flag = cli.Float64Flag{
		Name:  "z1",
		Usage: "Hash power of adversary S01",
	}
	Z2Flag = cli.Float64Flag{
		Name:  "z2",
		Usage: "Hash power of adversary S02",
	}
	TxnIntervalFlag = cli.Float64Flag{
		Name:  "txinterval",
		Usage: "Mean transaction inter-arrival time in virtual ms",
	}
	BlockIntervalFlag = cli.Float64Flag{
		Name:  "blockinterval",
		Usage: "Mean block mining time in virtual ms",
	}
	InitialCoinsFlag = cli.Float64Flag{
		Name:  "coins",
		Usage: "Per-peer balance at genesis",
	}
	MaxBlocksFlag = cli.IntFlag{
		Name:  "maxblocks",
		Usage: "Soft-stop threshold on successfully mined blocks",
	}
	NumTxnsFlag = cli.IntFlag{
		Name:  "txns",
		Usage: "Number of transaction-create events to pre-seed",
	}
	SeedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "Random seed; the same seed reproduces the run exactly",
	}
	NoSaveFlag = cli.BoolFlag{
		Name:  "nosave",
		Usage: "Skip writing result artifacts",
	}
	OutputDirFlag = cli.StringFlag{
		Name:  "outdir",
		Usage: "Directory the result artifacts are written under",
	}
	DBTypeFlag = cli.StringFlag{
		Name:  "db.type",
		Usage: "Snapshot store backend (memory, leveldb, badger)",
	}
	KafkaBrokersFlag = cli.StringFlag{
		Name:  "kafka.brokers",
		Usage: "Comma-separated kafka brokers for block event export",
	}
	KafkaTopicFlag = cli.StringFlag{
		Name:  "kafka.topic",
		Usage: "Kafka topic for block event export",
	}
	MetricsEnabledFlag = cli.BoolFlag{
		Name:  "metrics",
		Usage: "Serve prometheus metrics while the run is going",
	}
	MetricsPortFlag = cli.IntFlag{
		Name:  "metrics.port",
		Usage: "Prometheus exporter port",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=error 1=warn 2=info 3=debug",
		Value: 2,
	}
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
)

// SimFlags is the flag table of the simulator binary.
var SimFlags = []cli.Flag{
	TestCaseNameFlag,
	NumberOfPeersFlag,
	Z0Flag,
	Z1Flag,
	Z2Flag,
	TxnIntervalFlag,
	BlockIntervalFlag,
	InitialCoinsFlag,
	MaxBlocksFlag,
	NumTxnsFlag,
	SeedFlag,
	NoSaveFlag,
	OutputDirFlag,
	DBTypeFlag,
	KafkaBrokersFlag,
	KafkaTopicFlag,
	MetricsEnabledFlag,
	MetricsPortFlag,
	VerbosityFlag,
	ConfigFileFlag,
}

// tomlSettings keeps TOML keys identical to Go struct field names.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return errors.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// LoadConfigFile overlays a TOML file onto cfg before flags apply.
func LoadConfigFile(path string, cfg *params.SimConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()
	return errors.Wrap(tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg), "failed to decode config file")
}

// ApplyFlags writes the command line over the defaults.
func ApplyFlags(ctx *cli.Context, cfg *params.SimConfig) {
	if ctx.GlobalIsSet(TestCaseNameFlag.Name) {
		cfg.TestCaseName = ctx.GlobalString(TestCaseNameFlag.Name)
	}
	if ctx.GlobalIsSet(NumberOfPeersFlag.Name) {
		cfg.NumberOfPeers = ctx.GlobalInt(NumberOfPeersFlag.Name)
		cfg.MaxNumBlocks = cfg.NumberOfPeers * 3
		cfg.NumberOfTransaction = cfg.MaxNumBlocks * cfg.BlockTxnsTargetThreshold
	}
	if ctx.GlobalIsSet(Z0Flag.Name) {
		cfg.Z0 = ctx.GlobalFloat64(Z0Flag.Name)
	}
	if ctx.GlobalIsSet(Z1Flag.Name) {
		cfg.Z1 = ctx.GlobalFloat64(Z1Flag.Name)
	}
	if ctx.GlobalIsSet(Z2Flag.Name) {
		cfg.Z2 = ctx.GlobalFloat64(Z2Flag.Name)
	}
	if ctx.GlobalIsSet(TxnIntervalFlag.Name) {
		cfg.AvgTxnIntervalTime = ctx.GlobalFloat64(TxnIntervalFlag.Name)
	}
	if ctx.GlobalIsSet(BlockIntervalFlag.Name) {
		cfg.AvgBlockMiningTime = ctx.GlobalFloat64(BlockIntervalFlag.Name)
	}
	if ctx.GlobalIsSet(InitialCoinsFlag.Name) {
		cfg.InitialCoins = ctx.GlobalFloat64(InitialCoinsFlag.Name)
	}
	if ctx.GlobalIsSet(MaxBlocksFlag.Name) {
		cfg.MaxNumBlocks = ctx.GlobalInt(MaxBlocksFlag.Name)
	}
	if ctx.GlobalIsSet(NumTxnsFlag.Name) {
		cfg.NumberOfTransaction = ctx.GlobalInt(NumTxnsFlag.Name)
	}
	if ctx.GlobalIsSet(SeedFlag.Name) {
		cfg.RandomSeed = ctx.GlobalInt64(SeedFlag.Name)
	}
	if ctx.GlobalBool(NoSaveFlag.Name) {
		cfg.SaveResults = false
	}
	if ctx.GlobalIsSet(OutputDirFlag.Name) {
		cfg.OutputDir = ctx.GlobalString(OutputDirFlag.Name)
	}
	if ctx.GlobalIsSet(DBTypeFlag.Name) {
		cfg.DBType = ctx.GlobalString(DBTypeFlag.Name)
	}
	if ctx.GlobalIsSet(KafkaBrokersFlag.Name) {
		cfg.KafkaBrokers = strings.Split(ctx.GlobalString(KafkaBrokersFlag.Name), ",")
	}
	if ctx.GlobalIsSet(KafkaTopicFlag.Name) {
		cfg.KafkaTopic = ctx.GlobalString(KafkaTopicFlag.Name)
	}
	if ctx.GlobalBool(MetricsEnabledFlag.Name) {
		cfg.MetricsEnabled = true
	}
	if ctx.GlobalIsSet(MetricsPortFlag.Name) {
		cfg.MetricsPort = ctx.GlobalInt(MetricsPortFlag.Name)
	}
}
