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

// powsim runs one discrete-event simulation of a proof-of-work network with
// two selfish-mining adversaries and reports mining power utilization.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"github.com/powsim/powsim/cmd/utils"
	"github.com/powsim/powsim/log"
	"github.com/powsim/powsim/node"
	"github.com/powsim/powsim/params"
)

var logger = log.NewModuleLogger(log.CMD)

func main() {
	app := cli.NewApp()
	app.Name = "powsim"
	app.Usage = "proof-of-work selfish-mining network simulator"
	app.Action = runSimulation
	app.Flags = utils.SimFlags
	sort.Sort(cli.FlagsByName(app.Flags))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSimulation(ctx *cli.Context) error {
	log.ChangeGlobalLogLevel(ctx.GlobalInt(utils.VerbosityFlag.Name))

	cfg := params.DefaultSimConfig()
	if file := ctx.GlobalString(utils.ConfigFileFlag.Name); file != "" {
		if err := utils.LoadConfigFile(file, cfg); err != nil {
			return err
		}
	}
	utils.ApplyFlags(ctx, cfg)

	driver, err := node.New(cfg)
	if err != nil {
		return err
	}

	if cfg.MetricsEnabled {
		go startPrometheusExporter(cfg.MetricsPort)
	}

	// an interrupt force-stops the run; the panic sweep and the export
	// still happen
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		logger.Warn("Interrupt received, force stopping the simulation")
		driver.ForceStop()
	}()

	results, err := driver.Run()
	if err != nil {
		return err
	}
	for _, rec := range results.MPURatios {
		if rec.Type == "SelfishPeer" || rec.BlocksMinedByPeer > 0 {
			logger.Info("MPU", "peer", rec.PeerID, "type", rec.Type,
				"mpuAdv", rec.MPUAdv, "mpuOverall", rec.MPUOverall,
				"mined", rec.BlocksMinedByPeer, "onChain", rec.BlocksOnPublicChainByPeer)
		}
	}
	return nil
}

func startPrometheusExporter(port int) {
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting prometheus exporter", "addr", addr)
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error("Prometheus exporter stopped", "err", err)
	}
}
