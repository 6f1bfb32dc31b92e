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

package node

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"github.com/naoina/toml"
	"github.com/pkg/errors"

	"github.com/powsim/powsim/blockchain"
	"github.com/powsim/powsim/params"
	"github.com/powsim/powsim/storage/database"
)

// tomlSettings keeps TOML keys identical to Go struct field names, the same
// convention the config dump has always used.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
}

// NeighbourInfo describes one overlay edge in the results export.
type NeighbourInfo struct {
	PeerID           string  `json:"peerId"`
	PropagationDelay float64 `json:"propagationDelay"`
	Bandwidth        float64 `json:"bandwidth"`
}

// PeerSnapshot is the per-peer section of results.json.
type PeerSnapshot struct {
	ID                string                    `json:"id"`
	Type              string                    `json:"type"`
	CPUPower          float64                   `json:"cpuPower"`
	IsSlowNetwork     bool                      `json:"isSlowNetwork"`
	Coins             float64                   `json:"coins"`
	CPUNetDescription string                    `json:"cpuNetDescription"`
	Neighbours        []*NeighbourInfo          `json:"neighbours"`
	Chain             *blockchain.ChainSnapshot `json:"blockChain"`
}

// Results is everything a finished run leaves behind.
type Results struct {
	RunID     string            `json:"runId"`
	Config    *params.SimConfig `json:"config"`
	Peers     []*PeerSnapshot   `json:"peers"`
	MPURatios []*MPURecord      `json:"mpuRatios"`
}

// CollectResults snapshots every replica and computes the MPU table.
func (d *Driver) CollectResults() *Results {
	results := &Results{
		RunID:     d.runID,
		Config:    d.cfg,
		MPURatios: CalculateMPURatios(d.peers),
	}
	for _, peer := range d.peers {
		snap := &PeerSnapshot{
			ID:                peer.ID(),
			Type:              peer.Type(),
			CPUPower:          peer.CPUPower(),
			IsSlowNetwork:     peer.IsSlowNetwork(),
			Coins:             peer.Coins(),
			CPUNetDescription: peer.CPUNetDescription(),
			Chain:             peer.Chain().Snapshot(),
		}
		for id, link := range peer.Neighbours() {
			snap.Neighbours = append(snap.Neighbours, &NeighbourInfo{
				PeerID:           id,
				PropagationDelay: link.PropagationDelay(),
				Bandwidth:        link.Bandwidth(),
			})
		}
		sort.Slice(snap.Neighbours, func(i, j int) bool {
			return snap.Neighbours[i].PeerID < snap.Neighbours[j].PeerID
		})
		results.Peers = append(results.Peers, snap)
	}
	return results
}

// Export writes results.json, summary.json and config.txt, and mirrors the
// snapshot into the configured key-value store.
func (d *Driver) Export(results *Results) error {
	if !d.cfg.SaveResults {
		logger.Info("SaveResults disabled, skipping export")
		return nil
	}
	outDir := filepath.Join(d.cfg.OutputDir, d.cfg.TestCaseName)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	if err := writeJSON(filepath.Join(outDir, "results.json"), results); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "summary.json"), results.MPURatios); err != nil {
		return err
	}
	if err := d.writeConfigDump(filepath.Join(outDir, "config.txt")); err != nil {
		return err
	}
	if err := d.writeSnapshotDB(filepath.Join(outDir, "db"), results); err != nil {
		return err
	}
	logger.Info("Results exported", "dir", outDir)
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", path)
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0644), "failed to write %s", path)
}

func (d *Driver) writeConfigDump(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create config dump")
	}
	defer f.Close()
	return errors.Wrap(tomlSettings.NewEncoder(f).Encode(d.cfg), "failed to encode config")
}

// writeSnapshotDB mirrors the per-peer snapshots and the MPU table into the
// configured backend, keyed for later lookup.
func (d *Driver) writeSnapshotDB(dir string, results *Results) error {
	db, err := database.NewDatabase(&database.DBConfig{Type: database.DBType(d.cfg.DBType), Dir: dir})
	if err != nil {
		return err
	}
	db = database.NewCachedDatabase(db)
	defer db.Close()

	for _, peer := range results.Peers {
		data, err := json.Marshal(peer)
		if err != nil {
			return err
		}
		if err := db.Put([]byte(fmt.Sprintf("peer/%s", peer.ID)), data); err != nil {
			return err
		}
	}
	summary, err := json.Marshal(results.MPURatios)
	if err != nil {
		return err
	}
	if err := db.Put([]byte("summary"), summary); err != nil {
		return err
	}
	return db.Put([]byte("runId"), []byte(results.RunID))
}
