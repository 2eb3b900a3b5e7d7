// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package export packages the weight and return tables produced by an allocation engine
// with the grading request that the downstream reporting tool consumes.
package export

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/penny-vault/pv-allocator/allocation"
	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
)

var (
	ErrNilEngine          = errors.New("engine is nil")
	ErrIncompleteEnvelope = errors.New("envelope is missing weights or returns")
	ErrUnknownFormat      = errors.New("unknown output format")
)

// GradingRequest collects the grading and reporting selections given on the command line.
// They are forwarded untouched and never influence the allocation.
type GradingRequest struct {
	Score       []string `json:"score"`
	Allocation  []string `json:"allocation"`
	Performance []string `json:"performance"`
	Report      []string `json:"report"`
	Cumulative  []string `json:"cumulative"`
}

// Empty reports whether no selections were made
func (g GradingRequest) Empty() bool {
	return len(g.Score)+len(g.Allocation)+len(g.Performance)+len(g.Report)+len(g.Cumulative) == 0
}

// Parameters records the engine configuration used for a run
type Parameters struct {
	Preferred string  `json:"preferred"`
	Lookback  int     `json:"lookback"`
	Gamma     float64 `json:"gamma"`
	Epsilon   float64 `json:"epsilon"`
}

// Envelope is the unit handed to the grading collaborator
type Envelope struct {
	RunID      uuid.UUID            `json:"runId"`
	Created    time.Time            `json:"created"`
	Version    string               `json:"version"`
	Provider   string               `json:"provider,omitempty"`
	Exclude    string               `json:"exclude"`
	Eligible   []string             `json:"eligible"`
	Parameters Parameters           `json:"parameters"`
	Grading    GradingRequest       `json:"grading"`
	Digest     string               `json:"digest"`
	Weights    *dataframe.DataFrame `json:"weights"`
	Returns    *dataframe.DataFrame `json:"returns"`
}

// NewEnvelope computes the engine results and wraps them with run metadata
func NewEnvelope(engine *allocation.Engine, request GradingRequest) (*Envelope, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	weights, returns, err := engine.Results()
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not compute allocation results")
		return nil, err
	}

	digest, err := Digest(weights, returns)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not compute result digest")
		return nil, err
	}

	env := &Envelope{
		RunID:    uuid.New(),
		Created:  time.Now(),
		Version:  common.CurrentVersion.String(),
		Exclude:  engine.Exclude(),
		Eligible: engine.Eligible(),
		Parameters: Parameters{
			Preferred: engine.Preferred(),
			Lookback:  engine.Lookback(),
			Gamma:     engine.Gamma(),
			Epsilon:   engine.Epsilon(),
		},
		Grading: request,
		Digest:  digest,
		Weights: weights,
		Returns: returns,
	}

	log.Debug().Str("RunID", env.RunID.String()).Str("Digest", digest).Msg("created result envelope")

	return env, nil
}

// Digest is the hex encoded blake3 hash of the JSON encoding of weights followed by
// returns. Identical tables always produce the same digest.
func Digest(weights, returns *dataframe.DataFrame) (string, error) {
	h := blake3.New()

	for _, df := range []*dataframe.DataFrame{weights, returns} {
		data, err := json.Marshal(df)
		if err != nil {
			return "", err
		}
		if _, err := h.Write(data); err != nil {
			log.Error().Stack().Err(err).Msg("could not write table to blake3 hasher")
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
