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

package allocation

// Option configures an Engine
type Option func(*Engine)

// WithLookback sets the lookback window in periods. The fixed allocation rule does not
// use it.
func WithLookback(lookback int) Option {
	return func(e *Engine) {
		e.lookback = lookback
	}
}

// WithGamma sets the regularization weight. The fixed allocation rule does not use it.
func WithGamma(gamma float64) Option {
	return func(e *Engine) {
		e.gamma = gamma
	}
}

// WithEpsilon sets the numerical tolerance. The fixed allocation rule does not use it.
func WithEpsilon(eps float64) Option {
	return func(e *Engine) {
		e.eps = eps
	}
}

// WithPreferredAsset overrides the security that receives the full allocation
func WithPreferredAsset(symbol string) Option {
	return func(e *Engine) {
		e.preferred = symbol
	}
}
