/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package table

// Mixing constants. Mix1 is the murmur3 fmix32 finalizer; Mix2 uses an
// independent multiplier pair so the two hashes do not correlate.
const (
	goldenRatio = 0x9e3779b9

	mix1C1 = 0x85ebca6b
	mix1C2 = 0xc2b2ae35
	mix2C1 = 0x21f0aaad
	mix2C2 = 0x735a2d97
)

// Mix1 is a 32-bit avalanche mixer used for the ideal slot.
func Mix1(k uint32) uint32 {
	k ^= k >> 16
	k *= mix1C1
	k ^= k >> 13
	k *= mix1C2
	k ^= k >> 16
	return k
}

// Mix2 is a 32-bit avalanche mixer used for the probe stride.
func Mix2(k uint32) uint32 {
	k ^= k >> 16
	k *= mix2C1
	k ^= k >> 15
	k *= mix2C2
	k ^= k >> 15
	return k
}

// Position returns the ideal slot of key under seed.
func Position(key int32, seed uint32) uint32 {
	return Mix1(uint32(key)^seed) & mask
}

// Stride returns the probe stride of key under seed. It is always odd, so
// it is coprime to the power-of-two capacity and a walk of Capacity steps
// visits every slot exactly once.
func Stride(key int32, seed uint32) uint32 {
	return (Mix2(uint32(key)^(seed+goldenRatio)) & mask) | 1
}

// Probe returns the slot visited at step of a walk starting at start.
func Probe(start, step, stride uint32) uint32 {
	return (start + step*stride) & mask
}
