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

package shmkv

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shmkv/internal/lifecycle"
	"github.com/srediag/shmkv/internal/lock"
	"github.com/srediag/shmkv/internal/shm"
)

// Discipline selects how table access is synchronized.
type Discipline = lock.Kind

const (
	// Exclusive serializes every operation.
	Exclusive = lock.Exclusive
	// ReaderWriter lets reads run concurrently.
	ReaderWriter = lock.ReaderWriter
)

// ParseDiscipline parses "exclusive" or "rwlock".
func ParseDiscipline(s string) (Discipline, error) {
	return lock.ParseKind(s)
}

// Default region names, one per discipline so the two never collide.
const (
	DefaultExclusiveName = "shmkv_exclusive"
	DefaultRWLockName    = "shmkv_rwlock"
)

// DefaultName returns the default region name for d.
func DefaultName(d Discipline) string {
	if d == ReaderWriter {
		return DefaultRWLockName
	}
	return DefaultExclusiveName
}

// Config describes the region a Manager opens.
type Config struct {
	// Name of the region. Every process using the same name shares one
	// table.
	Name string
	// Discipline must match the one the region was created with.
	Discipline Discipline
	// Registerer, when set, receives the Manager's prometheus collector.
	Registerer prometheus.Registerer
	// PollInterval is how often an attaching process checks whether the
	// creator has finished.
	PollInterval time.Duration
}

// DefaultConfig returns the exclusive discipline on its default name.
func DefaultConfig() *Config {
	return &Config{
		Name:         DefaultExclusiveName,
		Discipline:   Exclusive,
		PollInterval: lifecycle.DefaultPollInterval,
	}
}

// VerifyConfig reports the first problem with config.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.Name == "" {
		return errors.New("region name is empty")
	}
	if !shm.ValidName(config.Name) {
		return fmt.Errorf("invalid region name %q", config.Name)
	}
	if !config.Discipline.Valid() {
		return fmt.Errorf("unknown lock discipline %d", uint32(config.Discipline))
	}
	if config.PollInterval < 0 {
		return fmt.Errorf("poll interval %s is negative", config.PollInterval)
	}
	return nil
}
