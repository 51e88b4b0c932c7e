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
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// instance is opened by the first Instance call for its name. mu guards
// every field, so Shutdown and Close can read mgr while a concurrent
// Instance call is still opening it.
type instance struct {
	mu     sync.Mutex
	opened bool
	mgr    *Manager
	err    error
}

func (i *instance) open(c *Config) (*Manager, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.opened {
		i.mgr, i.err = Open(c)
		i.opened = true
	}
	return i.mgr, i.err
}

func (i *instance) manager() *Manager {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mgr
}

// instances holds the process-wide Manager of each region name.
var instances = cmap.New[*instance]()

// Instance returns this process's shared Manager for cfg.Name, opening it
// on first use. Later calls with the same name return the same Manager.
// A nil cfg means DefaultConfig.
func Instance(cfg *Config) (*Manager, error) {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Name == "" {
		c.Name = DefaultName(c.Discipline)
	}
	if err := VerifyConfig(&c); err != nil {
		return nil, err
	}

	inst := instances.Upsert(c.Name, nil, func(exist bool, inMap, _ *instance) *instance {
		if exist {
			return inMap
		}
		return &instance{}
	})
	m, err := inst.open(&c)
	if err != nil {
		// let the next caller retry
		instances.RemoveCb(c.Name, func(_ string, v *instance, exists bool) bool {
			return exists && v == inst
		})
		return nil, err
	}
	if d := m.Discipline(); d != c.Discipline {
		return nil, fmt.Errorf("%w: %s is open with %s locking, want %s", ErrIncompatible, c.Name, d, c.Discipline)
	}
	return m, nil
}

// forget drops m from the registry if it is the shared instance.
func forget(m *Manager) {
	instances.RemoveCb(m.cfg.Name, func(_ string, v *instance, exists bool) bool {
		return exists && v.manager() == m
	})
}

// Shutdown closes every Manager returned by Instance. Regions stay in
// place.
func Shutdown() error {
	var errs []error
	for _, inst := range instances.Items() {
		m := inst.manager()
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
