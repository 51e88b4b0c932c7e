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

// Package lifecycle implements create-or-attach for a named shared region.
// Exactly one process creates and initializes the region; every other
// process waits on a readiness flag at the start of the region before it
// touches anything else.
//
// A creator whose initialization fails publishes a failed state and
// removes the name, so attachers already waiting give up with
// ErrAbandoned. A creator that dies after claiming the region but before
// publishing readiness leaves later attachers waiting forever. Cleanup
// removes the name so the next attacher starts fresh.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/shmkv/internal/lock"
	"github.com/srediag/shmkv/internal/logger"
	"github.com/srediag/shmkv/internal/shm"
)

// Offsets of the words the lifecycle owns. Callers lay their own data out
// from HeaderSize onwards.
const (
	ReadyOffset   = 0
	BarrierOffset = 4
	HeaderSize    = 8
)

// Readiness states. The flag moves forward exactly once per region.
const (
	stateEmpty        = 0
	stateInitializing = 1
	stateReady        = 2
	stateFailed       = 3
)

// DefaultPollInterval is how often a non-creator checks the region.
const DefaultPollInterval = time.Millisecond

// ErrIncompatible is returned when an existing region cannot be used with
// the requested options.
var ErrIncompatible = errors.New("lifecycle: incompatible region")

// ErrAbandoned is returned to attachers of a region whose creator failed
// to initialize it.
var ErrAbandoned = errors.New("lifecycle: region abandoned by its creator")

var (
	errNotSized = errors.New("region not sized yet")
	errNotReady = errors.New("region not ready yet")
)

var log = logger.New("lifecycle")

// Options describes the region to attach to or create.
type Options struct {
	Name string
	// Size is the exact region size in bytes.
	Size int
	// Init runs once, in the creating process only, with readiness held
	// at Initializing. It must construct every lock in the region.
	Init func(mem []byte) error
	// Validate runs in attaching processes after readiness is observed.
	Validate func(mem []byte) error
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// Segment is one process's mapping of a region.
type Segment struct {
	name    string
	creator bool

	mu  sync.Mutex
	mem []byte
}

// AttachOrCreate opens the region called opts.Name, creating it when it
// does not exist. When several processes race, exactly one of them
// creates; the rest attach and block until it is ready.
func AttachOrCreate(opts Options) (*Segment, error) {
	if !shm.ValidName(opts.Name) {
		return nil, fmt.Errorf("invalid region name %q", opts.Name)
	}
	if opts.Size < HeaderSize {
		return nil, fmt.Errorf("region size %d is smaller than %d", opts.Size, HeaderSize)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	fd, err := shm.OpenExisting(opts.Name)
	if err == nil {
		return attach(fd, opts)
	}
	if !errors.Is(err, shm.ErrNotFound) {
		return nil, err
	}

	if !shm.CanCreate(uint64(opts.Size), shm.RegionPath(opts.Name)) {
		return nil, fmt.Errorf("create %s: %w", opts.Name, shm.ErrNoSpace)
	}
	fd, err = shm.CreateExclusive(opts.Name)
	if errors.Is(err, shm.ErrExists) {
		log.Debugf("lost creation race for %s, attaching", opts.Name)
		if fd, err = shm.OpenExisting(opts.Name); err != nil {
			return nil, err
		}
		return attach(fd, opts)
	}
	if err != nil {
		return nil, err
	}
	return create(fd, opts)
}

func create(fd int, opts Options) (seg *Segment, err error) {
	defer func() {
		if err != nil {
			log.Errorf("create %s failed: %v", opts.Name, err)
			if uerr := shm.Unlink(opts.Name); uerr != nil {
				log.Warnf("unlink %s after failed create: %v", opts.Name, uerr)
			}
		}
	}()
	defer shm.Close(fd)

	if err = shm.Resize(fd, opts.Size); err != nil {
		return nil, err
	}
	mem, err := shm.Map(fd, opts.Size)
	if err != nil {
		return nil, err
	}
	seg = &Segment{name: opts.Name, creator: true, mem: mem}
	if err = seg.initialize(opts.Init); err != nil {
		_ = shm.Unmap(mem)
		return nil, err
	}
	log.Infof("created region %s (%d bytes)", opts.Name, opts.Size)
	return seg, nil
}

func (s *Segment) initialize(init func([]byte) error) error {
	barrier := lock.NewMutex(s.mem, BarrierOffset)
	barrier.Init()
	barrier.Lock()
	defer barrier.Unlock()

	ready := shm.Word(s.mem, ReadyOffset)
	if !shm.AtomicCompareAndSwapUint32(ready, stateEmpty, stateInitializing) {
		return fmt.Errorf("region %s: readiness already claimed", s.name)
	}
	if init != nil {
		if err := init(s.mem); err != nil {
			shm.AtomicStoreUint32(ready, stateFailed)
			return fmt.Errorf("initialize %s: %w", s.name, err)
		}
	}
	// Publishes every write made by init.
	shm.AtomicStoreUint32(ready, stateReady)
	return nil
}

func attach(fd int, opts Options) (*Segment, error) {
	defer shm.Close(fd)

	poll := backoff.NewConstantBackOff(opts.PollInterval)

	// Mapping before the creator has sized the region would fault on
	// first access.
	err := backoff.Retry(func() error {
		size, err := shm.Size(fd)
		if err != nil {
			return backoff.Permanent(err)
		}
		switch {
		case size == 0:
			linked, err := shm.Linked(fd, opts.Name)
			if err != nil {
				return backoff.Permanent(err)
			}
			if !linked {
				return backoff.Permanent(fmt.Errorf("%w: %s was removed before it was sized",
					ErrAbandoned, opts.Name))
			}
			return errNotSized
		case size != opts.Size:
			return backoff.Permanent(fmt.Errorf("%w: %s is %d bytes, want %d",
				ErrIncompatible, opts.Name, size, opts.Size))
		}
		return nil
	}, poll)
	if err != nil {
		return nil, err
	}

	mem, err := shm.Map(fd, opts.Size)
	if err != nil {
		return nil, err
	}
	seg := &Segment{name: opts.Name, mem: mem}

	if !seg.Ready() {
		log.Debugf("waiting for %s to become ready", opts.Name)
		poll.Reset()
		err = backoff.Retry(func() error {
			switch seg.state() {
			case stateReady:
				return nil
			case stateFailed:
				return backoff.Permanent(fmt.Errorf("%w: %s failed to initialize",
					ErrAbandoned, opts.Name))
			}
			return errNotReady
		}, poll)
		if err != nil {
			_ = seg.Detach()
			return nil, err
		}
	}

	if opts.Validate != nil {
		if err := opts.Validate(mem); err != nil {
			_ = seg.Detach()
			return nil, err
		}
	}
	log.Debugf("attached to region %s", opts.Name)
	return seg, nil
}

// Name returns the region name.
func (s *Segment) Name() string { return s.name }

// Creator reports whether this process created the region.
func (s *Segment) Creator() bool { return s.creator }

// Mem returns the mapping, or nil after Detach.
func (s *Segment) Mem() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem
}

// Ready reports whether the creator has published readiness.
func (s *Segment) Ready() bool { return s.state() == stateReady }

func (s *Segment) state() uint32 {
	mem := s.Mem()
	if mem == nil {
		return stateEmpty
	}
	return shm.AtomicLoadUint32(shm.Word(mem, ReadyOffset))
}

// Detach unmaps the region. It never removes the name, and calling it
// again is a no-op.
func (s *Segment) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem == nil {
		return nil
	}
	err := shm.Unmap(s.mem)
	s.mem = nil
	return err
}

// Cleanup removes the region called name. It returns shm.ErrNotFound when
// no such region exists. Processes still attached keep their mapping.
func Cleanup(name string) error {
	if err := shm.Unlink(name); err != nil {
		if errors.Is(err, shm.ErrNotFound) {
			return err
		}
		return fmt.Errorf("cleanup %s: %w", name, err)
	}
	log.Infof("removed region %s", name)
	return nil
}
