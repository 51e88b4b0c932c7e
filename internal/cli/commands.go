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

package cli

import (
	"context"
	"fmt"
	"slices"

	flag "github.com/spf13/pflag"

	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/pkg/shmkv"
)

// writeCmd builds insert, update and upsert, which differ only in the
// manager method they call.
func writeCmd(s *session, name, short string, op func(api.Manager, int32, string) error) *Command {
	return &Command{
		Flags: flag.NewFlagSet(name, flag.ContinueOnError),
		Usage: name + " <key> <value>",
		Short: short,
		Exec: func(_ context.Context, o *IO, args []string) error {
			key, value, err := parseKeyValue(args)
			if err != nil {
				return err
			}
			m, err := s.manager()
			if err != nil {
				return err
			}
			if err := op(m, key, value); err != nil {
				return fmt.Errorf("%s %d: %w", name, key, err)
			}
			o.Println("ok")
			return nil
		},
	}
}

// InsertCmd returns the insert command.
func InsertCmd(s *session) *Command {
	return writeCmd(s, "insert", "Add a new record", api.Manager.Insert)
}

// UpdateCmd returns the update command.
func UpdateCmd(s *session) *Command {
	return writeCmd(s, "update", "Replace the value of an existing record", api.Manager.Update)
}

// UpsertCmd returns the upsert command.
func UpsertCmd(s *session) *Command {
	return writeCmd(s, "upsert", "Insert or replace a record", api.Manager.Upsert)
}

// GetCmd returns the get command.
func GetCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <key>",
		Short: "Print the value of a record",
		Exec: func(_ context.Context, o *IO, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			m, err := s.manager()
			if err != nil {
				return err
			}
			if !m.Contains(key) {
				return fmt.Errorf("get %d: %w", key, shmkv.ErrNotFound)
			}
			o.Println(m.Lookup(key))
			return nil
		},
	}
}

// RemoveCmd returns the remove command.
func RemoveCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("remove", flag.ContinueOnError),
		Usage: "remove <key>",
		Short: "Delete a record",
		Exec: func(_ context.Context, o *IO, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			m, err := s.manager()
			if err != nil {
				return err
			}
			if err := m.Remove(key); err != nil {
				return fmt.Errorf("remove %d: %w", key, err)
			}
			o.Println("ok")
			return nil
		},
	}
}

// HasCmd returns the has command.
func HasCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("has", flag.ContinueOnError),
		Usage: "has <key>",
		Short: "Print whether a record exists",
		Exec: func(_ context.Context, o *IO, args []string) error {
			key, err := parseKey(args)
			if err != nil {
				return err
			}
			m, err := s.manager()
			if err != nil {
				return err
			}
			o.Println(m.Contains(key))
			return nil
		},
	}
}

// ListCmd returns the list command.
func ListCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("list", flag.ContinueOnError),
		Usage: "list",
		Short: "Print every record ordered by key",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			m, err := s.manager()
			if err != nil {
				return err
			}
			records := m.BatchLookup()
			keys := make([]int32, 0, len(records))
			for k := range records {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				o.Printf("%d\t%s\n", k, records[k])
			}
			return nil
		},
	}
}

// CountCmd returns the count command.
func CountCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("count", flag.ContinueOnError),
		Usage: "count",
		Short: "Print the number of records",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			m, err := s.manager()
			if err != nil {
				return err
			}
			o.Println(m.Count())
			return nil
		},
	}
}

// ClearCmd returns the clear command.
func ClearCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("clear", flag.ContinueOnError),
		Usage: "clear",
		Short: "Delete every record",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			m, err := s.manager()
			if err != nil {
				return err
			}
			if err := m.Clear(); err != nil {
				return err
			}
			o.Println("ok")
			return nil
		},
	}
}

// StatsCmd returns the stats command.
func StatsCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Print table statistics",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			m, err := s.manager()
			if err != nil {
				return err
			}
			return m.PrintStats(o.out)
		},
	}
}

// CleanupCmd returns the cleanup command.
func CleanupCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("cleanup", flag.ContinueOnError),
		Usage: "cleanup",
		Short: "Remove the region",
		Long: "Remove the region name. Processes still attached keep their mapping;\n" +
			"the next process to open the name creates a fresh region.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if err := shmkv.Cleanup(s.cfg.Name); err != nil {
				return err
			}
			o.Println("removed", s.cfg.Name)
			return nil
		},
	}
}
