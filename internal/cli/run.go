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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/shmkv/adapter"
	"github.com/srediag/shmkv/api"
	"github.com/srediag/shmkv/internal/logger"
	"github.com/srediag/shmkv/pkg/shmkv"
)

var (
	errKeyRequired   = errors.New("key is required")
	errValueRequired = errors.New("value is required")
)

// session holds the region settings shared by every command and opens
// the region on first use. mp and tp feed the telemetry decorator; nil
// means no-op providers.
type session struct {
	cfg shmkv.Config
	mgr *shmkv.Manager
	api api.Manager

	mp metric.MeterProvider
	tp trace.TracerProvider
}

func (s *session) manager() (api.Manager, error) {
	if s.api != nil {
		return s.api, nil
	}
	m, err := shmkv.Open(&s.cfg)
	if err != nil {
		return nil, err
	}
	wrapped, err := adapter.NewOTelManager(m, s.mp, s.tp)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	s.mgr, s.api = m, wrapped
	return s.api, nil
}

func (s *session) close() {
	if s.api != nil {
		_ = s.api.Close()
	}
}

func allCommands(s *session) []*Command {
	return []*Command{
		InsertCmd(s),
		UpdateCmd(s),
		UpsertCmd(s),
		GetCmd(s),
		RemoveCmd(s),
		HasCmd(s),
		ListCmd(s),
		CountCmd(s),
		ClearCmd(s),
		StatsCmd(s),
		CleanupCmd(s),
		BenchCmd(s),
		ServeCmd(s),
	}
}

// Run is the main entry point. Returns exit code.
func Run(ctx context.Context, out, errOut io.Writer, args []string, env map[string]string) int {
	o := NewIO(out, errOut)
	s := &session{}

	global := flag.NewFlagSet("shmkv", flag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(&strings.Builder{})
	name := global.StringP("name", "n", env["SHMKV_NAME"], "region `name` (default depends on --discipline)")
	discipline := global.StringP("discipline", "d", envOr(env, "SHMKV_DISCIPLINE", "exclusive"), "lock discipline: exclusive or rwlock")
	logLevel := global.Int("log-level", -1, "log level, 0 (trace) to 5 (silent)")

	if err := global.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o, global, allCommands(s))
			return 0
		}
		o.ErrPrintln("error:", err)
		return 1
	}
	if *logLevel >= 0 {
		logger.SetLogLevel(*logLevel)
	}

	d, err := shmkv.ParseDiscipline(*discipline)
	if err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}
	s.cfg = shmkv.Config{Name: *name, Discipline: d}
	if s.cfg.Name == "" {
		s.cfg.Name = shmkv.DefaultName(d)
	}
	defer s.close()

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(o, global, allCommands(s))
		return 0
	}
	if rest[0] == "help" {
		printUsage(o, global, allCommands(s))
		return 0
	}
	for _, cmd := range allCommands(s) {
		if cmd.Name() == rest[0] {
			return cmd.Run(ctx, o, rest[1:])
		}
	}
	o.ErrPrintln("error: unknown command:", rest[0])
	printUsage(NewIO(errOut, errOut), global, allCommands(s))
	return 1
}

func printUsage(o *IO, global *flag.FlagSet, cmds []*Command) {
	o.Println("Usage: shmkv [flags] <command> [args]")
	o.Println()
	o.Println("Commands:")
	for _, c := range cmds {
		o.Println(c.HelpLine())
	}
	o.Println()
	o.Println("Flags:")
	var buf strings.Builder
	global.SetOutput(&buf)
	global.PrintDefaults()
	o.Printf("%s", buf.String())
}

func envOr(env map[string]string, key, def string) string {
	if v, ok := env[key]; ok && v != "" {
		return v
	}
	return def
}

func parseKey(args []string) (int32, error) {
	if len(args) == 0 {
		return 0, errKeyRequired
	}
	k, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", args[0], err)
	}
	return int32(k), nil
}

func parseKeyValue(args []string) (int32, string, error) {
	key, err := parseKey(args)
	if err != nil {
		return 0, "", err
	}
	if len(args) < 2 {
		return 0, "", errValueRequired
	}
	return key, strings.Join(args[1:], " "), nil
}
