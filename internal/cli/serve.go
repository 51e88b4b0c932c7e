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
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/srediag/shmkv/pkg/health"
)

// ServeCmd returns the serve command.
func ServeCmd(s *session) *Command {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := flags.String("addr", ":9464", "listen `address`")

	return &Command{
		Flags: flags,
		Usage: "serve [--addr host:port]",
		Short: "Serve metrics and health endpoints for the region",
		Long: "Attach to the region and serve /metrics, /live and /ready until\n" +
			"interrupted.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			s.cfg.Registerer = reg
			mp, err := newMeterProvider(reg)
			if err != nil {
				return err
			}
			defer func() { _ = mp.Shutdown(context.Background()) }()
			s.mp = mp
			m, err := s.manager()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              *addr,
				Handler:           newServeMux(reg, health.NewHandler(m, reg)),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			o.Printf("serving %s on %s\n", s.cfg.Name, *addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

// newMeterProvider returns a meter provider whose instruments are
// exported through reg next to the region collector.
func newMeterProvider(reg prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}

func newServeMux(reg *prometheus.Registry, healthHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/live", healthHandler)
	mux.Handle("/ready", healthHandler)
	return mux
}
