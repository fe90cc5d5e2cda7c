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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/srediag/shmmap/pkg/shm"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	addr string
	maps []string
}

func newServeCmd() *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold mappings open and serve metrics and health probes",
		Long: `serve maps every --map location (location[:size]) and keeps the regions
alive until interrupted. It serves prometheus metrics on /metrics, health
probes on /live and /ready and the live regions as JSON on /regions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", ":9464", "listen address")
	cmd.Flags().StringArrayVar(&o.maps, "map", nil, "location[:size] to map, repeatable")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, o *serveOptions) error {
	reqs := make([]shm.Request, 0, len(o.maps))
	for _, arg := range o.maps {
		req, err := parseRequest(arg)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cfg := shm.DefaultConfig()
	cfg.Registerer = reg
	m, err := shm.NewMapper(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "close:", err)
		}
	}()

	regions, err := m.MapAll(ctx, reqs)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range regions {
		fmt.Fprintln(out, "mapped", describe(r))
	}

	srv := &http.Server{
		Addr:              o.addr,
		Handler:           newServeMux(m, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(out, "serving on %s\n", o.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	runtime.KeepAlive(regions)
	return nil
}

func newServeMux(m *shm.Mapper, reg *prometheus.Registry) *http.ServeMux {
	health := healthcheck.NewHandler()
	m.HealthChecks(health)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	mux.HandleFunc("/regions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Live()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return mux
}
