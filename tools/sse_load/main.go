// Command sse_load opens many concurrent connections to the dashboard stream
// and reports how many events of each kind arrived.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:4000/api/stream", "stream endpoint URL")
	flag.IntVar(&connections, "conns", 500, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", time.Minute, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}
	if rampUp == 0 && connections > 100 {
		// 1 second per 500 connections
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	logger.Info("starting stream load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("dur", testDuration),
		zap.Duration("ramp", rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	stats := newCounters()
	start := time.Now()
	go reportLoop(ctx, logger, stats, start)

	var spacing time.Duration
	if rampUp > 0 {
		spacing = rampUp / time.Duration(connections)
	}

	var g errgroup.Group
	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && spacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(spacing):
			}
		}
		g.Go(func() error {
			stats.consume(ctx, client, targetURL)
			return nil
		})
	}
	_ = g.Wait()

	snap := stats.snapshot()
	elapsed := max(time.Since(start), time.Millisecond)
	logger.Info("done",
		zap.Int64("connected", snap.connected),
		zap.Int64("connect_errs", snap.connectErrs),
		zap.Int64("stream_errs", snap.streamErrs),
		zap.Any("events", snap.events),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Float64("events_per_sec", float64(snap.total())/elapsed.Seconds()))
}

func reportLoop(ctx context.Context, logger *zap.Logger, stats *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := stats.snapshot()
			logger.Info("status",
				zap.Int64("connected", snap.connected),
				zap.Int64("connect_errs", snap.connectErrs),
				zap.Int64("stream_errs", snap.streamErrs),
				zap.Int64("events", snap.total()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
