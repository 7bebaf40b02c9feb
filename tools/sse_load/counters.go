package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
)

type counters struct {
	mu          sync.Mutex
	connected   int64
	connectErrs int64
	streamErrs  int64
	events      map[string]int64
}

type countersSnapshot struct {
	connected   int64
	connectErrs int64
	streamErrs  int64
	events      map[string]int64
}

func (s countersSnapshot) total() int64 {
	var n int64
	for _, v := range s.events {
		n += v
	}
	return n
}

func newCounters() *counters {
	return &counters{events: make(map[string]int64)}
}

func (c *counters) snapshot() countersSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make(map[string]int64, len(c.events))
	for k, v := range c.events {
		events[k] = v
	}
	return countersSnapshot{
		connected:   c.connected,
		connectErrs: c.connectErrs,
		streamErrs:  c.streamErrs,
		events:      events,
	}
}

func (c *counters) add(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// consume holds one stream connection open until ctx ends or the server drops it.
func (c *counters) consume(ctx context.Context, client *http.Client, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.add(&c.connectErrs)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.add(&c.connectErrs)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.add(&c.connectErrs)
		return
	}

	c.add(&c.connected)
	if err := c.countEvents(resp.Body); err != nil && ctx.Err() == nil {
		c.add(&c.streamErrs)
	}
}

// countEvents tallies "event:" lines by name until r is exhausted.
// Heartbeat comments and data lines are ignored.
func (c *counters) countEvents(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, ok := strings.CutPrefix(scanner.Text(), "event:")
		if !ok {
			continue
		}
		c.mu.Lock()
		c.events[strings.TrimSpace(name)]++
		c.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
