package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher races the engines with staged escalation: the cheapest
// engine starts immediately, heavier ones only after their escalation
// delay, and the first success cancels the rest. Domains that already
// answered once skip the race and reuse the engine that worked.
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *DomainMemory
}

// NewDispatcher creates a dispatcher. engines[i] starts after delays[i]
// from the beginning of the race; a missing delay means immediate start.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *DomainMemory) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Dispatcher{engines: engines, delays: d, memory: memory}
}

// Dispatch fetches the request through the remembered engine when one
// is known for the domain, otherwise through the full staged race.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	domain := hostOf(req.URL)

	if remembered := d.memory.Get(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			res, err := eng.Fetch(ctx, req)
			if err == nil {
				return res, nil
			}
			// The remembered engine stopped working; forget it and
			// fall back to the race.
			slog.Debug("remembered engine failed, racing",
				"domain", domain,
				"engine", remembered,
				"error", err,
			)
			d.memory.Delete(domain)
			break
		}
	}

	return d.race(ctx, req, domain)
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type outcome struct {
		res *FetchResult
		err error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				select {
				case <-raceCtx.Done():
					return
				case <-time.After(delay):
				}
			}
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			res, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("detail engine failed",
					"engine", e.Name(),
					"url", req.URL,
					"error", err,
				)
			}
			results <- outcome{res: res, err: err}
		}(eng, d.delays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for o := range results {
		if o.err != nil {
			lastErr = o.err
			continue
		}
		cancel()
		d.memory.Set(domain, o.res.EngineName)
		return o.res, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("all detail engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
