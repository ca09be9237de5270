package services

import (
	"context"
	"delivery-batch-service/internal/ports"
	"fmt"
	"sync"
)

const pairwiseConcurrency = 5

type pairwiseResult struct {
	origin  string
	results map[string]ports.DistanceResult
	err     error
}

// fetchPairwiseDistances returns "origin|destination" results for hub->each destination
// and each destination->every other destination and the hub.
func fetchPairwiseDistances(
	ctx context.Context,
	provider ports.DistanceProvider,
	hub string,
	destinations []string,
) (map[string]ports.DistanceResult, error) {
	pairwise := make(map[string]ports.DistanceResult, len(destinations)*(len(destinations)+1))
	if len(destinations) == 0 {
		return pairwise, nil
	}

	mp, hasMatrix := provider.(ports.DistanceMatrixProvider)

	// Prefer a single hub->many lookup when supported to reduce external API calls.
	fromHub, err := distancesFrom(ctx, provider, mp, hasMatrix, hub, destinations)
	if err != nil {
		return nil, fmt.Errorf("fetch distances: from hub: %w", err)
	}
	for _, d := range destinations {
		r, ok := fromHub[d]
		if !ok {
			return nil, fmt.Errorf("fetch distances: missing hub distance for %q", d)
		}
		pairwise[hub+"|"+d] = r
	}

	hubAndDests := append([]string{hub}, destinations...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, pairwiseConcurrency)
	resultsCh := make(chan pairwiseResult, len(destinations))
	var wg sync.WaitGroup

	for _, origin := range destinations {
		targets := make([]string, 0, len(hubAndDests)-1)
		for _, t := range hubAndDests {
			if t != origin {
				targets = append(targets, t)
			}
		}

		wg.Add(1)
		go func(orig string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, e := distancesFrom(ctx, provider, mp, hasMatrix, orig, targets)
			if e != nil {
				resultsCh <- pairwiseResult{origin: orig, err: fmt.Errorf("fetch distances: from %q: %w", orig, e)}
				cancel()
				return
			}
			resultsCh <- pairwiseResult{origin: orig, results: res}
		}(origin)
	}

	wg.Wait()
	close(resultsCh)

	var firstErr error
	for res := range resultsCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		for _, t := range hubAndDests {
			if t == res.origin {
				continue
			}
			r, ok := res.results[t]
			if !ok {
				return nil, fmt.Errorf("fetch distances: missing pairwise distance from %q to %q", res.origin, t)
			}
			pairwise[res.origin+"|"+t] = r
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return pairwise, nil
}

func distancesFrom(
	ctx context.Context,
	provider ports.DistanceProvider,
	mp ports.DistanceMatrixProvider,
	hasMatrix bool,
	origin string,
	targets []string,
) (map[string]ports.DistanceResult, error) {
	if hasMatrix {
		return mp.GetDistances(ctx, origin, targets)
	}

	res := make(map[string]ports.DistanceResult, len(targets))
	for _, t := range targets {
		r, err := provider.GetDistance(ctx, origin, t)
		if err != nil {
			return nil, fmt.Errorf("to %q: %w", t, err)
		}
		res[t] = r
	}
	return res, nil
}
