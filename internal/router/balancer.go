// Package router resolves inbound JSON-RPC requests to backend servers:
// capability lookup, health filtering, weighted load balancing, and a bounded
// failover loop over the ranked candidates.
package router

import (
	"fmt"
	"sort"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// Default scoring weights. Success rate dominates response time so that a
// consistently reliable server beats a fast but flaky one; the in-flight
// penalty spreads load across close scores.
const (
	DefaultResponseTimeWeight = 0.2
	DefaultSuccessRateWeight  = 0.8
	DefaultInFlightPenalty    = 0.01
)

// Candidate is an ephemeral (record, score) pair computed fresh per request.
type Candidate struct {
	Record *domain.ServerRecord
	Score  float64
}

// Balancer scores and ranks routable candidates. Scoring is a pure function
// of the supplied snapshot; the balancer holds no hidden state.
// NewBalancer should be used to create instances of Balancer.
type Balancer struct {
	responseTimeWeight float64
	successRateWeight  float64
	inFlightPenalty    float64
}

// NewBalancer creates a Balancer with the given weights.
func NewBalancer(responseTimeWeight, successRateWeight, inFlightPenalty float64) (*Balancer, error) {
	if responseTimeWeight < 0 || successRateWeight < 0 || inFlightPenalty < 0 {
		return nil, fmt.Errorf("balancer weights cannot be negative")
	}
	if responseTimeWeight+successRateWeight == 0 {
		return nil, fmt.Errorf("at least one scoring weight must be positive")
	}
	return &Balancer{
		responseTimeWeight: responseTimeWeight,
		successRateWeight:  successRateWeight,
		inFlightPenalty:    inFlightPenalty,
	}, nil
}

// NewDefaultBalancer creates a Balancer with the default weights.
func NewDefaultBalancer() *Balancer {
	b, _ := NewBalancer(DefaultResponseTimeWeight, DefaultSuccessRateWeight, DefaultInFlightPenalty)
	return b
}

// Rank scores the candidates against the current snapshot and returns them
// best-first. Ties break on lower cumulative error count, then on server id,
// so the ordering is deterministic regardless of input order.
func (b *Balancer) Rank(records []*domain.ServerRecord) []Candidate {
	if len(records) == 0 {
		return nil
	}

	// Normalize response times against the slowest candidate in this set.
	var maxRT float64
	for _, rec := range records {
		if rt := rec.Health.LastResponseTime; rt != nil && rt.Seconds() > maxRT {
			maxRT = rt.Seconds()
		}
	}

	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, Candidate{
			Record: rec,
			Score:  b.score(rec, maxRT),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, c := candidates[i], candidates[j]
		if a.Score != c.Score {
			return a.Score > c.Score
		}
		if a.Record.Load.TotalErrors != c.Record.Load.TotalErrors {
			return a.Record.Load.TotalErrors < c.Record.Load.TotalErrors
		}
		return a.Record.ID < c.Record.ID
	})

	return candidates
}

func (b *Balancer) score(rec *domain.ServerRecord, maxRT float64) float64 {
	var normalizedRT float64
	if rt := rec.Health.LastResponseTime; rt != nil && maxRT > 0 {
		normalizedRT = 1 - rt.Seconds()/maxRT
	}

	score := b.responseTimeWeight*normalizedRT + b.successRateWeight*rec.Health.SuccessRate
	score -= b.inFlightPenalty * float64(rec.Load.InFlight)
	return score
}
