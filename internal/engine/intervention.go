package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/statecraft/internal/country"
	"github.com/talgya/statecraft/internal/mathx"
)

// ErrUnknownCountry is returned by interventions naming an unregistered id.
var ErrUnknownCountry = errors.New("unknown country")

// ErrUnknownEdge is returned when an intervention targets a missing edge.
var ErrUnknownEdge = errors.New("unknown edge")

// Provision adds resources to a country. Negative amounts drain it, floored at zero.
func (s *System) Provision(id country.ID, amount float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(id)
	if !ok {
		return "", fmt.Errorf("provision %d: %w", id, ErrUnknownCountry)
	}
	c.Resources = math.Max(0, c.Resources+amount)

	desc := fmt.Sprintf("Country %d receives %.0f resources (now %.0f)", id, amount, c.Resources)
	s.log.Info("provision intervention", "country", id, "amount", amount, "resources", c.Resources)
	return desc, nil
}

// Reinforce changes a country's military strength, floored at zero.
func (s *System) Reinforce(id country.ID, delta float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(id)
	if !ok {
		return "", fmt.Errorf("reinforce %d: %w", id, ErrUnknownCountry)
	}
	c.Military = math.Max(0, c.Military+delta)

	desc := fmt.Sprintf("Country %d military adjusted by %.0f (now %.0f)", id, delta, c.Military)
	s.log.Info("reinforce intervention", "country", id, "delta", delta, "military", c.Military)
	return desc, nil
}

// RecordLosses reports casualties suffered outside the engine. Losses
// reduce military and feed the risk weight on the next refresh.
func (s *System) RecordLosses(id country.ID, losses float64) (string, error) {
	if losses < 0 {
		return "", fmt.Errorf("record losses %d: negative losses %v", id, losses)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(id)
	if !ok {
		return "", fmt.Errorf("record losses %d: %w", id, ErrUnknownCountry)
	}
	c.RecentLosses += losses
	c.Military = math.Max(0, c.Military-losses)

	desc := fmt.Sprintf("Country %d loses %.0f troops", id, losses)
	s.log.Info("losses intervention", "country", id, "losses", losses, "recent_losses", c.RecentLosses)
	return desc, nil
}

// SetRelations overwrites hostility and relations on the edge from -> to.
// Values are clamped to their ranges.
func (s *System) SetRelations(from, to country.ID, hostility, relations float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.world.Country(from)
	if !ok {
		return "", fmt.Errorf("set relations %d->%d: %w", from, to, ErrUnknownCountry)
	}
	e, ok := c.Edge(to)
	if !ok {
		return "", fmt.Errorf("set relations %d->%d: %w", from, to, ErrUnknownEdge)
	}
	e.Hostility = mathx.ClampFinite(hostility, 0, 1)
	e.Relations = mathx.ClampFinite(relations, -100, 100)
	c.AddEdge(e)

	desc := fmt.Sprintf("Relations from %d toward %d set to %.0f (hostility %.2f)", from, to, e.Relations, e.Hostility)
	s.log.Info("relations intervention", "from", from, "to", to, "hostility", e.Hostility, "relations", e.Relations)
	return desc, nil
}
