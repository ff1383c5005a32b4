package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/xyops/xianyu-backend/internal/apperr"
)

// ContentFetcher produces the content of an api card.
type ContentFetcher interface {
	Fetch(ctx context.Context, cfg APIConfig, req MatchRequest) (string, error)
}

// Matcher picks the card that answers an order and resolves its content.
type Matcher struct {
	repo    Repository
	fetcher ContentFetcher
}

func NewMatcher(repo Repository, fetcher ContentFetcher) *Matcher {
	return &Matcher{repo: repo, fetcher: fetcher}
}

// Select applies the tie-break over candidate cards:
//  1. multi-spec cards whose spec matches the order
//  2. cards without specs
//
// Within a tier, cards bound to the order's item beat generic ones, then the
// lowest id wins. A multi-spec card whose spec differs is never chosen.
func Select(cards []*Card, req MatchRequest) *Card {
	type ranked struct {
		card  *Card
		tier  int
		bound int
	}
	var pool []ranked
	for _, c := range cards {
		if !c.Enabled || (c.ItemID != "" && c.ItemID != req.ItemID) {
			continue
		}
		tier := 1
		if c.IsMultiSpec {
			if !specMatches(c, req) {
				continue
			}
			tier = 0
		}
		bound := 1
		if c.ItemID != "" {
			bound = 0
		}
		pool = append(pool, ranked{card: c, tier: tier, bound: bound})
	}
	if len(pool) == 0 {
		return nil
	}
	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.bound != b.bound {
			return a.bound < b.bound
		}
		return a.card.ID < b.card.ID
	})
	return pool[0].card
}

func specMatches(c *Card, req MatchRequest) bool {
	if req.SpecValue == "" || c.SpecValue != req.SpecValue {
		return false
	}
	if c.SpecName != "" && req.SpecName != "" && c.SpecName != req.SpecName {
		return false
	}
	return true
}

// Match selects a card and resolves its content. Data cards claim one stock
// line for the order; the caller releases it with Release if delivery fails.
func (m *Matcher) Match(ctx context.Context, req MatchRequest) (*Resolved, error) {
	cards, err := m.repo.ListCandidates(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	card := Select(cards, req)
	if card == nil {
		return nil, apperr.ErrNoMatch
	}

	res := &Resolved{Card: card}
	switch card.Type {
	case CardText:
		res.Content = card.TextContent
	case CardImage:
		res.ImageURL = card.ImageURL
	case CardData:
		line, err := m.repo.ClaimLine(ctx, card.ID, req.OrderID)
		if err != nil {
			return nil, err
		}
		res.Content = line.Content
		res.LineID = line.ID
	case CardAPI:
		if card.APIConfig == nil || m.fetcher == nil {
			return nil, fmt.Errorf("card %d: api config missing", card.ID)
		}
		content, err := m.fetcher.Fetch(ctx, *card.APIConfig, req)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", card.ID, err)
		}
		res.Content = content
	default:
		return nil, fmt.Errorf("card %d: unsupported type %q", card.ID, card.Type)
	}
	return res, nil
}

// Release returns a claimed stock line. It is a no-op for other card types.
func (m *Matcher) Release(ctx context.Context, orderID string, res *Resolved) error {
	if res == nil || res.LineID == 0 {
		return nil
	}
	return m.repo.ReleaseLine(ctx, res.LineID, orderID)
}
