package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/karimadel/borsa/internal/interfaces"
	"github.com/karimadel/borsa/internal/models"
)

const fundListLimit = 10

func (r *Registry) handleFundNAV(ctx context.Context, req *Request) *models.ResponseEnvelope {
	fundID := req.Entities.FundID
	if fundID == "" {
		return r.handleFundSearch(ctx, req)
	}

	fund, err := r.store.GetFund(ctx, fundID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return symbolNotFound(req.Language, nil)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("fund_id", fundID).Msg("Fund read failed")
		return upstreamFailure(req.Language)
	}

	name := displayName(req.Language, fund.NameEN, fund.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s NAV is %s as of %s.",
			name, formatMoney(fund.LatestNAV, fund.Currency), fund.AsOfDate.Format("2 Jan 2006")),
		fmt.Sprintf("صافي قيمه وثيقه %s هو %s في %s.",
			name, formatMoney(fund.LatestNAV, fund.Currency), fund.AsOfDate.Format("2006/01/02")))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards,
		models.Card{
			Type: models.CardFundProfile,
			FundProfile: &models.FundProfileCard{
				FundID:   fund.FundID,
				NameEN:   fund.NameEN,
				NameAR:   fund.NameAR,
				Manager:  fund.Manager,
				Currency: fund.Currency,
				AsOf:     fund.AsOfDate,
				NAV:      ptr(fund.LatestNAV),
			},
		},
		models.Card{
			Type: models.CardSnapshot,
			Snapshot: &models.SnapshotCard{
				LastPrice: fund.LatestNAV,
				Currency:  fund.Currency,
				AsOf:      fund.AsOfDate,
				NAV:       ptr(fund.LatestNAV),
				YTDReturn: fund.YTDReturn,
				Return1Y:  fund.Return1Y,
				Return3Y:  fund.Return3Y,
				Return5Y:  fund.Return5Y,
			},
		})
	env.Actions = append(env.Actions,
		queryAction("Other funds", "صناديق اخري", "best funds"),
		queryAction("Help", "مساعده", "help"))
	return env
}

func (r *Registry) handleFundSearch(ctx context.Context, req *Request) *models.ResponseEnvelope {
	funds, err := r.store.ListFunds(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Fund list read failed")
		return upstreamFailure(req.Language)
	}
	if len(funds) == 0 {
		return errorEnvelope(req.Language, models.ErrNoData,
			"No funds are registered yet.",
			"لا توجد صناديق مسجله حتي الان.",
			nil)
	}

	// Funds without a 1Y figure go to the bottom in listing order.
	ranked := make([]*models.Fund, 0, len(funds))
	var unrated []*models.Fund
	for _, f := range funds {
		if f.Return1Y != nil {
			ranked = append(ranked, f)
		} else {
			unrated = append(unrated, f)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Return1Y > *ranked[j].Return1Y
	})
	ranked = append(ranked, unrated...)

	text := bilingual(req.Language,
		fmt.Sprintf("%d funds available; ranked by trailing 1Y return where reported.", len(funds)),
		fmt.Sprintf("يوجد %d صندوق متاح، مرتبه حسب عائد اخر سنه حيثما توفر.", len(funds)))

	env := successEnvelope(req.Language, text)
	for _, f := range ranked {
		if len(env.Cards) == fundListLimit {
			break
		}
		env.Cards = append(env.Cards, models.Card{
			Type: models.CardFundProfile,
			FundProfile: &models.FundProfileCard{
				FundID:    f.FundID,
				NameEN:    f.NameEN,
				NameAR:    f.NameAR,
				Manager:   f.Manager,
				Currency:  f.Currency,
				AsOf:      f.AsOfDate,
				NAV:       ptr(f.LatestNAV),
				YTDReturn: f.YTDReturn,
				Return1Y:  f.Return1Y,
			},
		})
	}
	for _, f := range ranked {
		if len(env.Actions) == 3 {
			break
		}
		env.Actions = append(env.Actions, queryAction(
			f.NameEN, f.NameAR, "fund "+f.FundID))
	}
	return env
}
