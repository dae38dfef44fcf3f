package handlers

import (
	"context"
	"fmt"

	"github.com/karimadel/borsa/internal/models"
)

func (r *Registry) handleDividends(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	dividends, err := r.store.GetDividends(ctx, inst.Symbol, 10)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("Dividends read failed")
		return upstreamFailure(req.Language)
	}
	if len(dividends) == 0 {
		return noData(req.Language, inst.Symbol, "dividend history", "بيانات توزيعات")
	}

	card := &models.DividendListCard{Symbol: inst.Symbol}
	for _, d := range dividends {
		card.Entries = append(card.Entries, models.DividendEntry{
			ExDate:   d.ExDate,
			Amount:   d.Amount,
			Currency: d.Currency,
			Yield:    d.Yield,
		})
	}

	latest := dividends[0]
	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s last paid %s per share, ex-date %s.",
			name, formatMoney(latest.Amount, latest.Currency), latest.ExDate.Format("2 Jan 2006")),
		fmt.Sprintf("اخر توزيع لشركه %s كان %s للسهم بتاريخ استحقاق %s.",
			name, formatMoney(latest.Amount, latest.Currency), latest.ExDate.Format("2006/01/02")))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardDividendList, DividendList: card})
	env.Actions = stockActions(inst.Symbol, models.IntentDividends)
	return env
}

func (r *Registry) handleOwnership(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	holders, err := r.store.GetShareholders(ctx, inst.Symbol)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("Shareholders read failed")
		return upstreamFailure(req.Language)
	}
	if len(holders) == 0 {
		return noData(req.Language, inst.Symbol, "shareholder disclosures", "بيانات مساهمين")
	}

	card := &models.ShareholdersCard{Symbol: inst.Symbol}
	for _, h := range holders {
		card.Holders = append(card.Holders, models.ShareholderEntry{
			Name:             h.Name,
			OwnershipPercent: h.OwnershipPercent,
		})
	}

	top := holders[0]
	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("%s has %d disclosed shareholders; the largest is %s with %.2f%%.",
			name, len(holders), top.Name, top.OwnershipPercent),
		fmt.Sprintf("لدي %s عدد %d مساهم معلن؛ اكبرهم %s بنسبه %.2f%%.",
			name, len(holders), top.Name, top.OwnershipPercent))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardShareholders, Shareholders: card})
	env.Actions = stockActions(inst.Symbol, models.IntentOwnership)
	return env
}

func (r *Registry) handleNews(ctx context.Context, req *Request) *models.ResponseEnvelope {
	inst, fail := r.loadInstrument(ctx, req)
	if fail != nil {
		return fail
	}

	items, err := r.store.GetNews(ctx, inst.Symbol, 5)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", inst.Symbol).Msg("News read failed")
		return upstreamFailure(req.Language)
	}
	if len(items) == 0 {
		return noData(req.Language, inst.Symbol, "stored news", "اخبار مسجله")
	}

	card := &models.NewsListCard{Symbol: inst.Symbol}
	for _, item := range items {
		card.Entries = append(card.Entries, models.NewsEntry{
			Title:       item.Title,
			TitleAR:     item.TitleAR,
			Source:      item.Source,
			URL:         item.URL,
			PublishedAt: item.PublishedAt,
		})
	}

	name := displayName(req.Language, inst.NameEN, inst.NameAR)
	text := bilingual(req.Language,
		fmt.Sprintf("Latest %d stored headlines for %s.", len(items), name),
		fmt.Sprintf("اخر %d اخبار مسجله عن %s.", len(items), name))

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, headerCard(inst), models.Card{Type: models.CardNewsList, NewsList: card})
	env.Actions = stockActions(inst.Symbol, models.IntentNews)
	return env
}
