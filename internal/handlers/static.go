package handlers

import (
	"context"
	"fmt"

	"github.com/karimadel/borsa/internal/models"
)

var helpExamples = []models.HelpExample{
	{Text: "CIB price", TextAR: "سعر البنك التجاري"},
	{Text: "SWDY chart 1y", TextAR: "الرسم البياني للسويدي سنه"},
	{Text: "COMI financials", TextAR: "القوائم الماليه للتجاري"},
	{Text: "compare COMI vs SWDY", TextAR: "قارن التجاري والسويدي"},
	{Text: "top gainers", TextAR: "الاسهم الاكثر ارتفاعا"},
	{Text: "best funds", TextAR: "افضل الصناديق"},
	{Text: "what is P/E ratio?", TextAR: "يعني ايه مكرر الربحيه؟"},
}

func (r *Registry) handleHelp(_ context.Context, req *Request) *models.ResponseEnvelope {
	text := bilingual(req.Language,
		"I answer questions about EGX stocks and funds: prices, charts, financials, dividends, shareholders, comparisons, and market movers.",
		"اجاوب علي اسئله عن اسهم وصناديق البورصه المصريه: الاسعار والرسوم البيانيه والقوائم الماليه والتوزيعات والمساهمين والمقارنات والاسهم المتصدره.")

	env := successEnvelope(req.Language, text)
	env.Cards = append(env.Cards, models.Card{
		Type: models.CardHelp,
		Help: &models.HelpCard{Examples: helpExamples},
	})
	env.Actions = append(env.Actions,
		queryAction("Top gainers", "الاكثر ارتفاعا", "top gainers"),
		queryAction("Best funds", "افضل الصناديق", "best funds"))
	return env
}

func (r *Registry) handleChitchat(_ context.Context, req *Request) *models.ResponseEnvelope {
	text := bilingual(req.Language,
		"Hi! Ask me about any EGX stock or fund, a price, a chart, or today's movers.",
		"اهلا! اسالني عن اي سهم او صندوق في البورصه المصريه، سعر او رسم بياني او اسهم اليوم المتصدره.")

	env := successEnvelope(req.Language, text)
	env.Actions = append(env.Actions,
		queryAction("Top gainers", "الاكثر ارتفاعا", "top gainers"),
		helpAction())
	return env
}

// educationContent is the built-in bilingual glossary.
var educationContent = map[string]struct {
	en, ar string
}{
	"pe_ratio": {
		en: "The price-to-earnings (P/E) ratio divides the share price by annual earnings per share. It tells you how many years of current profits the market is paying for; comparing it within the same sector is more meaningful than across sectors.",
		ar: "مكرر الربحيه هو سعر السهم مقسوما علي ربحيه السهم السنويه. يوضح كم سنه من الارباح الحاليه يدفعها السوق ثمنا للسهم، ومقارنته داخل نفس القطاع اكثر دلاله من مقارنته بين قطاعات مختلفه.",
	},
	"eps": {
		en: "Earnings per share (EPS) is the company's net profit divided by the number of outstanding shares. Growing EPS over several years is a common sign of improving profitability.",
		ar: "ربحيه السهم هي صافي ربح الشركه مقسوما علي عدد الاسهم المصدره. نمو ربحيه السهم عبر عده سنوات علامه شائعه علي تحسن الربحيه.",
	},
	"dividend_yield": {
		en: "Dividend yield is the annual cash dividend divided by the share price, as a percentage. It shows the cash income a share pays at today's price, separate from any price change.",
		ar: "عائد التوزيعات هو التوزيع النقدي السنوي مقسوما علي سعر السهم كنسبه مئويه. يوضح الدخل النقدي الذي يدفعه السهم بسعر اليوم بغض النظر عن تغير السعر.",
	},
	"market_cap": {
		en: "Market capitalization is the share price multiplied by the number of shares. It measures the total market value of a company and is how indexes weight their constituents.",
		ar: "القيمه السوقيه هي سعر السهم مضروبا في عدد الاسهم. تقيس القيمه الاجماليه للشركه في السوق وهي اساس اوزان الشركات في المؤشرات.",
	},
	"nav": {
		en: "Net asset value (NAV) is a fund's total assets minus liabilities, divided by the number of units. It is the per-unit fair value at which fund units are bought and sold.",
		ar: "صافي قيمه الاصول هو اصول الصندوق مطروحا منها التزاماته مقسوما علي عدد الوثائق. وهو القيمه العادله للوثيقه التي يتم الشراء والاسترداد بها.",
	},
	"pb_ratio": {
		en: "The price-to-book (P/B) ratio compares the share price with book value per share. A ratio near 1 means the market prices the company close to its accounting net assets.",
		ar: "مضاعف القيمه الدفتريه يقارن سعر السهم بنصيب السهم من حقوق الملكيه. اقترابه من 1 يعني ان السوق يقيم الشركه قريبا من صافي اصولها الدفتريه.",
	},
}

func (r *Registry) handleEducation(_ context.Context, req *Request) *models.ResponseEnvelope {
	entry, ok := educationContent[req.Entities.Metric]
	if !ok {
		text := bilingual(req.Language,
			"I can explain P/E ratio, EPS, dividend yield, market cap, P/B ratio, and NAV. Which one would you like?",
			"يمكنني شرح مكرر الربحيه وربحيه السهم وعائد التوزيعات والقيمه السوقيه ومضاعف القيمه الدفتريه وصافي قيمه الاصول. ايهم تريد؟")
		env := successEnvelope(req.Language, text)
		env.Actions = append(env.Actions,
			queryAction("What is P/E ratio?", "يعني ايه مكرر الربحيه؟", "what is pe ratio"),
			queryAction("What is dividend yield?", "يعني ايه عائد التوزيعات؟", "what is dividend yield"),
			helpAction())
		return env
	}

	env := successEnvelope(req.Language, bilingual(req.Language, entry.en, entry.ar))
	env.Actions = append(env.Actions,
		queryAction("Top gainers", "الاكثر ارتفاعا", "top gainers"),
		helpAction())
	return env
}

func (r *Registry) handleClarifySymbol(_ context.Context, req *Request) *models.ResponseEnvelope {
	var suggestions []models.Suggestion
	if req.Resolution != nil {
		suggestions = req.Resolution.Suggestions
	}
	if len(suggestions) == 0 {
		return symbolNotFound(req.Language, nil)
	}

	env := errorEnvelope(req.Language, models.ErrAmbiguousSymbol,
		"Which one did you mean?",
		"ايهم تقصد؟",
		suggestions)
	env.Actions = env.Actions[:0]
	for _, s := range suggestions {
		env.Actions = append(env.Actions, queryAction(
			fmt.Sprintf("%s (%s)", s.NameEN, s.Symbol),
			fmt.Sprintf("%s (%s)", s.NameAR, s.Symbol),
			s.Symbol))
	}
	return env
}

func (r *Registry) handleUnknown(_ context.Context, req *Request) *models.ResponseEnvelope {
	text := bilingual(req.Language,
		"I did not understand that. Try a stock name, a symbol, or ask for help.",
		"لم افهم سؤالك. جرب اسم سهم او كود او اطلب المساعده.")

	env := successEnvelope(req.Language, text)
	env.Actions = append(env.Actions, helpAction(),
		queryAction("Top gainers", "الاكثر ارتفاعا", "top gainers"))
	return env
}

// BlockedEnvelope is the compliance-block response.
func BlockedEnvelope(language string) *models.ResponseEnvelope {
	env := errorEnvelope(language, models.ErrComplianceBlocked,
		"I only cover instruments listed on the Egyptian Exchange, and I cannot give personal investment advice.",
		"اغطي فقط الاوراق الماليه المقيده في البورصه المصريه، ولا يمكنني تقديم نصائح استثماريه شخصيه.",
		nil)
	env.Actions = append(env.Actions,
		queryAction("Top gainers", "الاكثر ارتفاعا", "top gainers"))
	return env
}

// UsageLimitEnvelope is the over-quota response, naming the ceiling.
func UsageLimitEnvelope(language string, ceiling int) *models.ResponseEnvelope {
	env := errorEnvelope(language, models.ErrUsageLimitReached,
		fmt.Sprintf("You have used your %d free messages for today. Sign in for unlimited access.", ceiling),
		fmt.Sprintf("استهلكت رسائلك المجانيه وعددها %d لهذا اليوم. سجل الدخول لاستخدام غير محدود.", ceiling),
		nil)
	env.Actions = append(env.Actions, models.Action{
		Label:      "Sign in",
		LabelAR:    "تسجيل الدخول",
		ActionType: models.ActionNavigate,
		Payload:    map[string]any{"target": "login"},
	})
	return env
}

// InternalErrorEnvelope is the catch-all for unexpected panics.
func InternalErrorEnvelope(language string) *models.ResponseEnvelope {
	return errorEnvelope(language, models.ErrInternal,
		"Something unexpected happened. Please try again.",
		"حدث خطا غير متوقع. من فضلك حاول مره اخري.",
		nil)
}

// TimeoutEnvelope is returned when the message deadline expires.
func TimeoutEnvelope(language string) *models.ResponseEnvelope {
	return errorEnvelope(language, models.ErrTimeout,
		"That took too long to answer. Please try again.",
		"استغرقت الاجابه وقتا اطول من اللازم. من فضلك حاول مره اخري.",
		nil)
}
