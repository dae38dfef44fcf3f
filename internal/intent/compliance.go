package intent

import "strings"

// Out-of-scope instrument terms, folded. The deployment answers only for
// instruments inside the configured market filter.
var offMarketTerms = []string{
	"bitcoin", "btc", "ethereum", "eth", "crypto", "dogecoin",
	"بيتكوين", "ايثريوم", "عمله رقميه", "عملات رقميه", "كريبتو",
	"tesla", "apple", "nvidia", "microsoft", "amazon", "nasdaq",
	"dow jones", "s p 500", "sp500", "تسلا", "ابل",
	"forex", "فوركس", "gold futures",
}

// Personalized-advice phrasings, folded. Factual data is in scope;
// telling a user what to do with their money is not.
var advicePhrases = []string{
	"should i buy", "should i sell", "should i invest",
	"is it a good buy", "worth buying", "worth investing",
	"what should i buy", "tell me what to buy", "recommend a stock",
	"هل اشتري", "هل ابيع", "هل استثمر", "انصحني", "نصيحه",
	"ايه احسن سهم اشتريه", "اشتري ولا ابيع", "يستاهل الشرا",
}

// checkCompliance reports whether the folded text must be blocked, and
// the reason category ("off_market" or "advice").
func checkCompliance(folded string) (bool, string) {
	padded := " " + folded + " "
	for _, term := range offMarketTerms {
		if strings.Contains(padded, " "+term+" ") {
			return true, "off_market"
		}
	}
	for _, phrase := range advicePhrases {
		if strings.Contains(folded, phrase) {
			return true, "advice"
		}
	}
	return false, ""
}
