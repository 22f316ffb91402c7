package reg30

import (
	"regexp"
	"strings"
)

var (
	orderAwardPattern = regexp.MustCompile(`(?i)awarding|bagging|work order|letter of award|\bloa\b|l1 bidder|lowest bidder|notice to proceed|\bntp\b|purchase order|\bpo\b`)

	// Engagements of PR/IR and marketing agencies read like order wins but
	// carry no commercial weight.
	serviceContractPattern = regexp.MustCompile(`(?i)investor relations|ir agency|public relations|pr agency|adfactors|communication agency|branding|media relations|media company|advertising|marketing|social media`)
)

// Rule is one entry of the classification cascade
type Rule struct {
	Name   string
	Family Family
	Match  func(text string, source Source) bool
}

// Rules is the ordered classification cascade. The first matching rule wins;
// GOVERNANCE_MANAGEMENT is returned when none match.
var Rules = []Rule{
	{
		Name:   "order_award",
		Family: FamilyOrderContract,
		Match: func(text string, _ Source) bool {
			return orderAwardPattern.MatchString(text) && !serviceContractPattern.MatchString(text)
		},
	},
	{
		Name:   "dilution",
		Family: FamilyDilutionCapital,
		Match:  containsAny("issuance", "allotment", "equity", "rights issue"),
	},
	{
		Name:   "shareholder_returns",
		Family: FamilyShareholderReturns,
		Match:  containsAny("dividend", "buyback", "bonus", "stock split"),
	},
	{
		Name:   "credit_rating",
		Family: FamilyCreditRating,
		Match: func(text string, source Source) bool {
			return strings.Contains(text, "rating") || source == SourceCreditRating
		},
	},
	{
		Name:   "litigation",
		Family: FamilyLitigation,
		Match:  containsAny("litigation", "fine", "court", "penalty"),
	},
}

// Classify maps the free text of a disclosure to an event family.
// text is lower-cased before matching.
func Classify(text string, source Source) Family {
	family, _ := ClassifyWithRule(text, source)
	return family
}

// ClassifyWithRule returns the family and the name of the rule that matched,
// or "default" when the catch-all applied.
func ClassifyWithRule(text string, source Source) (Family, string) {
	lower := strings.ToLower(text)
	for _, rule := range Rules {
		if rule.Match(lower, source) {
			return rule.Family, rule.Name
		}
	}
	return FamilyGovernanceManagement, "default"
}

// ClassificationText builds the text the classifier runs over from the CSV
// columns of one row
func ClassificationText(category, details, ratingAction string) string {
	return strings.ToLower(category + " " + details + " " + ratingAction)
}

func containsAny(keywords ...string) func(string, Source) bool {
	return func(text string, _ Source) bool {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}
}
