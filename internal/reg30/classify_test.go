package reg30

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		source Source
		want   Family
	}{
		{"letter of award", "Awarding of EPC contract - Letter of Award received for Rs 450 Cr, 18 months", SourceXBRL, FamilyOrderContract},
		{"purchase order shorthand", "Receipt of PO from a state utility", SourceXBRL, FamilyOrderContract},
		{"l1 bidder", "Company emerges as L1 bidder for metro package", SourceXBRL, FamilyOrderContract},
		{"po inside a word is not an order", "Report on deposit of funds", SourceXBRL, FamilyGovernanceManagement},
		{"pr agency work order is excluded", "Work order to a PR agency for investor relations", SourceXBRL, FamilyGovernanceManagement},
		{"social media engagement is excluded", "Awarding of social media mandate", SourceXBRL, FamilyGovernanceManagement},
		{"excluded order falls through to later rules", "Work order to advertising firm; penalty waived", SourceXBRL, FamilyLitigation},
		{"allotment", "Allotment of equity shares under ESOP", SourceXBRL, FamilyDilutionCapital},
		{"rights issue", "Board approves rights issue", SourceXBRL, FamilyDilutionCapital},
		{"dividend", "Interim dividend declared", SourceCorpAction, FamilyShareholderReturns},
		{"stock split", "Record date for stock split", SourceCorpAction, FamilyShareholderReturns},
		{"rating text", "Credit rating reaffirmed", SourceXBRL, FamilyCreditRating},
		{"rating source", "Reaffirmed at AA-", SourceCreditRating, FamilyCreditRating},
		{"court", "Order of the High Court", SourceXBRL, FamilyLitigation},
		{"penalty", "Penalty levied by the exchange", SourceXBRL, FamilyLitigation},
		{"default governance", "Change in directors", SourceXBRL, FamilyGovernanceManagement},
		{"order rule takes precedence", "Bagging of order; bonus issue to follow", SourceXBRL, FamilyOrderContract},
		{"case insensitive", "NOTICE TO PROCEED ISSUED", SourceXBRL, FamilyOrderContract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text, tt.source); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifyWithRule(t *testing.T) {
	family, rule := ClassifyWithRule("Dividend and buyback", SourceXBRL)
	if family != FamilyShareholderReturns || rule != "shareholder_returns" {
		t.Errorf("ClassifyWithRule() = %v, %v", family, rule)
	}

	family, rule = ClassifyWithRule("Shareholding pattern", SourceXBRL)
	if family != FamilyGovernanceManagement || rule != "default" {
		t.Errorf("ClassifyWithRule() = %v, %v", family, rule)
	}
}

func TestRulesOrder(t *testing.T) {
	want := []Family{
		FamilyOrderContract,
		FamilyDilutionCapital,
		FamilyShareholderReturns,
		FamilyCreditRating,
		FamilyLitigation,
	}
	if len(Rules) != len(want) {
		t.Fatalf("len(Rules) = %d, want %d", len(Rules), len(want))
	}
	for i, rule := range Rules {
		if rule.Family != want[i] {
			t.Errorf("Rules[%d].Family = %v, want %v", i, rule.Family, want[i])
		}
	}
}
