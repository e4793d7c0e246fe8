package models

import (
	"github.com/shopspring/decimal"
)

// Counterparty describes who receives the funds relative to the subject.
type Counterparty string

const (
	CounterpartySelf       Counterparty = "self"
	CounterpartyThirdParty Counterparty = "third_party"
)

func (c Counterparty) IsValid() bool {
	return c == CounterpartySelf || c == CounterpartyThirdParty
}

// TransactionContext is the immutable input that decides the tier.
type TransactionContext struct {
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Counterparty      Counterparty    `json:"counterparty"`
	PurposeCode       string          `json:"purpose_code,omitempty"`
	SourceOfFundsCode string          `json:"source_of_funds_code,omitempty"`
}

// IsThirdParty reports whether the funds go to someone other than the subject.
func (c TransactionContext) IsThirdParty() bool {
	return c.Counterparty == CounterpartyThirdParty
}

// Purpose and source-of-funds codes shared by the classifier and the
// financial step.
var (
	PurposeCodes       = []string{"investment", "remittance", "purchase", "savings", "gift", "other"}
	SourceOfFundsCodes = []string{"salary", "business", "investments", "savings", "inheritance", "other"}
)
