package deals

import "github.com/goccy/go-json"

// Decisions returned by the analysis backend.
const (
	DecisionPass = "PASS"
	DecisionFail = "FAIL"
)

// PropertyDetails, T12Data and RentRollData are produced by the backend's lookup and document
// parsers. Their fields are not fixed, so they are kept as open JSON objects.
type (
	PropertyDetails map[string]any
	T12Data         map[string]any
	RentRollData    map[string]any
)

// BuyBox holds the screening thresholds a deal is judged against.
type BuyBox struct {
	MinYearBuilt     int      `json:"minYearBuilt" validate:"gte=1800,lte=2100"`
	MinCoCReturn     float64  `json:"minCoCReturn" validate:"gte=0,lte=100"`
	MinCapRate       float64  `json:"minCapRate" validate:"gte=0,lte=100"`
	MaxPurchasePrice float64  `json:"maxPurchasePrice" validate:"gte=0"`
	MinUnits         int      `json:"minUnits" validate:"gte=0"`
	PreferredMarkets []string `json:"preferredMarkets"`
}

func DefaultBuyBox() BuyBox {
	return BuyBox{
		MinYearBuilt:     1980,
		MinCoCReturn:     8,
		MinCapRate:       6,
		MaxPurchasePrice: 1000000,
		MinUnits:         10,
		PreferredMarkets: []string{},
	}
}

// AddMarket appends market unless it is empty or already present.
func (b BuyBox) AddMarket(market string) BuyBox {
	if market == "" {
		return b
	}
	for _, m := range b.PreferredMarkets {
		if m == market {
			return b
		}
	}
	b.PreferredMarkets = append(append([]string{}, b.PreferredMarkets...), market)
	return b
}

func (b BuyBox) RemoveMarket(market string) BuyBox {
	kept := make([]string, 0, len(b.PreferredMarkets))
	for _, m := range b.PreferredMarkets {
		if m != market {
			kept = append(kept, m)
		}
	}
	b.PreferredMarkets = kept
	return b
}

// Assumptions are the financing inputs of an analysis. Rates are percentages.
type Assumptions struct {
	AskingPrice  float64 `json:"askingPrice" validate:"gte=0"`
	DownPayment  float64 `json:"downPayment" validate:"gte=0,lte=100"`
	InterestRate float64 `json:"interestRate" validate:"gte=0,lte=100"`
	LoanTerm     int     `json:"loanTerm" validate:"gte=1,lte=50"`
	ExitCapRate  float64 `json:"exitCapRate" validate:"gte=0,lte=100"`
	ExitYear     int     `json:"exitYear" validate:"gte=1,lte=50"`
}

func DefaultAssumptions() Assumptions {
	return Assumptions{
		AskingPrice:  0,
		DownPayment:  25,
		InterestRate: 7,
		LoanTerm:     30,
		ExitCapRate:  6,
		ExitYear:     5,
	}
}

type Metrics struct {
	CapRate      float64 `json:"capRate"`
	CoCReturn    float64 `json:"cocReturn"`
	IRR          float64 `json:"irr"`
	DSCR         float64 `json:"dscr"`
	PricePerUnit float64 `json:"pricePerUnit"`
	ExpenseRatio float64 `json:"expenseRatio"`
}

// Analysis is the backend's verdict on a deal.
type Analysis struct {
	ID         string   `json:"_id,omitempty"`
	Decision   string   `json:"decision"`
	Confidence string   `json:"confidence,omitempty"`
	Reasoning  []string `json:"reasoning,omitempty"`
	Metrics    *Metrics `json:"metrics,omitempty"`
	Risks      []string `json:"risks,omitempty"`
}

// UserData is the input half of a saved deal.
type UserData struct {
	PropertyDetails PropertyDetails `json:"propertyDetails,omitempty"`
	T12Data         T12Data         `json:"t12Data,omitempty"`
	RentRollData    RentRollData    `json:"rentRollData,omitempty"`
	BuyBox          *BuyBox         `json:"buyBox,omitempty"`
	Assumptions     *Assumptions    `json:"assumptions,omitempty"`
}

// SavedDeal is a server-owned record. It is only listed, shown and deleted here.
type SavedDeal struct {
	Analysis
	UserEmail string   `json:"userEmail,omitempty"`
	UserData  UserData `json:"userData"`
	DealData  Analysis `json:"dealData"`
}

// Submission is the body POSTed to /deal.
type Submission struct {
	UserData struct {
		BuyBox      BuyBox      `json:"buyBox"`
		Assumptions Assumptions `json:"assumptions"`
	} `json:"userData"`
	T12Data      T12Data         `json:"t12Data"`
	RentRollData RentRollData    `json:"rentRollData"`
	PropertyData PropertyDetails `json:"propertyData"`
}

// NewSubmission assembles the /deal payload from a draft's fragments.
func NewSubmission(property PropertyDetails, t12 T12Data, rentRoll RentRollData, buyBox BuyBox, assumptions Assumptions) Submission {
	var s Submission
	s.UserData.BuyBox = buyBox
	s.UserData.Assumptions = assumptions
	s.T12Data = t12
	s.RentRollData = rentRoll
	s.PropertyData = property
	return s
}

// decodeObject decodes raw into a generic object, returning nil for anything that is not one.
func decodeObject(raw []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}
