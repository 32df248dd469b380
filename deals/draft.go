package deals

import (
	"strconv"

	"github.com/goccy/go-json"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/rs/zerolog/log"
)

// Draft keys. They live beside the session keys but logout never touches them.
const (
	KeyPropertyDetails = "dashboard_property_details"
	KeyT12Data         = "dashboard_t12_data"
	KeyRentRollData    = "dashboard_rent_roll_data"
	KeyBuyBox          = "dashboard_buy_box"
	KeyAssumptions     = "dashboard_assumptions"
	KeyAnalysisResults = "dashboard_analysis_results"
	KeyFromSavedDeal   = "dashboard_is_from_saved_deal"
	KeyCurrentStep     = "dashboard_current_step"
	KeyAddress         = "address"
)

// DraftKeys are removed by Clear.
var DraftKeys = []string{
	KeyPropertyDetails,
	KeyT12Data,
	KeyRentRollData,
	KeyBuyBox,
	KeyAssumptions,
	KeyAnalysisResults,
	KeyFromSavedDeal,
	KeyCurrentStep,
	KeyAddress,
}

// Wizard steps
const (
	StepProperty  = 1
	StepDocuments = 2
	StepCriteria  = 3
	StepResults   = 4
)

// Draft is the deal being assembled. Each fragment is optional until its step is done; a value
// that fails to decode reads as absent.
type Draft struct {
	store tokenstore.Store
}

func NewDraft(store tokenstore.Store) *Draft {
	return &Draft{store: store}
}

// Snapshot is every fragment of the draft at one point in time.
type Snapshot struct {
	PropertyDetails PropertyDetails `json:"propertyDetails"`
	T12Data         T12Data         `json:"t12Data"`
	RentRollData    RentRollData    `json:"rentRollData"`
	BuyBox          BuyBox          `json:"buyBox"`
	Assumptions     Assumptions     `json:"assumptions"`
	AnalysisResults *Analysis       `json:"analysisResults"`
	FromSavedDeal   bool            `json:"isFromSavedDeal"`
	CurrentStep     int             `json:"currentStep"`
	Address         string          `json:"address,omitempty"`
	CanAnalyze      bool            `json:"canAnalyze"`
	CompletedSteps  int             `json:"completedSteps"`
}

func (d *Draft) PropertyDetails() PropertyDetails {
	var v PropertyDetails
	d.load(KeyPropertyDetails, &v)
	return v
}

func (d *Draft) SetPropertyDetails(v PropertyDetails) error {
	if v == nil {
		return d.remove(KeyPropertyDetails)
	}
	return d.save(KeyPropertyDetails, v)
}

func (d *Draft) T12Data() T12Data {
	var v T12Data
	d.load(KeyT12Data, &v)
	return v
}

func (d *Draft) SetT12Data(v T12Data) error {
	if v == nil {
		return d.remove(KeyT12Data)
	}
	return d.save(KeyT12Data, v)
}

func (d *Draft) RentRollData() RentRollData {
	var v RentRollData
	d.load(KeyRentRollData, &v)
	return v
}

func (d *Draft) SetRentRollData(v RentRollData) error {
	if v == nil {
		return d.remove(KeyRentRollData)
	}
	return d.save(KeyRentRollData, v)
}

// BuyBox returns the stored buy box, or the defaults.
func (d *Draft) BuyBox() BuyBox {
	v := DefaultBuyBox()
	d.load(KeyBuyBox, &v)
	return v
}

func (d *Draft) SetBuyBox(v BuyBox) error {
	return d.save(KeyBuyBox, v)
}

// Assumptions returns the stored assumptions, or the defaults.
func (d *Draft) Assumptions() Assumptions {
	v := DefaultAssumptions()
	d.load(KeyAssumptions, &v)
	return v
}

func (d *Draft) SetAssumptions(v Assumptions) error {
	return d.save(KeyAssumptions, v)
}

func (d *Draft) AnalysisResults() *Analysis {
	var v Analysis
	if !d.load(KeyAnalysisResults, &v) {
		return nil
	}
	return &v
}

func (d *Draft) SetAnalysisResults(v *Analysis) error {
	if v == nil {
		return d.remove(KeyAnalysisResults)
	}
	return d.save(KeyAnalysisResults, v)
}

func (d *Draft) FromSavedDeal() bool {
	var v bool
	d.load(KeyFromSavedDeal, &v)
	return v
}

func (d *Draft) SetFromSavedDeal(v bool) error {
	return d.save(KeyFromSavedDeal, v)
}

// CurrentStep is the wizard step, StepProperty when unset.
func (d *Draft) CurrentStep() int {
	raw, ok := d.store.Get(KeyCurrentStep)
	if !ok {
		return StepProperty
	}
	step, err := strconv.Atoi(raw)
	if err != nil || step < StepProperty || step > StepResults {
		return StepProperty
	}
	return step
}

func (d *Draft) SetCurrentStep(step int) error {
	if step < StepProperty || step > StepResults {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Draft SetCurrentStep] step %d", step)
	}
	return d.store.Set(KeyCurrentStep, strconv.Itoa(step))
}

func (d *Draft) Address() string {
	v, _ := d.store.Get(KeyAddress)
	return v
}

// CompletedSteps counts the wizard steps that have what they need: the property, both
// documents, and a positive asking price.
func (d *Draft) CompletedSteps() int {
	return completedSteps(d.PropertyDetails(), d.T12Data(), d.RentRollData(), d.Assumptions())
}

// CanAnalyze reports whether every step is complete.
func (d *Draft) CanAnalyze() bool {
	return d.CompletedSteps() == 3
}

// Submission builds the /deal payload, failing with ErrIncompleteDraft if a step is missing.
func (d *Draft) Submission() (Submission, error) {
	if !d.CanAnalyze() {
		return Submission{}, apperrors.ErrIncompleteDraft
	}
	return NewSubmission(d.PropertyDetails(), d.T12Data(), d.RentRollData(), d.BuyBox(), d.Assumptions()), nil
}

// RecordAnalysis stores a fresh result and moves the wizard to the results step.
func (d *Draft) RecordAnalysis(analysis *Analysis) error {
	if err := d.SetAnalysisResults(analysis); err != nil {
		return err
	}
	if err := d.SetFromSavedDeal(false); err != nil {
		return err
	}
	return d.SetCurrentStep(StepResults)
}

func (d *Draft) Snapshot() Snapshot {
	s := Snapshot{
		PropertyDetails: d.PropertyDetails(),
		T12Data:         d.T12Data(),
		RentRollData:    d.RentRollData(),
		BuyBox:          d.BuyBox(),
		Assumptions:     d.Assumptions(),
		AnalysisResults: d.AnalysisResults(),
		FromSavedDeal:   d.FromSavedDeal(),
		CurrentStep:     d.CurrentStep(),
		Address:         d.Address(),
	}
	s.CompletedSteps = completedSteps(s.PropertyDetails, s.T12Data, s.RentRollData, s.Assumptions)
	s.CanAnalyze = s.CompletedSteps == 3
	return s
}

// Clear removes every draft key, including the address.
func (d *Draft) Clear() error {
	return tokenstore.RemoveAll(d.store, DraftKeys...)
}

func completedSteps(property PropertyDetails, t12 T12Data, rentRoll RentRollData, assumptions Assumptions) int {
	n := 0
	if property != nil {
		n++
	}
	if t12 != nil && rentRoll != nil {
		n++
	}
	if assumptions.AskingPrice > 0 {
		n++
	}
	return n
}

func (d *Draft) load(key string, into any) bool {
	raw, ok := d.store.Get(key)
	if !ok || raw == "" || raw == "null" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("draft: ignoring unreadable value")
		return false
	}
	return true
}

func (d *Draft) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrapf(err, "[Draft] encode %s", key)
	}
	return d.store.Set(key, string(data))
}

func (d *Draft) remove(key string) error {
	return d.store.Remove(key)
}
