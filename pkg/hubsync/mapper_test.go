package hubsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageMapping_RoundTrip(t *testing.T) {
	// internal -> external -> internal is the identity for every phase.
	for phase := range phaseToStage {
		stage, ok := StageForPhase(phase)
		require.True(t, ok, "phase %s has no external stage", phase)

		back, ok := PhaseForStage(stage)
		require.True(t, ok)
		assert.Equal(t, phase, back)
	}
}

func TestStageMapping_Total(t *testing.T) {
	assert.Len(t, stageToPhase, 7)
	assert.Len(t, phaseToStage, 7, "forward mapping must be injective")
}

func TestPhaseForStage_UnknownStage(t *testing.T) {
	// Unrecognized stages must not fail; callers pass them through.
	_, ok := PhaseForStage("custom_pipeline_stage_7")
	assert.False(t, ok)
}

func fullDeal() *Deal {
	return &Deal{
		ID:        "9001",
		Name:      "VA EHR Modernization",
		Amount:    1250000,
		Stage:     string(StageContractSent),
		CloseDate: "2026-03-31",
		Pipeline:  "default",
		OwnerID:   "155",

		PWin:               72.5,
		GateStatus:         "GO",
		Phase:              string(PhaseReview),
		ComplianceCoverage: 88,
		SolicitationNumber: "36C10B26R0012",
		Agency:             "VA",
		PriorityTier:       "P-0",
		ContractVehicle:    "T4NG",
	}
}

// asResponse wraps a property map into the wire shape of an object read.
func asResponse(t *testing.T, id string, props map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"id": id, "properties": props})
	require.NoError(t, err)
	return body
}

func TestDealProperties_SerializesNumbersAsStrings(t *testing.T) {
	props := DealProperties(fullDeal())

	assert.Equal(t, "1250000", props["amount"])
	assert.Equal(t, "72.5", props["amanda_pwin"])
	assert.Equal(t, "88", props["amanda_compliance_coverage"])
	assert.Equal(t, "contractsent", props["dealstage"])
}

func TestDealRoundTrip(t *testing.T) {
	orig := fullDeal()

	back, err := DealFromResponse(asResponse(t, orig.ID, DealProperties(orig)))
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestDealFromResponse_MissingExtensionDefaults(t *testing.T) {
	deal, err := DealFromResponse(asResponse(t, "77", map[string]string{
		"dealname":  "DHA Telehealth",
		"amount":    "50000",
		"dealstage": "qualifiedtobuy",
	}))
	require.NoError(t, err)

	assert.Equal(t, "DHA Telehealth", deal.Name)
	assert.Equal(t, float64(0), deal.PWin)
	assert.Equal(t, "PENDING", deal.GateStatus)
	assert.Equal(t, "qualification", deal.Phase)
	assert.Equal(t, float64(0), deal.ComplianceCoverage)
	assert.Equal(t, "P-2", deal.PriorityTier)
	assert.Equal(t, "default", deal.Pipeline)
}

func TestDealFromResponse_UnknownStagePassthrough(t *testing.T) {
	deal, err := DealFromResponse(asResponse(t, "12", map[string]string{
		"dealname":  "Custom pipeline deal",
		"dealstage": "internal_review_stage",
	}))
	require.NoError(t, err)

	// An unexpected pipeline configuration is carried opaquely.
	assert.Equal(t, "internal_review_stage", deal.Stage)
}

func TestDealFromResponse_GarbageNumbers(t *testing.T) {
	deal, err := DealFromResponse(asResponse(t, "13", map[string]string{
		"amount":      "not-a-number",
		"amanda_pwin": "",
	}))
	require.NoError(t, err)
	assert.Zero(t, deal.Amount)
	assert.Zero(t, deal.PWin)
}

func TestDealFromResponse_Malformed(t *testing.T) {
	_, err := DealFromResponse([]byte(`{"id": [1,2]}`))
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
