package hubsync

import (
	"encoding/json"
	"strconv"
)

// dealPropertyNames lists every property requested from read endpoints:
// the standard deal fields plus the AMANDA extension properties.
var dealPropertyNames = []string{
	"dealname", "amount", "dealstage", "closedate", "pipeline",
	"hubspot_owner_id",
	"amanda_pwin", "amanda_gate_status", "amanda_phase",
	"amanda_compliance_coverage", "amanda_solicitation_number",
	"amanda_agency", "amanda_priority_tier", "amanda_contract_vehicle",
}

// objectResponse is the wire shape of a CRM v3 object: its standard fields
// plus a string-typed property bag.
type objectResponse struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
}

type listResponse struct {
	Results []objectResponse `json:"results"`
	Paging  struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// DealProperties converts a Deal to the string-typed property map the CRM
// property API expects. Numeric extension properties are serialized as
// decimal strings.
func DealProperties(d *Deal) map[string]string {
	return map[string]string{
		"dealname":         d.Name,
		"amount":           formatFloat(d.Amount),
		"dealstage":        d.Stage,
		"closedate":        d.CloseDate,
		"pipeline":         d.Pipeline,
		"hubspot_owner_id": d.OwnerID,

		"amanda_pwin":                formatFloat(d.PWin),
		"amanda_gate_status":         d.GateStatus,
		"amanda_phase":               d.Phase,
		"amanda_compliance_coverage": formatFloat(d.ComplianceCoverage),
		"amanda_solicitation_number": d.SolicitationNumber,
		"amanda_agency":              d.Agency,
		"amanda_priority_tier":       d.PriorityTier,
		"amanda_contract_vehicle":    d.ContractVehicle,
	}
}

// DealFromResponse builds a Deal from a CRM object response. Missing or
// null extension properties take their documented defaults so that deals
// created before the AMANDA schema existed still map cleanly.
func DealFromResponse(data []byte) (*Deal, error) {
	var obj objectResponse
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &ValidationError{Message: "malformed deal response: " + err.Error()}
	}
	return dealFromObject(&obj), nil
}

func dealFromObject(obj *objectResponse) *Deal {
	props := obj.Properties
	return &Deal{
		ID:        obj.ID,
		Name:      props["dealname"],
		Amount:    parseFloat(props["amount"], 0),
		Stage:     props["dealstage"],
		CloseDate: props["closedate"],
		Pipeline:  stringOr(props["pipeline"], "default"),
		OwnerID:   props["hubspot_owner_id"],
		CreatedAt: obj.CreatedAt,
		UpdatedAt: obj.UpdatedAt,

		PWin:               parseFloat(props["amanda_pwin"], 0),
		GateStatus:         stringOr(props["amanda_gate_status"], "PENDING"),
		Phase:              stringOr(props["amanda_phase"], string(PhaseQualification)),
		ComplianceCoverage: parseFloat(props["amanda_compliance_coverage"], 0),
		SolicitationNumber: props["amanda_solicitation_number"],
		Agency:             props["amanda_agency"],
		PriorityTier:       stringOr(props["amanda_priority_tier"], "P-2"),
		ContractVehicle:    props["amanda_contract_vehicle"],
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
