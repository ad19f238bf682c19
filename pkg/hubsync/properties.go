package hubsync

import (
	"context"
	"errors"
	"strings"
)

const dealPropertiesPath = "crm/" + apiVersion + "/properties/deals"

type propertyOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type propertyDefinition struct {
	Name        string           `json:"name"`
	Label       string           `json:"label"`
	Type        string           `json:"type"`
	FieldType   string           `json:"fieldType"`
	GroupName   string           `json:"groupName"`
	Description string           `json:"description,omitempty"`
	Options     []propertyOption `json:"options,omitempty"`
}

// amandaProperties is the fixed extension schema grafted onto the deal
// object. It must exist in the portal before the first sync.
var amandaProperties = []propertyDefinition{
	{
		Name: "amanda_pwin", Label: "Win Probability",
		Type: "number", FieldType: "number", GroupName: propertyGroupName,
		Description: "AMANDA calculated probability of win (0-100)",
	},
	{
		Name: "amanda_gate_status", Label: "Gate Status",
		Type: "enumeration", FieldType: "select", GroupName: propertyGroupName,
		Description: "Current gate decision status",
		Options: []propertyOption{
			{Label: "Pending", Value: "PENDING"},
			{Label: "Go", Value: "GO"},
			{Label: "Conditional Go", Value: "CONDITIONAL_GO"},
			{Label: "Pause", Value: "PAUSE"},
			{Label: "No-Go", Value: "NO_GO"},
		},
	},
	{
		Name: "amanda_phase", Label: "Proposal Phase",
		Type: "enumeration", FieldType: "select", GroupName: propertyGroupName,
		Description: "Current Shipley proposal phase",
		Options: []propertyOption{
			{Label: "Qualification", Value: "qualification"},
			{Label: "Gate 1", Value: "gate_1"},
			{Label: "Capture", Value: "capture"},
			{Label: "Development", Value: "development"},
			{Label: "Review", Value: "review"},
			{Label: "Submitted", Value: "submitted"},
			{Label: "Archived", Value: "archived"},
		},
	},
	{
		Name: "amanda_compliance_coverage", Label: "Compliance Coverage %",
		Type: "number", FieldType: "number", GroupName: propertyGroupName,
		Description: "Percentage of requirements with evidence",
	},
	{
		Name: "amanda_solicitation_number", Label: "Solicitation Number",
		Type: "string", FieldType: "text", GroupName: propertyGroupName,
		Description: "Federal solicitation/RFP number",
	},
	{
		Name: "amanda_agency", Label: "Agency",
		Type: "string", FieldType: "text", GroupName: propertyGroupName,
		Description: "Target federal agency (VA, DHA, CMS, etc.)",
	},
	{
		Name: "amanda_priority_tier", Label: "Priority Tier",
		Type: "enumeration", FieldType: "select", GroupName: propertyGroupName,
		Description: "Opportunity priority classification",
		Options: []propertyOption{
			{Label: "P-0 (Must Win)", Value: "P-0"},
			{Label: "P-1 (Strategic)", Value: "P-1"},
			{Label: "P-2 (Gap Filler)", Value: "P-2"},
		},
	},
	{
		Name: "amanda_contract_vehicle", Label: "Contract Vehicle",
		Type: "string", FieldType: "text", GroupName: propertyGroupName,
		Description: "IDIQ vehicle (GSA, T4NG, etc.)",
	},
}

// EnsureProperties creates the AMANDA property group and custom deal
// properties in the portal. The operation is idempotent: properties that
// already exist are treated as success.
func (c *Client) EnsureProperties(ctx context.Context) error {
	_, err := c.Request(ctx, "POST", dealPropertiesPath+"/groups", map[string]any{
		"name":         propertyGroupName,
		"label":        "AMANDA Portal",
		"displayOrder": 0,
	}, nil)
	if err != nil && !alreadyExists(err) {
		c.logger.Warn("could not create property group",
			Field{Key: "group", Value: propertyGroupName},
			Field{Key: "error", Value: err.Error()})
	}

	for _, prop := range amandaProperties {
		_, err := c.Request(ctx, "POST", dealPropertiesPath, prop, nil)
		switch {
		case err == nil:
			c.logger.Info("created property", Field{Key: "name", Value: prop.Name})
		case alreadyExists(err):
			c.logger.Debug("property already exists", Field{Key: "name", Value: prop.Name})
		default:
			return err
		}
	}

	return nil
}

// alreadyExists reports whether an APIError indicates the resource is
// already present (conflict status or HubSpot's message text).
func alreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == 409 {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}
