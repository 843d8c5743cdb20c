package models

// DifferentialSuffix is appended to a circuit id to address its differential breaker
const DifferentialSuffix = ".diff"

// ChecklistItem is one entry the technician must mark OK or flagged
type ChecklistItem struct {
	ID                  string          `json:"id"`
	Label               string          `json:"label"`
	RequiresMeasurement bool            `json:"requiresMeasurement"`
	NominalVoltage      float64         `json:"nominalVoltage,omitempty"`
	RatedAmperage       float64         `json:"ratedAmperage,omitempty"`
	SubItems            []ChecklistItem `json:"subItems,omitempty"`
}

// ProtocolQuestion is a fixed yes/no question asked once per inspection
type ProtocolQuestion struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Checklist is the template an inspection is validated against
type Checklist struct {
	EquipmentID string             `json:"equipmentId"`
	Type        EquipmentType      `json:"type"`
	Subtype     string             `json:"subtype,omitempty"`
	Items       []ChecklistItem    `json:"items"`
	Protocol    []ProtocolQuestion `json:"protocol"`
}

// Find looks up an item (or a differential sub-item) by id
func (c *Checklist) Find(id string) (*ChecklistItem, bool) {
	return findItem(c.Items, id)
}

func findItem(items []ChecklistItem, id string) (*ChecklistItem, bool) {
	for i := range items {
		if items[i].ID == id {
			return &items[i], true
		}
		if found, ok := findItem(items[i].SubItems, id); ok {
			return found, true
		}
	}
	return nil, false
}

var emergencyLightItems = []ChecklistItem{
	{ID: "battery", Label: "Battery condition"},
	{ID: "lamp", Label: "Lamp operation"},
	{ID: "autonomy", Label: "Autonomy test"},
	{ID: "housing", Label: "Housing and mounting"},
	{ID: "signage", Label: "Signage visible"},
}

var groundingWellItems = []ChecklistItem{
	{ID: "cover", Label: "Cover and chamber"},
	{ID: "electrode", Label: "Electrode condition"},
	{ID: "connector", Label: "Connector tightness"},
	{ID: "conductor", Label: "Grounding conductor"},
	{ID: "treatment", Label: "Soil treatment"},
}

var panelProtocol = []ProtocolQuestion{
	{Key: "panel_labeled", Label: "Panel is labeled"},
	{Key: "directory_present", Label: "Circuit directory present"},
	{Key: "door_closes", Label: "Door closes and locks"},
	{Key: "no_exposed_parts", Label: "No exposed live parts"},
	{Key: "grounding_connected", Label: "Grounding conductor connected"},
	{Key: "clear_access", Label: "Access is clear"},
}

var emergencyLightProtocol = []ProtocolQuestion{
	{Key: "access_clear", Label: "Access is clear"},
	{Key: "test_button", Label: "Test button works"},
}

var groundingWellProtocol = []ProtocolQuestion{
	{Key: "access_clear", Label: "Access is clear"},
	{Key: "resistance_measured", Label: "Resistance measured"},
}

// BuildChecklist derives the inspection template for a piece of equipment.
// Panels get one measured item per circuit and a sub-item for each
// differential breaker; other equipment uses fixed visual items.
func BuildChecklist(eq *Equipment) *Checklist {
	c := &Checklist{
		EquipmentID: eq.ID,
		Type:        eq.Type,
		Subtype:     eq.Subtype,
	}

	switch eq.Type {
	case EquipmentElectricalPanel:
		for _, circuit := range eq.Circuits {
			item := ChecklistItem{
				ID:                  circuit.ID,
				Label:               circuit.Label,
				RequiresMeasurement: true,
				NominalVoltage:      circuit.NominalVoltage,
				RatedAmperage:       circuit.RatedAmperage,
			}
			if circuit.HasDifferential {
				item.SubItems = []ChecklistItem{{
					ID:    circuit.ID + DifferentialSuffix,
					Label: circuit.Label + " differential",
				}}
			}
			c.Items = append(c.Items, item)
		}
		c.Protocol = panelProtocol
	case EquipmentEmergencyLight:
		c.Items = append([]ChecklistItem(nil), emergencyLightItems...)
		c.Protocol = emergencyLightProtocol
	case EquipmentGroundingWell:
		c.Items = append([]ChecklistItem(nil), groundingWellItems...)
		c.Protocol = groundingWellProtocol
	}

	if c.Items == nil {
		c.Items = []ChecklistItem{}
	}
	return c
}
