// Package hierarchy builds the canonical make/model taxonomy from
// curated-year vehicle records.
package hierarchy

// Hierarchy is the trusted Make -> Model -> {fuel types, vehicle types}
// tree for one year partition. Immutable once built; a partition change
// produces a whole new tree.
type Hierarchy struct {
	Signature string              `json:"signature"`
	Makes     map[int64]*MakeNode `json:"makes"`

	byName map[string]*MakeNode
}

// MakeNode is one canonical make and its models.
type MakeNode struct {
	ID     int64                `json:"id"`
	Name   string               `json:"name"`
	Models map[int64]*ModelNode `json:"models"`

	byName map[string]*ModelNode
}

// ModelNode is one canonical model. FuelTypes and VehicleTypes are the
// sets ever observed in curated years (for ambiguity detection);
// FuelTypesByYear keys fuel observations by model year, since fuel
// composition can legitimately change year to year.
type ModelNode struct {
	ID              int64                  `json:"id"`
	Name            string                 `json:"name"`
	FuelTypes       map[int64]bool         `json:"fuelTypes"`
	VehicleTypes    map[int64]bool         `json:"vehicleTypes"`
	FuelTypesByYear map[int]map[int64]bool `json:"fuelTypesByYear"`
}

// NewHierarchy creates an empty hierarchy for a signature.
func NewHierarchy(signature string) *Hierarchy {
	return &Hierarchy{
		Signature: signature,
		Makes:     make(map[int64]*MakeNode),
		byName:    make(map[string]*MakeNode),
	}
}

// IsEmpty reports whether the hierarchy has no makes.
func (h *Hierarchy) IsEmpty() bool {
	return len(h.Makes) == 0
}

// FindMake returns the make node with the exact (case-sensitive) name.
func (h *Hierarchy) FindMake(name string) (*MakeNode, bool) {
	mk, ok := h.byName[name]
	return mk, ok
}

// Find returns the model node for the exact make and model names.
func (h *Hierarchy) Find(makeName, modelName string) (*ModelNode, bool) {
	mk, ok := h.byName[makeName]
	if !ok {
		return nil, false
	}
	return mk.Find(modelName)
}

// Find returns the model node with the exact name under this make.
func (mk *MakeNode) Find(modelName string) (*ModelNode, bool) {
	md, ok := mk.byName[modelName]
	return md, ok
}

// Contains reports whether the exact (make, model) node exists.
func (h *Hierarchy) Contains(makeName, modelName string) bool {
	_, ok := h.Find(makeName, modelName)
	return ok
}

// observe records one curated combination into the tree.
func (h *Hierarchy) observe(makeID int64, makeName string, modelID int64, modelName string, fuelTypeID, vehicleTypeID *int64, modelYear int) {
	mk, ok := h.Makes[makeID]
	if !ok {
		mk = &MakeNode{
			ID:     makeID,
			Name:   makeName,
			Models: make(map[int64]*ModelNode),
			byName: make(map[string]*ModelNode),
		}
		h.Makes[makeID] = mk
		h.byName[makeName] = mk
	}

	md, ok := mk.Models[modelID]
	if !ok {
		md = &ModelNode{
			ID:              modelID,
			Name:            modelName,
			FuelTypes:       make(map[int64]bool),
			VehicleTypes:    make(map[int64]bool),
			FuelTypesByYear: make(map[int]map[int64]bool),
		}
		mk.Models[modelID] = md
		mk.byName[modelName] = md
	}

	if fuelTypeID != nil {
		md.FuelTypes[*fuelTypeID] = true
		if modelYear != 0 {
			byYear := md.FuelTypesByYear[modelYear]
			if byYear == nil {
				byYear = make(map[int64]bool)
				md.FuelTypesByYear[modelYear] = byYear
			}
			byYear[*fuelTypeID] = true
		}
	}
	if vehicleTypeID != nil {
		md.VehicleTypes[*vehicleTypeID] = true
	}
}

// reindex rebuilds the name lookups after deserialization.
func (h *Hierarchy) reindex() {
	h.byName = make(map[string]*MakeNode, len(h.Makes))
	for _, mk := range h.Makes {
		h.byName[mk.Name] = mk
		mk.byName = make(map[string]*ModelNode, len(mk.Models))
		for _, md := range mk.Models {
			mk.byName[md.Name] = md
		}
	}
}
