package room

import "fmt"

// Entity is one object placed in a room. X and Y are shifted grid coordinates
// matching the cell that holds the entity.
type Entity struct {
	X       int
	Y       int
	Type    int
	Variant int
	Subtype int
	Weight  float32
	// Props holds XML attributes this tool does not interpret.
	Props Props
}

// ID returns the entity's identity triple formatted as "type.variant.subtype".
func (e Entity) ID() string {
	return fmt.Sprintf("%d.%d.%d", e.Type, e.Variant, e.Subtype)
}

// Stack is the ordered set of entities occupying one grid cell.
type Stack struct {
	Index    int
	X, Y     int
	Entities []Entity
	// Props are the cell's passthrough attributes, see Room.SpawnProps.
	Props Props
}
