package see

import (
	"fmt"
	"math"
)

// Object is the data model used to represents an object.
type Object map[string]interface{}

// Pos is a position.
type Pos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Message is the message for see.
type Message struct {
	Action   string `json:"action"`
	Object   Object `json:"object,omitempty"`
	RemoveID string `json:"id,omitempty"`
}

// Actions
const (
	ActionReset  = "reset"
	ActionObject = "object"
	ActionRemove = "remove"
)

// Properties
const (
	PropID     = "id"
	PropType   = "type"
	PropOrigin = "origin"
	PropTarget = "target"
	PropRadius = "radius"
	PropLabel  = "label"
	PropStyles = "styles"
)

// Object types
const (
	TypeCorner = "corner"
	TypeBoard  = "board"
	TypeLink   = "link"
)

// BoardID is the object id of a board.
func BoardID(id int) string {
	return fmt.Sprintf("board-%d", id)
}

// LinkID is the object id of the link between two boards.
func LinkID(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("link-%d-%d", a, b)
}

// Placement places board id of n evenly on a circle of radius r, the
// first board on top.
func Placement(id, n int, r float64) Pos {
	angle := 2*math.Pi*float64(id)/float64(n) - math.Pi/2
	return Pos{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
}

// NewObject creates Object.
func NewObject(typ, id string) Object {
	o := make(Object)
	o[PropID] = id
	o[PropType] = typ
	return o
}

// At sets origin.
func (o Object) At(x, y float64) Object {
	o[PropOrigin] = &Pos{X: x, Y: y}
	return o
}

// To sets the target of a link.
func (o Object) To(x, y float64) Object {
	o[PropTarget] = &Pos{X: x, Y: y}
	return o
}

// Radius sets radius.
func (o Object) Radius(r float64) Object {
	o[PropRadius] = r
	return o
}

// Styles sets style classes.
func (o Object) Styles(styles ...string) Object {
	o[PropStyles] = styles
	return o
}

// With sets a custom property.
func (o Object) With(key string, val interface{}) Object {
	o[key] = val
	return o
}
