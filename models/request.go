package models

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MoveCode identifies one of the four reorder buttons
type MoveCode int

const (
	MoveUp    MoveCode = 1
	MoveDown  MoveCode = 2
	MoveLeft  MoveCode = 3
	MoveRight MoveCode = 4
)

// TreeActionMove is the value of the _tree_action field for move requests
const TreeActionMove = "move"

// ErrInvalidMoveCode is returned when a move code is not one of the four known codes
var ErrInvalidMoveCode = errors.New("invalid move code")

var validate = validator.New()

func (m MoveCode) String() string {
	switch m {
	case MoveUp:
		return "up"
	case MoveDown:
		return "down"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	default:
		return "invalid(" + strconv.Itoa(int(m)) + ")"
	}
}

// Validate range-checks the code
func (m MoveCode) Validate() error {
	if err := validate.Var(int(m), "min=1,max=4"); err != nil {
		return ErrInvalidMoveCode
	}
	return nil
}

// ParseMoveCode parses the raw "move" form value
func ParseMoveCode(raw string) (MoveCode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidMoveCode
	}
	code := MoveCode(n)
	if err := code.Validate(); err != nil {
		return 0, err
	}
	return code, nil
}

// MoveNodeForm holds the raw fields posted by the changelist move buttons
type MoveNodeForm struct {
	Action string `form:"_tree_action"`
	NodeID string `form:"node_id"`
	Move   string `form:"move"`
}

// IsMove reports whether the form carries the move-action marker
func (f *MoveNodeForm) IsMove() bool {
	return f.Action == TreeActionMove
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Label    string `json:"label" validate:"required,min=1,max=100"`
	ParentID int64  `json:"parentId" validate:"omitempty,gt=0"`
}

// Validate validates the create node request
func (r *CreateNodeRequest) Validate() error {
	return validate.Struct(r)
}
