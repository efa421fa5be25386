package bloodgroup

import (
	"fmt"
	"strings"

	"github.com/hackgods/blood-bank/internal/domainerr"
)

// Group is an ABO/Rh blood group such as "O+".
type Group string

const (
	APos  Group = "A+"
	ANeg  Group = "A-"
	BPos  Group = "B+"
	BNeg  Group = "B-"
	ABPos Group = "AB+"
	ABNeg Group = "AB-"
	OPos  Group = "O+"
	ONeg  Group = "O-"
)

var ErrInvalidGroup = fmt.Errorf("%w: unknown blood group", domainerr.ErrValidation)

// All lists the groups in display order.
func All() []Group {
	return []Group{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}
}

func (g Group) Valid() bool {
	switch g {
	case APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg:
		return true
	}
	return false
}

func (g Group) String() string {
	return string(g)
}

// Parse accepts case-insensitive input with surrounding whitespace.
func Parse(s string) (Group, error) {
	g := Group(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGroup, s)
	}
	return g, nil
}
