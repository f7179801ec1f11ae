package sqlparse

import (
	"fmt"

	"github.com/leapstack-labs/semlayer/pkg/token"
)

// ParseError is a total parse failure with a source position.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

func (e *ParseError) Code() string { return "PARSE" }

const errUnexpectedToken = "unexpected token %s, expected %s"
