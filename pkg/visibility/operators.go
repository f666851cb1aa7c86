package visibility

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Operator compares the left and right operand of a condition.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEmpty        Operator = "empty"
	OpNotEmpty     Operator = "!empty"
)

// Connector joins a condition with its next condition.
type Connector string

const (
	ConnAnd    Connector = "and"
	ConnOr     Connector = "or"
	ConnAndNot Connector = "and-not"
	ConnOrNot  Connector = "or-not"
)

var (
	ErrInvalidOperator  = errors.New("invalid visibility operator")
	ErrInvalidConnector = errors.New("invalid visibility connector")
)

// ParseOperator validates an operator string.
func ParseOperator(s string) (Operator, error) {
	switch op := Operator(s); op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpEmpty, OpNotEmpty:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
}

// ParseConnector validates a connector string.
func ParseConnector(s string) (Connector, error) {
	switch c := Connector(s); c {
	case ConnAnd, ConnOr, ConnAndNot, ConnOrNot:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidConnector, s)
}

// EvaluateCondition applies op to the resolved operands.
// Equality compares the string forms. Relational operators compare numerically
// when both sides are numbers and lexically otherwise. An unknown operator is
// logged and evaluates to false.
func (e *Evaluator) EvaluateCondition(left, right any, op Operator) bool {
	switch op {
	case OpEqual:
		return stringify(left) == stringify(right)
	case OpNotEqual:
		return stringify(left) != stringify(right)
	case OpLess:
		return compare(left, right) < 0
	case OpLessEqual:
		return compare(left, right) <= 0
	case OpGreater:
		return compare(left, right) > 0
	case OpGreaterEqual:
		return compare(left, right) >= 0
	case OpEmpty:
		return !isTruthy(left)
	case OpNotEmpty:
		return isTruthy(left)
	default:
		e.logger.Error("no valid visibility operator", zap.String("operator", string(op)))
		return false
	}
}

// EvaluateLogicalOperation joins the current result a with the chained result b.
// An unknown connector is logged and evaluates to false.
func (e *Evaluator) EvaluateLogicalOperation(conn Connector, a, b bool) bool {
	switch conn {
	case ConnAnd:
		return a && b
	case ConnOr:
		return a || b
	case ConnAndNot:
		return a && !b
	case ConnOrNot:
		return a || !b
	default:
		e.logger.Error("no valid visibility connector", zap.String("connector", string(conn)))
		return false
	}
}

// compare orders two operands: -1, 0 or 1.
func compare(a, b any) int {
	aNum, aOk := toNumber(a)
	bNum, bOk := toNumber(b)
	if aOk && bOk {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
		return 0
	}
	return strings.Compare(stringify(a), stringify(b))
}

// toNumber converts numeric values and numeric strings to float64.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringify renders an operand the way the form client concatenates it with "".
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case []any:
		parts := make([]string, len(s))
		for i, item := range s {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// isTruthy reports whether a value counts as present.
// nil, false, 0, NaN and "" are falsy. Collections are truthy even when empty.
func isTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	}
	if n, ok := toNumberStrict(value); ok {
		return n != 0
	}
	return true
}

// toNumberStrict is toNumber without string parsing.
func toNumberStrict(v any) (float64, bool) {
	if _, isString := v.(string); isString {
		return 0, false
	}
	return toNumber(v)
}
