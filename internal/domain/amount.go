package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Amount is a transfer amount kept in its decimal text form. The producing
// service may store it as a number or as a string; both decode here.
// Records hold it by pointer so an absent amount differs from an empty one.
type Amount string

func NewAmount(s string) *Amount {
	a := Amount(s)
	return &a
}

// NumericAmount renders a float in shortest decimal form (500 -> "500", 12.5 -> "12.5").
func NumericAmount(v float64) Amount {
	return Amount(strconv.FormatFloat(v, 'f', -1, 64))
}

// canonicalNumber normalises a numeric literal the same way NumericAmount does.
// Literals that do not fit a float64 are kept verbatim.
func canonicalNumber(s string) Amount {
	if !isDecimal(s) {
		return Amount(s)
	}
	f, _ := strconv.ParseFloat(s, 64)
	return NumericAmount(f)
}

// isDecimal reports whether s is a finite JSON number literal that fits a
// float64. NaN, Inf and hex floats are not.
func isDecimal(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) || !json.Valid([]byte(s)) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func (a Amount) String() string { return string(a) }

func (a Amount) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	if isDecimal(string(a)) {
		return &types.AttributeValueMemberN{Value: string(a)}, nil
	}
	return &types.AttributeValueMemberS{Value: string(a)}, nil
}

func (a *Amount) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		*a = canonicalNumber(v.Value)
	case *types.AttributeValueMemberS:
		*a = Amount(v.Value)
	case *types.AttributeValueMemberNULL:
		*a = ""
	default:
		return fmt.Errorf("amount: unsupported attribute type %T", av)
	}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if isDecimal(string(a)) {
		return []byte(a), nil
	}
	return json.Marshal(string(a))
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = canonicalNumber(strings.TrimSpace(n.String()))
	}
	return nil
}
