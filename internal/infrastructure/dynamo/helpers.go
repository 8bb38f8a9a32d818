package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a rendered UpdateExpression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET expression,
// followed by a REMOVE clause for the given fields. Keys are sorted so the
// output is deterministic.
func buildUpdateExpr(set map[string]interface{}, remove ...string) (updateExpr, error) {
	ue := updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}
	if len(set) == 0 && len(remove) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	i := 0
	var clauses []string
	if len(keys) > 0 {
		assigns := make([]string, 0, len(keys))
		for _, k := range keys {
			nameKey := fmt.Sprintf("#f%d", i)
			valueKey := fmt.Sprintf(":v%d", i)
			av, err := attributevalue.Marshal(set[k])
			if err != nil {
				return updateExpr{}, fmt.Errorf("marshal field %s: %w", k, err)
			}
			ue.Names[nameKey] = k
			ue.Values[valueKey] = av
			assigns = append(assigns, fmt.Sprintf("%s = %s", nameKey, valueKey))
			i++
		}
		clauses = append(clauses, "SET "+strings.Join(assigns, ", "))
	}

	if len(remove) > 0 {
		sorted := append([]string(nil), remove...)
		sort.Strings(sorted)
		names := make([]string, 0, len(sorted))
		for _, k := range sorted {
			nameKey := fmt.Sprintf("#f%d", i)
			ue.Names[nameKey] = k
			names = append(names, nameKey)
			i++
		}
		clauses = append(clauses, "REMOVE "+strings.Join(names, ", "))
	}

	ue.Expr = strings.Join(clauses, " ")
	return ue, nil
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
