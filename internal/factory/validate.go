package factory

import (
	"fmt"
	"regexp"
	"strings"

	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// DefaultWarehouse is the resource pool used when a request names none.
const DefaultWarehouse = "PIPELINE_WH"

// DefaultLagMinutes is the refresh lag used when a request names none.
const DefaultLagMinutes = 60

// prohibitedKeywords rejects any transformation that could mutate state.
// The list deliberately also covers session statements (USE, SET) and bulk
// loads (COPY, CALL).
var prohibitedKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE|TRUNCATE|CREATE|ALTER|DROP|GRANT|REVOKE|COPY|CALL|USE|SET)\b`)

// identifierPattern matches an unquoted object identifier.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateTransformation checks that a snippet is a single read-only
// SELECT. Anything else is rejected before the request enters the queue.
func ValidateTransformation(snippet string) error {
	s := strings.TrimSpace(snippet)
	s = strings.TrimSuffix(s, ";")

	if s == "" {
		return errors.ValidationError("transformation", "", "transformation SQL cannot be empty")
	}
	if strings.Contains(s, ";") {
		return errors.New(errors.ErrCodeNotReadOnly, "Transformation must be a single statement").
			WithSuggestions("Remove extra statements; the factory materialises exactly one SELECT")
	}

	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return errors.New(errors.ErrCodeNotReadOnly, "Transformation must start with SELECT or WITH")
	}

	if kw := prohibitedKeywords.FindString(s); kw != "" {
		return errors.New(errors.ErrCodeNotReadOnly,
			fmt.Sprintf("Transformation contains prohibited keyword %s", strings.ToUpper(kw))).
			WithContext("keyword", strings.ToUpper(kw))
	}
	return nil
}

// validateRequest checks everything beyond the snippet: target naming and
// lag bounds. Defaults are expected to be applied already.
func validateRequest(req *models.PipelineRequest) error {
	for field, value := range map[string]string{
		"target_database": req.TargetDatabase,
		"target_schema":   req.TargetSchema,
		"target_name":     req.TargetName,
	} {
		if strings.TrimSpace(value) == "" {
			return errors.ValidationError(field, value, "field is required")
		}
		if !identifierPattern.MatchString(value) {
			return errors.ValidationError(field, value, "must be a plain identifier")
		}
	}
	if req.Warehouse != "" && !identifierPattern.MatchString(req.Warehouse) {
		return errors.ValidationError("warehouse", req.Warehouse, "must be a plain identifier")
	}
	if req.LagMinutes < models.MinPipelineLagMinutes || req.LagMinutes > models.MaxPipelineLagMinutes {
		return errors.ValidationError("lag_minutes", req.LagMinutes,
			fmt.Sprintf("must be between %d and %d minutes",
				models.MinPipelineLagMinutes, models.MaxPipelineLagMinutes))
	}
	return ValidateTransformation(req.Transformation)
}

// RenderDDL builds the dynamic table statement a request materialises as.
func RenderDDL(req *models.PipelineRequest) string {
	snippet := strings.TrimSuffix(strings.TrimSpace(req.Transformation), ";")
	return fmt.Sprintf("CREATE OR REPLACE DYNAMIC TABLE %s TARGET_LAG = '%d minutes' WAREHOUSE = %s AS %s",
		req.QualifiedTarget(), req.LagMinutes, req.Warehouse, snippet)
}
