package rules

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	"snowpilot/internal/warehouse"
	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Condition compares one signal statistic against a literal.
type Condition struct {
	Metric string  `yaml:"metric"`
	Stat   string  `yaml:"stat"`
	Op     string  `yaml:"op"`
	Value  float64 `yaml:"value"`
}

// Rule is one link in the ordered chain. The first rule that matches an
// entity's signal decides that entity's candidate; later rules are not
// consulted. Rationale and Statement are text templates over the signal's
// parameter map; a template referencing an unresolvable parameter causes
// the candidate to be withheld.
type Rule struct {
	Name           string            `yaml:"name"`
	Category       string            `yaml:"category"`
	Classification string            `yaml:"classification"`
	When           []Condition       `yaml:"when_all"`
	Rationale      string            `yaml:"rationale"`
	Statement      string            `yaml:"statement"`
	Params         map[string]string `yaml:"params"`

	rationaleTmpl *template.Template
	statementTmpl *template.Template
}

// compile parses the rule's templates. Missing parameters become render
// errors, which is what drives withholding.
func (r *Rule) compile() error {
	var err error
	r.rationaleTmpl, err = template.New(r.Name + ":rationale").
		Option("missingkey=error").Parse(r.Rationale)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRulepackInvalid, "Invalid rationale template").
			WithContext("rule", r.Name)
	}
	r.statementTmpl, err = template.New(r.Name + ":statement").
		Option("missingkey=error").Parse(r.Statement)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRulepackInvalid, "Invalid statement template").
			WithContext("rule", r.Name)
	}
	return nil
}

// validate checks the rule is well formed before it joins the chain.
func (r *Rule) validate() error {
	if r.Name == "" {
		return errors.New(errors.ErrCodeRulepackInvalid, "Rule missing name")
	}
	if r.Category == "" {
		return errors.New(errors.ErrCodeRulepackInvalid, "Rule missing category").
			WithContext("rule", r.Name)
	}
	for _, c := range r.When {
		if !validStat(c.Stat) {
			return errors.New(errors.ErrCodeRulepackInvalid, "Unknown stat: "+c.Stat).
				WithContext("rule", r.Name)
		}
		if !validOp(c.Op) {
			return errors.New(errors.ErrCodeRulepackInvalid, "Unknown operator: "+c.Op).
				WithContext("rule", r.Name)
		}
	}
	return nil
}

// Matches reports whether the signal satisfies the rule: the
// classification must line up and every condition must hold. A condition
// over a metric the signal lacks fails the match.
func (r *Rule) Matches(sig *models.Signal) bool {
	wantClass := r.Classification
	if wantClass == "" {
		wantClass = models.ClassificationOK
	}
	if sig.Classification != wantClass {
		return false
	}

	for _, c := range r.When {
		st, ok := sig.Stat(c.Metric)
		if !ok {
			return false
		}
		lhs, ok := statValue(st, c.Stat)
		if !ok {
			return false
		}
		if !evalOp(c.Op, lhs, c.Value) {
			return false
		}
	}
	return true
}

// render produces the rationale and statement for a matched signal. An
// unresolvable template parameter returns an error; the caller withholds
// the candidate.
func (r *Rule) render(sig *models.Signal) (rationale, statement string, params map[string]string, err error) {
	params = buildParams(sig, r.Params)

	var buf bytes.Buffer
	if err := r.rationaleTmpl.Execute(&buf, params); err != nil {
		return "", "", nil, errors.Wrap(err, errors.ErrCodeValidationFailed, "Unresolvable rationale parameter").
			WithContext("rule", r.Name).
			WithContext("entity", sig.EntityKey)
	}
	rationale = buf.String()

	buf.Reset()
	if err := r.statementTmpl.Execute(&buf, params); err != nil {
		return "", "", nil, errors.Wrap(err, errors.ErrCodeValidationFailed, "Unresolvable statement parameter").
			WithContext("rule", r.Name).
			WithContext("entity", sig.EntityKey)
	}
	statement = strings.TrimSpace(buf.String())

	return rationale, statement, params, nil
}

// buildParams flattens a signal into template parameters: the entity key,
// sample count, every metric statistic as <metric>_<stat>, the signal
// attributes, and size-ladder derivations when a size is known. Static rule
// params come last and may override.
func buildParams(sig *models.Signal, static map[string]string) map[string]string {
	params := map[string]string{
		"entity":       sig.EntityKey,
		"sample_count": strconv.Itoa(sig.SampleCount),
	}

	for metric, st := range sig.Metrics {
		params[metric+"_count"] = strconv.Itoa(st.Count)
		params[metric+"_mean"] = formatFloat(st.Mean)
		params[metric+"_min"] = formatFloat(st.Min)
		params[metric+"_max"] = formatFloat(st.Max)
		params[metric+"_stddev"] = formatFloat(st.StdDev)
		params[metric+"_p95"] = formatFloat(st.P95)
		params[metric+"_median"] = formatFloat(st.Median)
		params[metric+"_mad"] = formatFloat(st.MAD)
	}

	for k, v := range sig.Attributes {
		params[k] = v
	}

	if size, ok := sig.Attributes["size"]; ok {
		if down, ok := warehouse.StepDown(size); ok {
			params["target_size_down"] = down
		}
		if up, ok := warehouse.StepUp(size); ok {
			params["target_size_up"] = up
		}
	}

	for k, v := range static {
		params[k] = v
	}
	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func statValue(st models.Stats, stat string) (float64, bool) {
	switch stat {
	case "count":
		return float64(st.Count), true
	case "mean":
		return st.Mean, true
	case "min":
		return st.Min, true
	case "max":
		return st.Max, true
	case "stddev":
		return st.StdDev, true
	case "p95":
		return st.P95, true
	case "median":
		return st.Median, true
	case "mad":
		return st.MAD, true
	default:
		return 0, false
	}
}

func validStat(stat string) bool {
	_, ok := statValue(models.Stats{}, stat)
	return ok
}

func evalOp(op string, lhs, rhs float64) bool {
	switch op {
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	default:
		return false
	}
}

func validOp(op string) bool {
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
		return true
	}
	return false
}

// ResolveDisposition applies the default-safe policy in one place:
// REVIEW_REQUIRED unless the category is explicitly whitelisted, and never
// auto-eligible without an executable statement.
func ResolveDisposition(category, statement string, autoApprove []string) models.Disposition {
	if strings.TrimSpace(statement) == "" {
		return models.DispositionReviewRequired
	}
	for _, allowed := range autoApprove {
		if strings.EqualFold(allowed, category) {
			return models.DispositionAutoEligible
		}
	}
	return models.DispositionReviewRequired
}
