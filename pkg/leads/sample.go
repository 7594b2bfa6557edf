package leads

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// QueryType is the kind of synthetic query a sample was generated from.
type QueryType string

const (
	QueryTypeDomainTopic          QueryType = "domain_topic"
	QueryTypeInstitutionFocused   QueryType = "institution_focused"
	QueryTypeIndividualResearcher QueryType = "individual_researcher"
	QueryTypeLocationBased        QueryType = "location_based"
)

func (q QueryType) String() string { return string(q) }

// OpenAlexResults records the OpenAlex entities a sample was built from.
type OpenAlexResults struct {
	TopicID              string   `json:"topic_id,omitempty"`
	TopicDisplayName     string   `json:"topic_display_name,omitempty"`
	TopicKeywords        []string `json:"topic_keywords,omitempty"`
	TopicDomain          string   `json:"topic_domain,omitempty"`
	TopicField           string   `json:"topic_field,omitempty"`
	TopicSubfield        string   `json:"topic_subfield,omitempty"`
	InstitutionID        string   `json:"institution_id,omitempty"`
	InstitutionCountry   string   `json:"institution_country,omitempty"`
	City                 string   `json:"city,omitempty"`
	TargetResearcherID   string   `json:"target_researcher_id,omitempty"`
	TargetResearcherName string   `json:"target_researcher_name,omitempty"`
	WorkID               string   `json:"work_id,omitempty"`
}

// Sample is one benchmark case: a query and the leads a human verified for it.
type Sample struct {
	QueryParams     ResearchParams  `json:"query_params" validate:"required"`
	QueryString     string          `json:"query_string,omitempty"`
	QueryType       QueryType       `json:"query_type,omitempty" validate:"omitempty,oneof=domain_topic institution_focused individual_researcher location_based"`
	ExpectedResults LeadResults     `json:"expected_results"`
	OpenAlexResults OpenAlexResults `json:"openalex_results"`
}

// EvalParams returns the sample reduced to what the evaluator needs.
func (s Sample) EvalParams() EvalParams {
	return EvalParams{QueryParams: s.QueryParams, ExpectedResults: s.ExpectedResults}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the shape of a decoded record.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %T: %w", v, err)
	}
	return nil
}
