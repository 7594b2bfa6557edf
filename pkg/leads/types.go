package leads

import (
	"fmt"
	"strings"
)

// ResearchParams are the structured search parameters of a lead search.
type ResearchParams struct {
	Who     string `json:"who_query" binding:"required" validate:"required"`
	What    string `json:"what_query" binding:"required" validate:"required"`
	Where   string `json:"where_query,omitempty"`
	Context string `json:"context_query,omitempty"`
}

// Query renders the params into the natural-language request given to the agent.
func (p ResearchParams) Query() string {
	return fmt.Sprintf(`Find me as many leads as possible for the following query:

Who: %s
What is the field of study: %s
Where are they located: %s
Additional context: %s
`, p.Who, p.What, orNone(p.Where), orNone(p.Context))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

// Lead is a candidate contact record.
type Lead struct {
	Name              string `json:"name" validate:"required" jsonschema:"The name of the person, without titles or degrees like PhD, MD or Dr."`
	Email             string `json:"email,omitempty" jsonschema:"Email address, only if explicitly stated in a source"`
	Title             string `json:"title,omitempty" jsonschema:"Professional title, e.g. Professor or Associate Professor"`
	Headline          string `json:"headline,omitempty" jsonschema:"Headline, e.g. Professor at University X, Department Y"`
	Phone             string `json:"phone,omitempty" jsonschema:"Phone number, only if explicitly stated in a source"`
	Website           string `json:"website,omitempty" jsonschema:"Official profile or personal website"`
	Institution       string `json:"institution,omitempty" jsonschema:"Current institution or organization"`
	BackgroundSummary string `json:"background_summary,omitempty" jsonschema:"Short summary of background, research interests and publications"`
	SourceURL         string `json:"source_url,omitempty" jsonschema:"The URL where the information was found"`
}

func (l Lead) String() string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Name", l.Name)
	add("Title", l.Title)
	add("Headline", l.Headline)
	add("Email", l.Email)
	add("Phone", l.Phone)
	add("Website", l.Website)
	add("Background", l.BackgroundSummary)
	add("Source", l.SourceURL)
	return strings.Join(lines, "\n")
}

// LeadResults is an ordered, possibly duplicated, list of leads.
type LeadResults struct {
	Leads []Lead `json:"leads" validate:"dive" jsonschema:"All leads found"`
}

func (r LeadResults) String() string {
	if len(r.Leads) == 0 {
		return "No leads found."
	}
	parts := make([]string, len(r.Leads))
	for i, l := range r.Leads {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n\n")
}

// Names returns the lead names in order.
func (r LeadResults) Names() []string {
	names := make([]string, len(r.Leads))
	for i, l := range r.Leads {
		names[i] = l.Name
	}
	return names
}

// ResearcherResults is what a delegated researcher reports back to its orchestrator.
type ResearcherResults struct {
	Task           string      `json:"task" jsonschema:"The task that was assigned"`
	SearchStrategy string      `json:"search_strategy" jsonschema:"How the search was carried out"`
	Leads          LeadResults `json:"leads" jsonschema:"Leads found for the task"`
}

func (r ResearcherResults) String() string {
	return fmt.Sprintf("Task: %s\nSearch strategy: %s\n\n%s", r.Task, r.SearchStrategy, r.Leads.String())
}

// EvalParams pairs a query with its expected leads.
type EvalParams struct {
	QueryParams     ResearchParams `json:"query_params" validate:"required"`
	ExpectedResults LeadResults    `json:"expected_results"`
}
