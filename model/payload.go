package model

// BuildSuite is the suite name given to the synthetic build case.
const BuildSuite = "[build]"

// Build describes the overall build outcome, uploaded as a final synthetic
// case next to the test cases.
type Build struct {
	Name        string         `json:"name" yaml:"name"`
	Result      string         `json:"result,omitempty" yaml:"result,omitempty"`
	Desc        string         `json:"desc,omitempty" yaml:"desc,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Reason      string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Files       []string       `json:"files,omitempty" yaml:"files,omitempty"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Start       *float64       `json:"start,omitempty" yaml:"start,omitempty"`
	End         *float64       `json:"end,omitempty" yaml:"end,omitempty"`
	Duration    *float64       `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Custom fields, keys are prefixed with an underscore when missing
	Custom map[string]any `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Payload is the single upload sent to the results backend.
type Payload struct {
	Target  string  `json:"target"`
	Results Results `json:"results"`
}

// Results holds the ordered case list of a Payload.
type Results struct {
	Cases []TestCase `json:"cases"`
}

// Response is what the results backend returns for an upload.
type Response struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}
