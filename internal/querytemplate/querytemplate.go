// Package querytemplate renders the MetricsQL queries behind the service
// health widgets. Environment and service values are substituted as quoted
// label matchers, never spliced into the query text.
package querytemplate

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

// Template names.
const (
	ServiceFaults    = "service_faults"
	DependencyFaults = "dependency_faults"
	Latency          = "latency"
	Throughput       = "throughput"
	FailureRatio     = "failure_ratio"
)

// Data is what a template may reference.
type Data struct {
	Environment string
	Service     string
	// Bucket is a duration token such as "15m" or "7d".
	Bucket string
	// Step is the range query resolution, also a duration token.
	Step string
	// Labels holds the configured label names (service, environment, ...).
	Labels Labels
}

// Labels names the backend labels the templates group and match on.
type Labels struct {
	Service       string
	Environment   string
	RemoteService string
}

// DefaultLabels follows the OpenTelemetry span metrics and service graph
// connector conventions.
var DefaultLabels = Labels{
	Service:       "service_name",
	Environment:   "deployment_environment",
	RemoteService: "server",
}

var defaultSources = map[string]string{
	ServiceFaults: `100 * sum by ({{.Labels.Service}}, {{.Labels.Environment}}) (increase(traces_spanmetrics_calls_total{{selector .Labels.Environment .Environment "status_code" "STATUS_CODE_ERROR"}}[{{.Bucket}}]))` +
		` / sum by ({{.Labels.Service}}, {{.Labels.Environment}}) (increase(traces_spanmetrics_calls_total{{selector .Labels.Environment .Environment}}[{{.Bucket}}]))`,
	DependencyFaults: `100 * sum by (client, {{.Labels.RemoteService}}) (increase(traces_service_graph_request_failed_total{{selector "client" .Service .Labels.Environment .Environment}}[{{.Bucket}}]))` +
		` / sum by (client, {{.Labels.RemoteService}}) (increase(traces_service_graph_request_total{{selector "client" .Service .Labels.Environment .Environment}}[{{.Bucket}}]))`,
	Latency:    `histogram_quantile(0.95, sum by ({{.Labels.Service}}, le) (rate(traces_spanmetrics_duration_seconds_bucket{{selector .Labels.Environment .Environment}}[{{.Step}}])))`,
	Throughput: `sum by ({{.Labels.Service}}) (rate(traces_spanmetrics_calls_total{{selector .Labels.Environment .Environment}}[{{.Step}}]))`,
	FailureRatio: `sum by ({{.Labels.Service}}) (rate(traces_spanmetrics_calls_total{{selector .Labels.Environment .Environment "status_code" "STATUS_CODE_ERROR"}}[{{.Step}}]))` +
		` / sum by ({{.Labels.Service}}) (rate(traces_spanmetrics_calls_total{{selector .Labels.Environment .Environment}}[{{.Step}}]))`,
}

// Defaults returns a copy of the built-in template sources.
func Defaults() map[string]string {
	out := make(map[string]string, len(defaultSources))
	for k, v := range defaultSources {
		out[k] = v
	}
	return out
}

var funcs = template.FuncMap{
	"selector": Selector,
	"label":    EscapeLabelValue,
}

// Set is a parsed group of named query templates.
type Set struct {
	templates map[string]*template.Template
}

// New parses sources on top of the defaults; an entry in sources replaces
// the default of the same name.
func New(sources map[string]string) (*Set, error) {
	merged := Defaults()
	for name, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		merged[name] = src
	}

	set := &Set{templates: make(map[string]*template.Template, len(merged))}
	for name, src := range merged {
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse query template %q: %w", name, err)
		}
		set.templates[name] = tmpl
	}
	return set, nil
}

// MustDefaults panics if the built-in templates fail to parse.
func MustDefaults() *Set {
	set, err := New(nil)
	if err != nil {
		panic(err)
	}
	return set
}

// Names lists the templates in the set.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.templates))
	for name := range s.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Render executes the named template. Bucket and Step must be valid
// duration tokens when set; empty label names fall back to DefaultLabels.
func (s *Set) Render(name string, data Data) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown query template %q", name)
	}
	for _, tok := range []string{data.Bucket, data.Step} {
		if tok == "" {
			continue
		}
		if err := ValidateDuration(tok); err != nil {
			return "", err
		}
	}
	data.Labels = withDefaults(data.Labels)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render query template %q: %w", name, err)
	}
	return buf.String(), nil
}

func withDefaults(l Labels) Labels {
	if l.Service == "" {
		l.Service = DefaultLabels.Service
	}
	if l.Environment == "" {
		l.Environment = DefaultLabels.Environment
	}
	if l.RemoteService == "" {
		l.RemoteService = DefaultLabels.RemoteService
	}
	return l
}

var durationToken = regexp.MustCompile(`^([0-9]+(ms|[smhdwy]))+$`)

// ValidateDuration accepts PromQL duration tokens like "90s", "1h30m", "7d".
func ValidateDuration(token string) error {
	if !durationToken.MatchString(token) {
		return fmt.Errorf("invalid duration token %q", token)
	}
	return nil
}

var labelName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Selector builds a label matcher block from name/value pairs, skipping
// pairs with an empty value. No pairs yields an empty string.
func Selector(pairs ...string) (string, error) {
	if len(pairs)%2 != 0 {
		return "", fmt.Errorf("selector needs name/value pairs, got %d arguments", len(pairs))
	}
	var parts []string
	for i := 0; i < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		if value == "" {
			continue
		}
		if !labelName.MatchString(name) {
			return "", fmt.Errorf("invalid label name %q", name)
		}
		parts = append(parts, name+`="`+EscapeLabelValue(value)+`"`)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// EscapeLabelValue escapes a string for use inside a double-quoted label
// matcher.
func EscapeLabelValue(v string) string {
	return labelEscaper.Replace(v)
}
