package main

import (
	"slices"

	"github.com/AntonStoeckl/sked-go/sked"
)

type eventView struct {
	ID             string      `json:"id,omitempty"`
	Date           string      `json:"date"`
	Virtual        bool        `json:"virtual"`
	Tags           []string    `json:"tags,omitempty"`
	Fields         sked.Fields `json:"fields,omitempty"`
	SourceTemplate string      `json:"source_template,omitempty"`
	AmendedFrom    string      `json:"amended_from,omitempty"`
}

func newEventView(ev sked.ConcreteEvent) eventView {
	view := eventView{
		Date:           ev.Occurred.String(),
		Virtual:        ev.IsVirtual(),
		Tags:           sortedKeys(ev.Tags),
		Fields:         ev.Fields,
		SourceTemplate: optionalString(ev.SourceTemplate),
		AmendedFrom:    optionalString(ev.AmendedFrom),
	}

	if !ev.IsVirtual() {
		view.ID = ev.ID.String()
	}

	return view
}

type templateView struct {
	ID      string      `json:"id"`
	Rule    string      `json:"rule"`
	Range   string      `json:"range"`
	Tags    []string    `json:"tags,omitempty"`
	Factory sked.Fields `json:"factory,omitempty"`
}

func newTemplateView(tpl sked.RecurringEventTemplate) templateView {
	return templateView{
		ID:      tpl.ID.String(),
		Rule:    tpl.Rule,
		Range:   tpl.Range.String(),
		Tags:    sortedKeys(tpl.Tags),
		Factory: tpl.Factory,
	}
}

type aggregateView struct {
	Operation string  `json:"operation"`
	Window    string  `json:"window"`
	Value     float64 `json:"value"`
}

type byTagView struct {
	Operation string             `json:"operation"`
	Window    string             `json:"window"`
	Values    map[string]float64 `json:"values"`
}

type accrualView struct {
	Date   string             `json:"date"`
	Values map[string]float64 `json:"values"`
	Saved  bool               `json:"saved"`
}

func sortedKeys(tags sked.Tags) []string {
	if len(tags) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
