// Package fhir shapes external FHIR CodeSystem documents into the internal
// source/concept model consumed by the write pipeline. It deliberately covers
// only the fields the pipeline persists.
package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conceptlab.org/internal/terminology"
)

// NA is the placeholder stored when a concept property carries no value.
const NA = "N/A"

const (
	textTypeName        = "ConceptName"
	textTypeDescription = "ConceptDescription"
	defaultLocale       = "en"
)

// Coding is a minimal FHIR coding.
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// Designation is an additional representation of a concept.
type Designation struct {
	Language string  `json:"language"`
	Use      *Coding `json:"use"`
	Value    string  `json:"value"`
}

// Property is a concept property; only string and boolean values are read.
type Property struct {
	Code         string `json:"code"`
	ValueString  string `json:"valueString"`
	ValueBoolean *bool  `json:"valueBoolean"`
	ValueCode    string `json:"valueCode"`
}

// ConceptDef is one concept entry of a CodeSystem document.
type ConceptDef struct {
	Code        string        `json:"code"`
	Display     string        `json:"display"`
	Definition  string        `json:"definition"`
	Designation []Designation `json:"designation"`
	Property    []Property    `json:"property"`
}

// CodeSystem is the subset of a FHIR CodeSystem document this core persists.
type CodeSystem struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Version      string          `json:"version"`
	Name         string          `json:"name"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	Language     string          `json:"language"`
	Content      string          `json:"content"`
	Identifier   json.RawMessage `json:"identifier"`
	Contact      json.RawMessage `json:"contact"`
	Jurisdiction json.RawMessage `json:"jurisdiction"`
	Concept      []ConceptDef    `json:"concept"`
}

// Parse decodes a CodeSystem document and rejects other resource types.
func Parse(data []byte) (*CodeSystem, error) {
	var cs CodeSystem
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("decode code system: %w", err)
	}
	if cs.ResourceType != terminology.ResourceCodeSystem {
		return nil, fmt.Errorf("unexpected resource type %q", cs.ResourceType)
	}
	if cs.ID == "" && cs.URL == "" {
		return nil, errors.New("code system has neither id nor url")
	}
	return &cs, nil
}

// StringProperty returns the named string property, or NA when absent/blank.
func (c ConceptDef) StringProperty(code string) string {
	for _, p := range c.Property {
		if p.Code != code {
			continue
		}
		if p.ValueString != "" {
			return p.ValueString
		}
		if p.ValueCode != "" {
			return p.ValueCode
		}
	}
	return NA
}

// BoolProperty returns the named boolean property, defaulting to false.
func (c ConceptDef) BoolProperty(code string) bool {
	for _, p := range c.Property {
		if p.Code == code && p.ValueBoolean != nil {
			return *p.ValueBoolean
		}
	}
	return false
}

// ToSource maps the document header onto a source row. Timestamps are stamped
// here once; concept rows inherit them at insert time.
func (cs *CodeSystem) ToSource() *terminology.Source {
	now := time.Now().UTC()
	locale := cs.Language
	if locale == "" {
		locale = defaultLocale
	}
	return &terminology.Source{
		Mnemonic:        cs.ID,
		Version:         cs.Version,
		CanonicalURL:    cs.URL,
		Name:            cs.Name,
		FullName:        cs.Title,
		DefaultLocale:   locale,
		PublicAccess:    "View",
		IsActive:        cs.Status == "active",
		Retired:         cs.Status == "retired",
		IsLatestVersion: true,
		Identifier:      rawString(cs.Identifier),
		Contact:         rawString(cs.Contact),
		Jurisdiction:    rawString(cs.Jurisdiction),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// BuildConcepts maps the document's concept entries onto the internal graph:
// display and designations become name texts, the definition becomes a
// description text.
func (cs *CodeSystem) BuildConcepts() []*terminology.Concept {
	locale := cs.Language
	if locale == "" {
		locale = defaultLocale
	}
	now := time.Now().UTC()

	concepts := make([]*terminology.Concept, 0, len(cs.Concept))
	for _, def := range cs.Concept {
		c := &terminology.Concept{
			Mnemonic:        def.Code,
			Name:            def.Display,
			FullName:        def.Display,
			DefaultLocale:   locale,
			ConceptClass:    def.StringProperty("conceptclass"),
			Datatype:        def.StringProperty("datatype"),
			Comment:         def.StringProperty("comment"),
			PublicAccess:    "View",
			IsActive:        !def.BoolProperty("inactive"),
			IsLatestVersion: true,
		}
		if def.Display != "" {
			c.Names = append(c.Names, &terminology.LocalizedText{
				Name:            def.Display,
				Type:            textTypeName,
				Locale:          locale,
				LocalePreferred: true,
				CreatedAt:       now,
			})
		}
		for _, d := range def.Designation {
			if d.Value == "" {
				continue
			}
			text := &terminology.LocalizedText{
				Name:      d.Value,
				Type:      textTypeName,
				Locale:    d.Language,
				CreatedAt: now,
			}
			if text.Locale == "" {
				text.Locale = locale
			}
			if d.Use != nil && d.Use.Code != "" {
				text.Type = d.Use.Code
			}
			c.Names = append(c.Names, text)
		}
		if def.Definition != "" {
			c.Descriptions = append(c.Descriptions, &terminology.LocalizedText{
				Name:      def.Definition,
				Type:      textTypeDescription,
				Locale:    locale,
				CreatedAt: now,
			})
		}
		concepts = append(concepts, c)
	}
	return concepts
}

func rawString(m json.RawMessage) string {
	if len(m) == 0 {
		return ""
	}
	return string(m)
}
