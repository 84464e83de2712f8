package tools

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// ObjectDescription is the reduced describe of one object type. Attributes
// absent from the raw describe are rendered as null.
type ObjectDescription struct {
	Name        any                `json:"name"`
	Label       any                `json:"label"`
	LabelPlural any                `json:"labelPlural"`
	KeyPrefix   any                `json:"keyPrefix"`
	Createable  any                `json:"createable"`
	Updateable  any                `json:"updateable"`
	Deletable   any                `json:"deletable"`
	Queryable   any                `json:"queryable"`
	Searchable  any                `json:"searchable"`
	Fields      []FieldDescription `json:"fields"`
}

// FieldDescription keeps eight attributes of a field. Required is true only
// when the field is explicitly not nillable.
type FieldDescription struct {
	Name           any  `json:"name"`
	Label          any  `json:"label"`
	Type           any  `json:"type"`
	Required       bool `json:"required"`
	Createable     any  `json:"createable"`
	Updateable     any  `json:"updateable"`
	Length         any  `json:"length"`
	PicklistValues any  `json:"picklistValues"`
}

// ObjectSummary is one entry of the org's object catalog.
type ObjectSummary struct {
	Name        any `json:"name"`
	Label       any `json:"label"`
	LabelPlural any `json:"labelPlural"`
	KeyPrefix   any `json:"keyPrefix"`
	Createable  any `json:"createable"`
	Updateable  any `json:"updateable"`
	Deletable   any `json:"deletable"`
	Queryable   any `json:"queryable"`
	Searchable  any `json:"searchable"`
	Custom      any `json:"custom"`
}

var errInvalidMetadata = errors.New("salesforce returned metadata that is not valid JSON")

// ProjectDescribe reduces a raw sObject describe to an ObjectDescription.
func ProjectDescribe(raw json.RawMessage) (*ObjectDescription, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errInvalidMetadata
	}
	doc := gjson.ParseBytes(raw)
	out := &ObjectDescription{
		Name:        doc.Get("name").Value(),
		Label:       doc.Get("label").Value(),
		LabelPlural: doc.Get("labelPlural").Value(),
		KeyPrefix:   doc.Get("keyPrefix").Value(),
		Createable:  doc.Get("createable").Value(),
		Updateable:  doc.Get("updateable").Value(),
		Deletable:   doc.Get("deletable").Value(),
		Queryable:   doc.Get("queryable").Value(),
		Searchable:  doc.Get("searchable").Value(),
		Fields:      []FieldDescription{},
	}
	doc.Get("fields").ForEach(func(_, f gjson.Result) bool {
		nillable := f.Get("nillable")
		picklist := f.Get("picklistValues")
		fd := FieldDescription{
			Name:           f.Get("name").Value(),
			Label:          f.Get("label").Value(),
			Type:           f.Get("type").Value(),
			Required:       nillable.Exists() && nillable.Type == gjson.False,
			Createable:     f.Get("createable").Value(),
			Updateable:     f.Get("updateable").Value(),
			Length:         f.Get("length").Value(),
			PicklistValues: picklist.Value(),
		}
		if !picklist.Exists() {
			fd.PicklistValues = []any{}
		}
		out.Fields = append(out.Fields, fd)
		return true
	})
	return out, nil
}

// ProjectGlobal reduces a raw global describe to the list of object
// summaries under "objects".
func ProjectGlobal(raw json.RawMessage) (map[string][]ObjectSummary, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errInvalidMetadata
	}
	objects := []ObjectSummary{}
	gjson.GetBytes(raw, "sobjects").ForEach(func(_, o gjson.Result) bool {
		s := ObjectSummary{
			Name:        o.Get("name").Value(),
			Label:       o.Get("label").Value(),
			LabelPlural: o.Get("labelPlural").Value(),
			KeyPrefix:   o.Get("keyPrefix").Value(),
			Createable:  o.Get("createable").Value(),
			Updateable:  o.Get("updateable").Value(),
			Deletable:   o.Get("deletable").Value(),
			Queryable:   o.Get("queryable").Value(),
			Searchable:  o.Get("searchable").Value(),
			Custom:      o.Get("custom").Value(),
		}
		if !o.Get("custom").Exists() {
			s.Custom = false
		}
		objects = append(objects, s)
		return true
	})
	return map[string][]ObjectSummary{"objects": objects}, nil
}
