package validation

import (
	"fmt"
	"math"
)

type rule struct {
	field    string
	required bool
	check    func(value interface{}) error
}

type schema []rule

func (s schema) rule(field string) (rule, bool) {
	for _, r := range s {
		if r.field == field {
			return r, true
		}
	}
	return rule{}, false
}

func (v *Validator) buildSchemas() map[string]schema {
	b := v.bounds
	nameTag := fmt.Sprintf("required,min=%d,max=%d,resourcename", b.MinNameLength, b.MaxNameLength)
	configTag := fmt.Sprintf("required,min=%d,max=%d", b.MinConfigLength, b.MaxConfigLength)

	name := rule{field: "name", required: true, check: v.stringRule("name", nameTag)}
	id := rule{field: "id", required: true, check: v.stringRule("id", "required,max=64,alphanum")}
	deleteSchema := schema{id}

	return map[string]schema{
		ActionNetworkAdd: {name},
		ActionNetworkEdit: {
			id,
			{field: "proxies", check: v.nameListRule("proxies", nameTag)},
			{field: "services", check: v.nameListRule("services", nameTag)},
		},
		ActionNetworkDelete: deleteSchema,
		ActionProxyAdd: {
			name,
			{field: "configuration", required: true, check: v.stringRule("configuration", configTag)},
			{field: "port_mappings", check: portMappingsRule},
		},
		ActionProxyDelete: deleteSchema,
		ActionServiceAdd: {
			name,
			{field: "service_type", required: true, check: v.stringRule("service_type", "required,max=64,resourcename")},
			{field: "configuration", check: v.stringRule("configuration", configTag)},
		},
		ActionServiceDelete: deleteSchema,
	}
}

func (v *Validator) stringRule(field, tag string) func(interface{}) error {
	return func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: field, Message: "must be a string", Bound: "type"}
		}
		return v.checkVar(field, s, tag)
	}
}

func (v *Validator) nameListRule(field, itemTag string) func(interface{}) error {
	return func(value interface{}) error {
		items, err := stringList(field, value)
		if err != nil {
			return err
		}
		for i, item := range items {
			if err := v.checkVar(fmt.Sprintf("%s[%d]", field, i), item, itemTag); err != nil {
				return err
			}
		}
		return nil
	}
}

func portMappingsRule(value interface{}) error {
	_, err := PortMappings(value)
	return err
}

// PortMappings checks a port_mappings value and converts it. A value that is
// already a []PortMapping was checked when it was built and passes through.
func PortMappings(value interface{}) ([]PortMapping, error) {
	if typed, ok := value.([]PortMapping); ok {
		return typed, nil
	}

	const field = "port_mappings"
	list, ok := value.([]interface{})
	if !ok {
		return nil, &ValidationError{Field: field, Message: "must be a list", Bound: "type"}
	}
	if err := checkVar(portValidator, field, list, fmt.Sprintf("max=%d", maxPortMappings)); err != nil {
		return nil, err
	}

	out := make([]PortMapping, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "must be an object", Bound: "type"}
		}
		if len(entry) != 2 {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "must contain exactly mapping_from and mapping_to",
				Bound:   "unknown",
			}
		}
		var ports [2]int
		for j, key := range []string{"mapping_from", "mapping_to"} {
			name := fmt.Sprintf("%s[%d].%s", field, i, key)
			port, ok := entry[key].(float64)
			if !ok || port != math.Trunc(port) {
				return nil, &ValidationError{Field: name, Message: "must be an integer port", Bound: "type"}
			}
			if err := checkVar(portValidator, name, int(port), "gte=1,lte=65535"); err != nil {
				return nil, err
			}
			ports[j] = int(port)
		}
		out = append(out, PortMapping{From: ports[0], To: ports[1]})
	}
	return out, nil
}

func stringList(field string, value interface{}) ([]string, error) {
	list, ok := value.([]interface{})
	if !ok {
		return nil, &ValidationError{Field: field, Message: "must be a list of names", Bound: "type"}
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "must be a string", Bound: "type"}
		}
		out = append(out, s)
	}
	return out, nil
}
