package compiler

import (
	"fmt"

	"github.com/freshet/freshet"
	"gopkg.in/yaml.v3"
)

// ParseQuery parses a YAML query document into its operator chain.
//
//	operators:
//	  - name: group-by
//	    options:
//	      facet: host
//	      expiration: 30s
//	    operators:
//	      - name: lookup
//	        options: {"0": latency}
//	      - sum
func ParseQuery(src []byte) ([]*Descriptor, error) {
	var doc struct {
		Operators []yamlOp `yaml:"operators"`
	}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}
	if len(doc.Operators) == 0 {
		return nil, freshet.Invalidf("", "query has no operators")
	}
	return convertOps(doc.Operators)
}

type yamlOp struct {
	Name      string         `yaml:"name"`
	Options   map[string]any `yaml:"options"`
	Operators []yamlOp       `yaml:"operators"`
	Pattern   string         `yaml:"pattern"`
}

// UnmarshalYAML lets a bare operator name stand in for a full node.
func (o *yamlOp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Name = node.Value
		return nil
	}
	type plain yamlOp
	return node.Decode((*plain)(o))
}

func convertOps(ops []yamlOp) ([]*Descriptor, error) {
	out := make([]*Descriptor, 0, len(ops))
	for _, op := range ops {
		d, err := convertOp(op)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func convertOp(op yamlOp) (*Descriptor, error) {
	if op.Name == "" && op.Pattern == "" && len(op.Operators) == 0 {
		return nil, freshet.Invalidf("", "operator is missing a name")
	}
	d := &Descriptor{Name: op.Name, Pattern: op.Pattern}
	if len(op.Operators) > 0 {
		nested, err := convertOps(op.Operators)
		if err != nil {
			return nil, err
		}
		d.Operators = nested
	}
	if len(op.Options) > 0 {
		d.Options = make(map[string]any, len(op.Options))
		for key, v := range op.Options {
			converted, err := convertOption(op.Name, v)
			if err != nil {
				return nil, err
			}
			d.Options[key] = converted
		}
	}
	return d, nil
}

// convertOption rewrites option values that are themselves operator
// pipelines (mappings with an operators entry) into Descriptors so that
// combinators and the group-by aggregator receive structured branches.
func convertOption(op string, v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if _, ok := v["operators"]; ok {
			return convertNested(op, v)
		}
		out := make(map[string]any, len(v))
		for key, sub := range v {
			converted, err := convertOption(op, sub)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			converted, err := convertOption(op, elem)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
	return v, nil
}

func convertNested(op string, m map[string]any) (*Descriptor, error) {
	var node yamlOp
	b, err := yaml.Marshal(m)
	if err != nil {
		return nil, freshet.Invalidf(op, "bad nested pipeline: %v", err)
	}
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, freshet.Invalidf(op, "bad nested pipeline: %v", err)
	}
	return convertOp(node)
}
