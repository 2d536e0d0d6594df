package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stratusctl/stratus/pkg/types"
)

// GroupSpec identifies the security group a manifest manages. Description
// and VPCID are only consulted when the group has to be created.
type GroupSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	VPCID       string `yaml:"vpc_id,omitempty"`
}

// RuleSpec is one rule as written in a manifest. Ports are pointers so the
// all protocol can omit them; exactly one of cidr, group_id and group_name
// names the peer.
type RuleSpec struct {
	Proto     string `yaml:"proto"`
	FromPort  *int32 `yaml:"from_port,omitempty"`
	ToPort    *int32 `yaml:"to_port,omitempty"`
	CIDR      string `yaml:"cidr,omitempty"`
	GroupID   string `yaml:"group_id,omitempty"`
	GroupName string `yaml:"group_name,omitempty"`
}

// Manifest declares the desired rule set for one security group. A
// direction whose key is absent from the document is left untouched; an
// explicit empty list revokes every grant in that direction.
type Manifest struct {
	Group   GroupSpec  `yaml:"group"`
	Ingress []RuleSpec `yaml:"ingress"`
	Egress  []RuleSpec `yaml:"egress"`

	ingress []types.Rule
	egress  []types.Rule
}

// ParseManifest decodes and validates a manifest document. Unknown keys are
// rejected so a typoed field name fails loudly instead of silently opening
// the group wider than intended.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadManifest reads and parses a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks the manifest and converts its rules to typed form.
// Errors name the direction and index of the offending rule.
func (m *Manifest) Validate() error {
	if m.Group.Name == "" {
		return fmt.Errorf("group.name is required")
	}

	var err error
	m.ingress, err = convertRules(m.Ingress, types.DirectionIngress)
	if err != nil {
		return err
	}
	m.egress, err = convertRules(m.Egress, types.DirectionEgress)
	if err != nil {
		return err
	}

	return nil
}

// IngressRules returns the manifest's ingress rules in typed form. The
// second return reports whether the section was declared at all.
func (m *Manifest) IngressRules() ([]types.Rule, bool) {
	return m.ingress, m.Ingress != nil
}

// EgressRules returns the manifest's egress rules in typed form. The second
// return reports whether the section was declared at all.
func (m *Manifest) EgressRules() ([]types.Rule, bool) {
	return m.egress, m.Egress != nil
}

func convertRules(specs []RuleSpec, dir types.Direction) ([]types.Rule, error) {
	rules := make([]types.Rule, 0, len(specs))
	for i, spec := range specs {
		rule, err := spec.toRule(dir)
		if err != nil {
			return nil, fmt.Errorf("%s rule %d: %w", dir, i, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("%s rule %d: %w", dir, i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s RuleSpec) toRule(dir types.Direction) (types.Rule, error) {
	peer, err := types.NewPeerSpec(s.CIDR, s.GroupID, s.GroupName)
	if err != nil {
		return types.Rule{}, err
	}
	return types.Rule{
		Direction: dir,
		Protocol:  s.Proto,
		FromPort:  s.FromPort,
		ToPort:    s.ToPort,
		Peer:      peer,
	}, nil
}
