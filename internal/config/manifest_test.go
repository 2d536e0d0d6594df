package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stratusctl/stratus/pkg/types"
)

const fullManifest = `
group:
  name: web-sg
  description: web tier
  vpc_id: vpc-0abc
ingress:
  - proto: tcp
    from_port: 80
    to_port: 80
    cidr: 0.0.0.0/0
  - proto: tcp
    from_port: 22
    to_port: 22
    group_name: bastion-sg
egress: []
`

// --- Parsing ---

func TestParseManifest_Full(t *testing.T) {
	m, err := ParseManifest([]byte(fullManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	if m.Group.Name != "web-sg" || m.Group.Description != "web tier" || m.Group.VPCID != "vpc-0abc" {
		t.Errorf("unexpected group: %+v", m.Group)
	}

	ingress, declared := m.IngressRules()
	if !declared {
		t.Fatal("expected ingress to be declared")
	}
	if len(ingress) != 2 {
		t.Fatalf("expected 2 ingress rules, got %d", len(ingress))
	}
	if ingress[0].Protocol != "tcp" || *ingress[0].FromPort != 80 {
		t.Errorf("unexpected first rule: %+v", ingress[0])
	}
	if peer, ok := ingress[1].Peer.(types.PeerGroupName); !ok || string(peer) != "bastion-sg" {
		t.Errorf("expected group-name peer bastion-sg, got %v", ingress[1].Peer)
	}
	for _, r := range ingress {
		if r.Direction != types.DirectionIngress {
			t.Errorf("rule carries wrong direction: %+v", r)
		}
	}
}

func TestParseManifest_EmptyListIsDeclared(t *testing.T) {
	m, err := ParseManifest([]byte(fullManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	egress, declared := m.EgressRules()
	if !declared {
		t.Error("expected explicit empty egress to count as declared")
	}
	if len(egress) != 0 {
		t.Errorf("expected no egress rules, got %d", len(egress))
	}
}

func TestParseManifest_OmittedDirectionIsUndeclared(t *testing.T) {
	m, err := ParseManifest([]byte("group:\n  name: web-sg\ningress: []\n"))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	if _, declared := m.EgressRules(); declared {
		t.Error("expected omitted egress to be undeclared")
	}
	if _, declared := m.IngressRules(); !declared {
		t.Error("expected present ingress to be declared")
	}
}

func TestParseManifest_AllProtocolOmitsPorts(t *testing.T) {
	doc := `
group:
  name: web-sg
ingress:
  - proto: all
    cidr: 10.0.0.0/8
`
	m, err := ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}

	ingress, _ := m.IngressRules()
	if len(ingress) != 1 || ingress[0].FromPort != nil {
		t.Errorf("expected one portless rule, got %+v", ingress)
	}
}

func TestParseManifest_EmptyDocument(t *testing.T) {
	if _, err := ParseManifest(nil); err == nil {
		t.Fatal("expected error for empty document")
	}
}

// --- Validation ---

func TestParseManifest_MissingGroupName(t *testing.T) {
	_, err := ParseManifest([]byte("group:\n  description: no name\n"))
	if err == nil || !strings.Contains(err.Error(), "group.name") {
		t.Fatalf("expected group.name error, got %v", err)
	}
}

func TestParseManifest_ErrorNamesRuleIndex(t *testing.T) {
	doc := `
group:
  name: web-sg
ingress:
  - proto: tcp
    from_port: 80
    to_port: 80
    cidr: 0.0.0.0/0
  - proto: tcp
    from_port: 22
    to_port: 22
`
	_, err := ParseManifest([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "ingress rule 1") {
		t.Fatalf("expected error naming ingress rule 1, got %v", err)
	}

	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected a validation error in the chain, got %v", err)
	}
}

func TestParseManifest_MutuallyExclusivePeers(t *testing.T) {
	doc := `
group:
  name: web-sg
ingress:
  - proto: tcp
    from_port: 443
    to_port: 443
    cidr: 0.0.0.0/0
    group_id: sg-200
`
	_, err := ParseManifest([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual-exclusion error, got %v", err)
	}
}

func TestParseManifest_BadCIDR(t *testing.T) {
	doc := `
group:
  name: web-sg
egress:
  - proto: tcp
    from_port: 443
    to_port: 443
    cidr: not-a-cidr
`
	_, err := ParseManifest([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "egress rule 0") {
		t.Fatalf("expected error naming egress rule 0, got %v", err)
	}
}

func TestParseManifest_InvertedPortRange(t *testing.T) {
	doc := `
group:
  name: web-sg
ingress:
  - proto: tcp
    from_port: 443
    to_port: 80
    cidr: 0.0.0.0/0
`
	if _, err := ParseManifest([]byte(doc)); err == nil {
		t.Fatal("expected error for from_port greater than to_port")
	}
}

func TestParseManifest_UnknownKeyRejected(t *testing.T) {
	doc := `
group:
  name: web-sg
ingress:
  - proto: tcp
    from_prt: 80
    to_port: 80
    cidr: 0.0.0.0/0
`
	if _, err := ParseManifest([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

// --- Files ---

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web-sg.yaml")
	if err := os.WriteFile(path, []byte(fullManifest), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Group.Name != "web-sg" {
		t.Errorf("expected group web-sg, got %q", m.Group.Name)
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
