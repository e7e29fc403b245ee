// Package inventory turns terraform output into the ansible inventory that the
// service node consumes.
package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kapctl/kap/internal/config"
)

// Terraform output keys holding the node address maps.
const (
	MastersOutput = "kmasters_info"
	WorkersOutput = "kworkers_info"
)

// ErrMalformedOutput is returned when the provisioner output lacks the node
// maps or has no master to act as admin.
var ErrMalformedOutput = errors.New("malformed provisioner output")

// Host is one inventory entry, addressed by its public name.
type Host struct {
	Name    string
	Address string
}

// Vars are the global connection settings of the inventory.
type Vars struct {
	User    string
	KeyPath string
}

// Document is the role-grouped inventory. Admin is always the first master
// in provisioner order.
type Document struct {
	Vars    Vars
	Admin   Host
	Managed []Host
	Workers []Host
}

// Hosts returns every node host, admin first.
func (d *Document) Hosts() []Host {
	hosts := make([]Host, 0, 1+len(d.Managed)+len(d.Workers))
	hosts = append(hosts, d.Admin)
	hosts = append(hosts, d.Managed...)
	return append(hosts, d.Workers...)
}

// Build reads `terraform output -json` and groups its hosts.
func Build(output []byte, vars Vars) (*Document, error) {
	outputs, err := parseOutputs(output)
	if err != nil {
		return nil, err
	}

	masters, err := nodeMap(outputs, MastersOutput)
	if err != nil {
		return nil, err
	}
	workers, err := nodeMap(outputs, WorkersOutput)
	if err != nil {
		return nil, err
	}
	if len(masters) == 0 {
		return nil, fmt.Errorf("%w: %s is empty, no admin host", ErrMalformedOutput, MastersOutput)
	}

	return &Document{
		Vars:    vars,
		Admin:   masters[0],
		Managed: masters[1:],
		Workers: workers,
	}, nil
}

// ReadShape returns the deployed master/worker counts recorded in the
// provisioner output, or nil when no cluster exists yet.
func ReadShape(output []byte) (*config.DeployedShape, error) {
	if len(bytes.TrimSpace(output)) == 0 {
		return nil, nil
	}
	outputs, err := parseOutputs(output)
	if err != nil {
		return nil, err
	}
	if _, ok := outputs[MastersOutput]; !ok {
		return nil, nil
	}

	masters, err := nodeMap(outputs, MastersOutput)
	if err != nil {
		return nil, err
	}
	if len(masters) == 0 {
		return nil, nil
	}

	var workers []Host
	if _, ok := outputs[WorkersOutput]; ok {
		if workers, err = nodeMap(outputs, WorkersOutput); err != nil {
			return nil, err
		}
	}
	return &config.DeployedShape{Masters: len(masters), Workers: len(workers)}, nil
}

type outputValue struct {
	Value json.RawMessage `json:"value"`
}

func parseOutputs(output []byte) (map[string]outputValue, error) {
	var outputs map[string]outputValue
	if err := json.Unmarshal(output, &outputs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return outputs, nil
}

// nodeMap decodes one output map keeping the provisioner's key order, which
// a Go map would lose.
func nodeMap(outputs map[string]outputValue, key string) ([]Host, error) {
	out, ok := outputs[key]
	if !ok || len(out.Value) == 0 || string(out.Value) == "null" {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedOutput, key)
	}

	dec := json.NewDecoder(bytes.NewReader(out.Value))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedOutput, key)
	}

	var hosts []Host
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedOutput, key, err)
		}
		name, _ := tok.(string)

		var address string
		if err := dec.Decode(&address); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedOutput, key, name, err)
		}
		hosts = append(hosts, Host{Name: name, Address: address})
	}
	return hosts, nil
}
