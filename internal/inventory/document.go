package inventory

import (
	"bytes"
	"encoding/json"
)

const strictHostKeyChecking = "-o StrictHostKeyChecking=no"

type hostVars struct {
	AnsibleHost string `json:"ansible_host"`
}

type globalVars struct {
	User      string `json:"ansible_user"`
	KeyFile   string `json:"ansible_ssh_private_key_file"`
	ExtraArgs string `json:"ansible_ssh_extra_args"`
}

type parentGroup struct {
	Children json.RawMessage `json:"children"`
}

type hostGroup struct {
	Hosts orderedHosts `json:"hosts"`
}

type groups struct {
	K8sNodes parentGroup `json:"k8snodes"`
	MNodes   parentGroup `json:"mnodes"`
	Admin    hostGroup   `json:"admin"`
	Managed  hostGroup   `json:"managed"`
	Workers  hostGroup   `json:"wknodes"`
}

type allGroup struct {
	Vars     globalVars          `json:"vars"`
	Hosts    map[string]hostVars `json:"hosts"`
	Children groups              `json:"children"`
}

// MarshalJSON renders the document in the ansible JSON inventory layout.
// Host groups are written in provisioner order.
func (d *Document) MarshalJSON() ([]byte, error) {
	k8snodes, err := emptyGroups("mnodes", "wknodes")
	if err != nil {
		return nil, err
	}
	mnodes, err := emptyGroups("admin", "managed")
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]allGroup{
		"all": {
			Vars: globalVars{
				User:      d.Vars.User,
				KeyFile:   d.Vars.KeyPath,
				ExtraArgs: strictHostKeyChecking,
			},
			Hosts: map[string]hostVars{"control": {AnsibleHost: "localhost"}},
			Children: groups{
				K8sNodes: parentGroup{Children: k8snodes},
				MNodes:   parentGroup{Children: mnodes},
				Admin:    hostGroup{Hosts: orderedHosts{d.Admin}},
				Managed:  hostGroup{Hosts: d.Managed},
				Workers:  hostGroup{Hosts: d.Workers},
			},
		},
	})
}

// Encode returns the indented document ready to be written to disk.
func (d *Document) Encode() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func emptyGroups(names ...string) (json.RawMessage, error) {
	groups := make(map[string]struct{}, len(names))
	for _, n := range names {
		groups[n] = struct{}{}
	}
	return json.Marshal(groups)
}

// orderedHosts marshals as a JSON object whose keys keep slice order.
type orderedHosts []Host

func (h orderedHosts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, host := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(host.Name)
		if err != nil {
			return nil, err
		}
		addr, err := json.Marshal(host.Address)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteString(`:{"ansible_host":`)
		buf.Write(addr)
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
