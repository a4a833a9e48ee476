package state

import (
	"fmt"
	"sort"
	"strings"
)

// Topology renders the server registry as an indented tree, depth first,
// children sorted by name. The root is the server with no Via (our direct
// uplink). Logged at end of burst so operators can see what we synced to.
func (n *Network) Topology() []string {
	if len(n.servers) == 0 {
		return nil
	}

	var root *Server
	for _, s := range n.servers {
		if s.Via == "" {
			root = s
			break
		}
	}
	if root == nil {
		return []string{"error: no root server found"}
	}

	var ordered []*Server
	ordered = append(ordered, root)
	n.appendChildren(root, &ordered)

	lines := make([]string, 0, len(ordered))
	for _, s := range ordered {
		lines = append(lines, formatTopologyLine(s))
	}
	return lines
}

func (n *Network) appendChildren(parent *Server, out *[]*Server) {
	var children []*Server
	for _, s := range n.servers {
		if s.Via == parent.ID {
			children = append(children, s)
		}
	}

	sort.Slice(children, func(i, j int) bool {
		return children[i].Name < children[j].Name
	})

	for _, child := range children {
		*out = append(*out, child)
		n.appendChildren(child, out)
	}
}

func formatTopologyLine(s *Server) string {
	if s.Hops <= 1 {
		return fmt.Sprintf("%s [%s] (%d users) %s", s.Name, s.ID, len(s.users), s.Description)
	}

	indent := strings.Repeat("    ", s.Hops-1)
	return fmt.Sprintf("%s|_ %s [%s] (%d users) %s",
		indent, s.Name, s.ID, len(s.users), s.Description)
}
