package ptree

import (
	"bufio"
	"fmt"
	"io"
)

// WriteTree writes the tree topology with branch lengths in the named
// text format. The only (and default, on an empty name) format is
// "newick"; an unknown format is reported as an error, the stream is
// left untouched.
func (t *Tree) WriteTree(w io.Writer, format string) error {
	if format == "" {
		format = "newick"
	}
	if format != "newick" {
		return fmt.Errorf("unknown tree output format '%s'", format)
	}
	bw := bufio.NewWriter(w)
	var write func(node *Node)
	write = func(node *Node) {
		children := node.Children()
		if len(children) > 0 {
			bw.WriteByte('(')
			for i, c := range children {
				if i > 0 {
					bw.WriteByte(',')
				}
				write(c)
			}
			bw.WriteByte(')')
		}
		bw.WriteString(node.Name)
		if node.Parent != nil {
			fmt.Fprintf(bw, ":%g", t.GetBranchLength(node, node.Parent))
		}
	}
	write(t.root)
	bw.WriteString(";\n")
	return bw.Flush()
}
