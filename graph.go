package dll

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

// ToDot renders the network architecture as a graphviz document.
func (d *DBN) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("DBN"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	attrs := map[string]string{
		"fontname": "Monaco",
		"shape":    "box",
		"label":    fmt.Sprintf("\"input (%d)\"", d.layers[0].InputSize()),
	}
	g.AddNode("DBN", "input", attrs)

	prev := "input"
	for i, layer := range d.layers {
		id := fmt.Sprintf("layer_%d", i)
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "box",
			"label":    fmt.Sprintf("\"%T %d→%d\"", layer, layer.InputSize(), layer.OutputSize()),
		}
		g.AddNode("DBN", id, attrs)
		g.AddEdge(prev, id, true, nil)
		prev = id
	}
	return g.String()
}
