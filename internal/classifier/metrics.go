package classifier

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Accuracy is the share of predictions equal to truth.
func Accuracy(truth, pred []string) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return 0
	}
	hit := 0
	for i := range truth {
		if truth[i] == pred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}

// Confusion counts predictions per true class. Rows are true classes and
// columns predicted classes, both in Classes order.
type Confusion struct {
	Classes []string
	Counts  *mat.Dense
}

// ConfusionMatrix tallies truth against pred over classes. Labels outside
// classes are not counted.
func ConfusionMatrix(truth, pred []string, classes []string) Confusion {
	n := len(classes)
	if n == 0 {
		return Confusion{}
	}
	idx := make(map[string]int, n)
	for i, c := range classes {
		idx[c] = i
	}
	m := mat.NewDense(n, n, nil)
	for i := range truth {
		if i >= len(pred) {
			break
		}
		r, ok1 := idx[truth[i]]
		c, ok2 := idx[pred[i]]
		if ok1 && ok2 {
			m.Set(r, c, m.At(r, c)+1)
		}
	}
	return Confusion{Classes: append([]string(nil), classes...), Counts: m}
}

// At returns the count of truth classified as pred.
func (c Confusion) At(truth, pred string) int {
	r, col := -1, -1
	for i, name := range c.Classes {
		if name == truth {
			r = i
		}
		if name == pred {
			col = i
		}
	}
	if r < 0 || col < 0 {
		return 0
	}
	return int(c.Counts.At(r, col))
}

func (c Confusion) String() string {
	if c.Counts == nil {
		return ""
	}
	width := 8
	for _, name := range c.Classes {
		if len(name) > width {
			width = len(name)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s", width, "")
	for _, name := range c.Classes {
		fmt.Fprintf(&b, " %*s", width, name)
	}
	b.WriteByte('\n')
	for i, name := range c.Classes {
		fmt.Fprintf(&b, "%*s", width, name)
		for j := range c.Classes {
			fmt.Fprintf(&b, " %*d", width, int(c.Counts.At(i, j)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
