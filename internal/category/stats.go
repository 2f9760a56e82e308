package category

import "math"

// Count is the number of points carrying one label.
type Count struct {
	Label      Label
	Count      int
	Percentage float64
}

// Distribution counts points per distinct label in ascending label order.
// Percentages are relative to len(labels) and rounded to one decimal.
func Distribution(labels []Label) []Count {
	counts := make(map[Label]int)
	for _, l := range labels {
		counts[l]++
	}

	set := Unique(labels)
	out := make([]Count, len(set))
	for i, l := range set {
		out[i] = Count{
			Label:      l,
			Count:      counts[l],
			Percentage: Percentage(counts[l], len(labels)),
		}
	}
	return out
}

// CountOf returns how many points carry target, and their share of the total.
func CountOf(labels []Label, target Label) Count {
	n := 0
	for _, l := range labels {
		if l == target {
			n++
		}
	}
	return Count{Label: target, Count: n, Percentage: Percentage(n, len(labels))}
}

// Percentage returns 100*n/total rounded to one decimal, or 0 when total is 0.
func Percentage(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}
