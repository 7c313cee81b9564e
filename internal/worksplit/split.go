// Package worksplit decides how the eight children of an octree node are
// distributed over parallel tasks.
//
// Each child carries a latency estimate. Split picks a task count from the
// total latency and a target per-task latency, then assigns children to
// tasks so that the slowest task finishes as early as possible. The
// assignment seeds the largest children one per task, places one or two
// more greedily, and brute-forces the rest; with at most eight children the
// enumeration stays small.
package worksplit

import (
	"math"
	"sort"
)

// MaxChildren is the fan-out of an octree node.
const MaxChildren = 8

// enumerationBudget bounds T^k, the number of assignments tried by the
// brute-force stage.
const enumerationBudget = 1024

// Plan is a child to task assignment.
type Plan struct {
	// Tasks is the number of tasks, 1 <= Tasks <= MaxChildren.
	Tasks int
	// Assignment maps child index to task index.
	Assignment [MaxChildren]uint8
}

// Children returns the children assigned to task, in child order.
func (p Plan) Children(task int) []int {
	var out []int
	for c := 0; c < MaxChildren; c++ {
		if int(p.Assignment[c]) == task {
			out = append(out, c)
		}
	}
	return out
}

// Loads returns the summed latency of every task.
func (p Plan) Loads(latencies [MaxChildren]float64) []float64 {
	loads := make([]float64, p.Tasks)
	for c, l := range latencies {
		loads[p.Assignment[c]] += l
	}
	return loads
}

// MaxLoad returns the latency of the slowest task.
func (p Plan) MaxLoad(latencies [MaxChildren]float64) float64 {
	var m float64
	for _, l := range p.Loads(latencies) {
		m = max(m, l)
	}
	return m
}

// Split computes a plan for the given child latencies.
//
// target is the desired latency of one task, in the same unit as the
// latencies. Children with zero latency are assigned to task 0 and never
// raise the task count.
func Split(latencies [MaxChildren]float64, target float64) Plan {
	var (
		sum            float64
		nonZero        int
		aboveThreshold int
	)
	for _, l := range latencies {
		if l <= 0 {
			continue
		}
		nonZero++
		sum += l
		if l > target/MaxChildren {
			aboveThreshold++
		}
	}

	if nonZero <= 1 || target <= 0 {
		return Plan{Tasks: 1}
	}

	tasks := int(math.Round(sum / target))
	tasks = min(tasks, aboveThreshold, nonZero)
	tasks = max(tasks, 1)

	switch tasks {
	case 1:
		return Plan{Tasks: 1}
	case nonZero:
		return ownTask(latencies)
	default:
		return balance(latencies, tasks)
	}
}

// ownTask gives every non-zero child its own task.
func ownTask(latencies [MaxChildren]float64) Plan {
	var p Plan
	for c, l := range latencies {
		if l > 0 {
			p.Assignment[c] = uint8(p.Tasks)
			p.Tasks++
		}
	}
	return p
}

// balance assigns the non-zero children to tasks (1 < tasks < nonZero).
func balance(latencies [MaxChildren]float64, tasks int) Plan {
	order := make([]int, 0, MaxChildren)
	for c, l := range latencies {
		if l > 0 {
			order = append(order, c)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return latencies[order[i]] > latencies[order[j]]
	})

	p := Plan{Tasks: tasks}
	var loads [MaxChildren]float64

	// Largest-first seeding: one of the T largest children per task.
	for t := 0; t < tasks; t++ {
		c := order[t]
		p.Assignment[c] = uint8(t)
		loads[t] += latencies[c]
	}
	rest := order[tasks:]

	// Fix one more child greedily, and a second one while the brute-force
	// space is still above budget.
	for fixed := 0; len(rest) > 0 && fixed < 2; fixed++ {
		if fixed == 1 && pow(tasks, len(rest)) <= enumerationBudget {
			break
		}
		t := lightest(loads[:tasks])
		c := rest[0]
		p.Assignment[c] = uint8(t)
		loads[t] += latencies[c]
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return p
	}

	var (
		digits  [MaxChildren]int
		best    [MaxChildren]int
		bestMax = math.Inf(1)
	)
	for {
		trial := loads
		for i, c := range rest {
			trial[digits[i]] += latencies[c]
		}
		var m float64
		for _, l := range trial[:tasks] {
			m = max(m, l)
		}
		if m < bestMax {
			bestMax = m
			best = digits
		}

		// Odometer increment over base-T digits.
		i := 0
		for ; i < len(rest); i++ {
			digits[i]++
			if digits[i] < tasks {
				break
			}
			digits[i] = 0
		}
		if i == len(rest) {
			break
		}
	}

	for i, c := range rest {
		p.Assignment[c] = uint8(best[i])
	}
	return p
}

func lightest(loads []float64) int {
	idx := 0
	for i := 1; i < len(loads); i++ {
		if loads[i] < loads[idx] {
			idx = i
		}
	}
	return idx
}

func pow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
		if r > enumerationBudget {
			return r
		}
	}
	return r
}
