package batch

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ramodal61/n8n/internal/ledger"
)

// buildLedger turns generated (total, processed) pairs into a ledger plus
// the eligible name list. Processed is folded into [0, total].
func buildLedger(totals, processed []int64) (ledger.Ledger, []string) {
	led := ledger.Ledger{}
	var names []string
	for i, total := range totals {
		if total < 0 {
			total = -total
		}
		p := int64(0)
		if i < len(processed) {
			p = processed[i] % (total + 1)
			if p < 0 {
				p = -p
			}
		}
		name := fmt.Sprintf("file-%03d.sqlite", i)
		led[name] = ledger.FileProgress{Total: total, Processed: p}
		names = append(names, name)
	}
	return led, names
}

func TestProperty_PlanInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genInputs := gopter.CombineGens(
		gen.SliceOf(gen.Int64Range(0, 100000)),
		gen.SliceOf(gen.Int64Range(0, 100000)),
		gen.Int64Range(0, 200000),
	)

	// Property: a plan never allocates more than the quota.
	properties.Property("allocations never exceed the quota", prop.ForAll(
		func(vals []interface{}) bool {
			led, names := buildLedger(vals[0].([]int64), vals[1].([]int64))
			quota := vals[2].(int64)

			var sum int64
			for _, alloc := range Plan(led, names, quota) {
				sum += alloc.Count
			}
			return sum <= quota
		},
		genInputs,
	))

	// Property: every allocation stays within its file's bounds and is
	// internally consistent.
	properties.Property("allocations stay within file bounds", prop.ForAll(
		func(vals []interface{}) bool {
			led, names := buildLedger(vals[0].([]int64), vals[1].([]int64))
			quota := vals[2].(int64)

			for _, alloc := range Plan(led, names, quota) {
				rec := led[alloc.File]
				if alloc.Count <= 0 {
					return false
				}
				if alloc.Start != rec.Processed {
					return false
				}
				if alloc.End != alloc.Start+alloc.Count {
					return false
				}
				if alloc.End > rec.Total {
					return false
				}
			}
			return true
		},
		genInputs,
	))

	// Property: files are visited in ascending order of total.
	properties.Property("plan walks files smallest-total first", prop.ForAll(
		func(vals []interface{}) bool {
			led, names := buildLedger(vals[0].([]int64), vals[1].([]int64))
			quota := vals[2].(int64)

			plan := Plan(led, names, quota)
			for i := 1; i < len(plan); i++ {
				prev, curr := led[plan[i-1].File], led[plan[i].File]
				if prev.Total > curr.Total {
					return false
				}
				if prev.Total == curr.Total && plan[i-1].File > plan[i].File {
					return false
				}
			}
			return true
		},
		genInputs,
	))

	// Property: when the quota covers the whole backlog, the plan drains it.
	properties.Property("sufficient quota drains the full backlog", prop.ForAll(
		func(vals []interface{}) bool {
			led, names := buildLedger(vals[0].([]int64), vals[1].([]int64))

			var backlog int64
			for _, name := range names {
				backlog += led[name].Remaining()
			}

			var sum int64
			for _, alloc := range Plan(led, names, backlog) {
				sum += alloc.Count
			}
			return sum == backlog
		},
		genInputs,
	))

	properties.TestingRun(t)
}
