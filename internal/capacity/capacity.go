// Package capacity checks the controller's capacity accounting for instance groups and instances.
package capacity

import (
	"fmt"
	"math"

	"github.com/tower-qa/tower-qa/internal/models"
)

// ExpectedPercentRemaining is round((capacity - consumed) * 100 / capacity, 2),
// with halves rounded to even, and 0 for a group without capacity.
func ExpectedPercentRemaining(capacity int, consumed float64) float64 {
	if capacity == 0 {
		return 0
	}
	v := (float64(capacity) - consumed) * 100 / float64(capacity)
	return math.RoundToEven(v*100) / 100
}

// CheckPercentCapacityRemaining verifies the group's reported percentage
// against its capacity and consumed capacity.
func CheckPercentCapacityRemaining(ig models.InstanceGroup) error {
	want := ExpectedPercentRemaining(ig.Capacity, ig.ConsumedCapacity)
	if !equal(ig.PercentCapacityRemaining, want) {
		return fmt.Errorf("instance group %q: percent_capacity_remaining is %v, expected %v (capacity %d, consumed %v)",
			ig.Name, ig.PercentCapacityRemaining, want, ig.Capacity, ig.ConsumedCapacity)
	}
	return nil
}

// CheckInstancePercentRemaining is CheckPercentCapacityRemaining for a single instance.
func CheckInstancePercentRemaining(i models.Instance) error {
	want := ExpectedPercentRemaining(i.Capacity, i.ConsumedCapacity)
	if !equal(i.PercentCapacityRemaining, want) {
		return fmt.Errorf("instance %q: percent_capacity_remaining is %v, expected %v (capacity %d, consumed %v)",
			i.Hostname, i.PercentCapacityRemaining, want, i.Capacity, i.ConsumedCapacity)
	}
	return nil
}

// CheckInstanceCapacity verifies that an enabled execution instance reports the
// capacity picked by its capacity adjustment between cpu and memory capacity.
func CheckInstanceCapacity(i models.Instance) error {
	if !i.Enabled {
		if i.Capacity != 0 {
			return fmt.Errorf("instance %q is disabled but reports capacity %d", i.Hostname, i.Capacity)
		}
		return nil
	}
	want := ExpectedInstanceCapacity(i)
	if i.Capacity != want {
		return fmt.Errorf("instance %q: capacity is %d, expected %d (cpu %d, mem %d, adjustment %v)",
			i.Hostname, i.Capacity, want, i.CPUCapacity, i.MemCapacity, i.CapacityAdjustment)
	}
	return nil
}

// ExpectedInstanceCapacity interpolates between the smaller and larger of cpu
// and memory capacity by the adjustment factor.
func ExpectedInstanceCapacity(i models.Instance) int {
	lo := min(i.CPUCapacity, i.MemCapacity)
	hi := max(i.CPUCapacity, i.MemCapacity)
	return lo + int(float64(hi-lo)*i.CapacityAdjustment)
}

func equal(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
