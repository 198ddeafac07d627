package collector

import "github.com/shirou/gopsutil/v3/mem"

const highMemoryPercent = 85.0

// MemoryProbe reports system memory pressure
type MemoryProbe interface {
	UsedPercent() (float64, error)
}

// VirtualMemoryProbe reads system memory usage via gopsutil
type VirtualMemoryProbe struct{}

// UsedPercent returns the percentage of physical memory in use
func (VirtualMemoryProbe) UsedPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
