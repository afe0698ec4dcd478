// Package sysstat samples host resource usage for operational visibility
// into the conductor process, adapted from the teacher's
// internal/metrics/system.go SystemMetrics/CPUTracker.
package sysstat

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Sampler tracks CPU and memory usage for the conductor process. It is
// sampled on a timer by cmd/aeron-driverd, never from inside do_work: a
// gopsutil call blocks on I/O and must never run on the conductor's
// single thread (spec.md §5 "no conductor operation blocks").
type Sampler struct {
	mu          sync.RWMutex
	cpuPercent  float64
	memoryStats runtime.MemStats
}

// NewSampler creates a sampler with one initial CPU reading taken.
func NewSampler() *Sampler {
	s := &Sampler{}
	s.sampleCPU()
	return s
}

// Sample refreshes both CPU and memory readings.
func (s *Sampler) Sample() {
	s.sampleMemory()
	s.sampleCPU()
}

func (s *Sampler) sampleMemory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	runtime.ReadMemStats(&s.memoryStats)
}

func (s *Sampler) sampleCPU() {
	percents, err := cpu.Percent(time.Second, false)
	if err != nil || len(percents) == 0 {
		return
	}
	current := percents[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cpuPercent == 0 {
		s.cpuPercent = current
		return
	}
	const alpha = 0.3
	s.cpuPercent = alpha*current + (1-alpha)*s.cpuPercent
}

// HeapAllocMB returns current heap usage in megabytes.
func (s *Sampler) HeapAllocMB() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(s.memoryStats.HeapAlloc) / 1024 / 1024
}

// CPUPercent returns the smoothed host CPU usage percentage.
func (s *Sampler) CPUPercent() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cpuPercent
}

// Goroutines returns the current goroutine count, a cheap proxy for
// whether sender/receiver agent goroutines (out of scope) are leaking.
func (s *Sampler) Goroutines() int {
	return runtime.NumGoroutine()
}
