// Package diagnostics captures forensic state for a process that is about
// to terminate after a failed check.
//
//   - CrashDumpWriter persists a JSON dump holding the failure report, every
//     goroutine stack, resource and system state and a redacted environment.
//     Old dumps are rotated so the directory stays bounded.
//
//   - ResourceMonitor samples file descriptors, goroutines, heap and
//     process state on an interval; its history is attached to dumps so the
//     lead-up to a failure can be inspected afterwards.
//
//   - SystemMetricsCollector reads host CPU, memory, disk and load figures
//     via gopsutil.
//
// Everything here runs on the fail-fast path, so failures are reported as
// errors and never panic out.
package diagnostics
