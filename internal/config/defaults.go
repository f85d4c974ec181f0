package config

// DefaultConfigYAML is written by `triage init`.
const DefaultConfigYAML = `# Fault triage configuration
#
# Every value can be overridden with an environment variable:
# checks.continue_on_assert -> TRIAGE_CHECKS_CONTINUE_ON_ASSERT

log:
  level: info
  format: auto
  # Destination of the diagnostic sink (empty = stderr)
  file: ""

checks:
  # Report failed checks but keep running, no break, no termination.
  continue_on_assert: false
  # Raise a recoverable fault before reporting.
  # raise_chance: 1 = recovered immediately, 2 = left for an enclosing handler
  raise_on_assert: false
  raise_chance: 1
  # Return "retry" so the caller traps into a debugger.
  debug_break_on_assert: false
  # Attach a bounded stack trace to reports.
  assert_stacktrace: true
  # Break when this error code is reported (0 disables).
  break_on_code: 0
  # Break before terminating on production fail-fast.
  break_on_production_assert: false
  # Launch debugger_command when no debugger is attached.
  launch_debugger_on_assert: false
  # {pid} is replaced by the process id, {signal} by the readiness handle.
  debugger_command: ""
  # Consistency checks from inspection tooling.
  consistency_checks: true
  # YAML list of {file, line} locations to ignore for this run.
  ignore_file: ""

crash_dump:
  enabled: true
  dir: .triage/crashdumps
  max_files: 10
  include_env: false
  include_system: true

monitor:
  enabled: false
  interval: 30s
  history_size: 120
`
