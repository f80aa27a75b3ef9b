// Package main is the entry point for the fanmatch command.
//
// fanmatch reads lines from an input, counts the occurrences of every
// pattern given with -m and copies each line that contains at least one
// pattern to the output, once.
//
// Architecture:
//
//	input → producer → one consumer per -m pattern → collector → output
//	                                                            → report (stdout)
//
// Configuration:
//   - Environment variables (FANMATCH_*, LOG_LEVEL, LOG_DEV)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Classic invocation, report in the P1/P2/P3 format
//	fanmatch -i input.txt -o matched.txt -m cat -m ran
//
//	# Compressed logs, JSON report, live metrics on :9090
//	fanmatch -i 'logs/**/*.gz' -o - -m ERROR --format json --metrics-addr :9090
//
// Input and output default to /dev/null. The command exits with status 1
// when the run fails; the report is still printed and marked incomplete.
package main
