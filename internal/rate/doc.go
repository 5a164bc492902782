// Package rate throttles repeated failed logins with fixed-window Redis
// counters, per username and optionally per client IP.
package rate
