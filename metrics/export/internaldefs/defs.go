package internaldefs

import (
	"github.com/MrEthical07/tokenauth"
)

// CounterDef names one tokenauth counter.
type CounterDef struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

// HistogramDef names one tokenauth latency histogram.
type HistogramDef struct {
	ID   tokenauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: tokenauth.MetricLoginSuccess, Name: "tokenauth_login_success_total", Help: "Successful logins."},
	{ID: tokenauth.MetricLoginFailure, Name: "tokenauth_login_failure_total", Help: "Rejected logins."},
	{ID: tokenauth.MetricRefreshSuccess, Name: "tokenauth_refresh_success_total", Help: "Access tokens reissued from a refresh token."},
	{ID: tokenauth.MetricRefreshFailure, Name: "tokenauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: tokenauth.MetricTokenRevoked, Name: "tokenauth_token_revoked_total", Help: "Access tokens revoked."},
	{ID: tokenauth.MetricTokenInvalidated, Name: "tokenauth_token_invalidated_total", Help: "Tokens added to the blacklist."},
	{ID: tokenauth.MetricRegisterSuccess, Name: "tokenauth_register_success_total", Help: "Created accounts."},
	{ID: tokenauth.MetricRegisterRejected, Name: "tokenauth_register_rejected_total", Help: "Registrations that failed validation."},
	{ID: tokenauth.MetricPasswordResetRequest, Name: "tokenauth_password_reset_request_total", Help: "Issued password reset tokens."},
	{ID: tokenauth.MetricPasswordResetTokenRejected, Name: "tokenauth_password_reset_token_rejected_total", Help: "Rejected password reset tokens."},
	{ID: tokenauth.MetricPasswordChangeSuccess, Name: "tokenauth_password_change_success_total", Help: "Changed passwords."},
	{ID: tokenauth.MetricPasswordChangeInvalidOld, Name: "tokenauth_password_change_invalid_old_total", Help: "Password changes with a wrong old password."},
	{ID: tokenauth.MetricSessionLogin, Name: "tokenauth_session_login_total", Help: "Session logins."},
	{ID: tokenauth.MetricSessionLogout, Name: "tokenauth_session_logout_total", Help: "Session logouts."},
	{ID: tokenauth.MetricLoginThrottled, Name: "tokenauth_login_throttled_total", Help: "Logins refused by the failed-login throttle."},
	{ID: tokenauth.MetricGuardRejected, Name: "tokenauth_guard_rejected_total", Help: "Bearer tokens rejected by Authenticate."},
}

var HistogramDefs = []HistogramDef{
	{ID: tokenauth.MetricAuthenticateLatency, Name: "tokenauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "tokenauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// UpperBounds are the finite bucket bounds in seconds. The last snapshot
// bucket is +Inf.
var UpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BoundSuffix names each snapshot bucket, +Inf included.
var BoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
