package tokenauth

// Message keys looked up in the MessageCatalog.
const (
	MsgAuthFailed         = "auth.failed"
	MsgEmailInvalid       = "auth.email_invalid"
	MsgEmailUnsupported   = "auth.email_unsupported"
	MsgResetTokenInvalid  = "auth.reset_token_invalid"
	MsgOldPasswordInvalid = "auth.old_password_invalid"
	MsgRefreshInvalid     = "auth.refresh_invalid"
	MsgRevokeFailed       = "auth.revoke_failed"
	MsgUnauthenticated    = "auth.unauthenticated"
	MsgTooManyAttempts    = "auth.too_many_attempts"
)

var defaultMessages = map[string]string{
	MsgAuthFailed:         "These credentials do not match our records.",
	MsgEmailInvalid:       "The email is invalid.",
	MsgEmailUnsupported:   "The user model does not have an email attribute.",
	MsgResetTokenInvalid:  "Token is invalid!",
	MsgOldPasswordInvalid: "Old password is invalid!",
	MsgRefreshInvalid:     "The refresh token is invalid.",
	MsgRevokeFailed:       "Revoke token is wrong",
	MsgUnauthenticated:    "Unauthenticated.",
	MsgTooManyAttempts:    "Too many login attempts. Please try again later.",
}

// MapCatalog is a MessageCatalog backed by a map. Keys it lacks fall back to
// the built-in English messages.
type MapCatalog map[string]string

func (c MapCatalog) Message(key string) (string, bool) {
	if msg, ok := c[key]; ok {
		return msg, true
	}
	msg, ok := defaultMessages[key]
	return msg, ok
}

func message(catalog MessageCatalog, key string) string {
	if catalog != nil {
		if msg, ok := catalog.Message(key); ok && msg != "" {
			return msg
		}
	}
	return defaultMessages[key]
}
