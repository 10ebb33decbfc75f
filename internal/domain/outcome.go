package domain

// AuthAction discriminates the result of a Telegram authentication attempt.
type AuthAction string

const (
	AuthActionLogin    AuthAction = "login"
	AuthActionSignup   AuthAction = "signup"
	AuthActionRejected AuthAction = "rejected"
)

// RejectReason is the machine readable code of a rejected attempt.
type RejectReason string

const (
	RejectInvalidData      RejectReason = "INVALID_DATA"
	RejectDataExpired      RejectReason = "DATA_EXPIRED"
	RejectAccountBanned    RejectReason = "ACCOUNT_BANNED"
	RejectSignupDisabled   RejectReason = "SIGNUP_DISABLED"
	RejectDomainRestricted RejectReason = "DOMAIN_RESTRICTED"
	RejectCreateFailed     RejectReason = "CREATE_FAILED"
	RejectIdentifierTaken  RejectReason = "IDENTIFIER_TAKEN"
	RejectNotConfigured    RejectReason = "NOT_CONFIGURED"
	RejectLoginDisabled    RejectReason = "LOGIN_DISABLED"
	RejectLoginFailed      RejectReason = "LOGIN_FAILED"
)

var rejectMessages = map[RejectReason]string{
	RejectInvalidData:      "Invalid telegram authentication data",
	RejectDataExpired:      "Authentication data is too old",
	RejectAccountBanned:    "Your account has been suspended",
	RejectSignupDisabled:   "Telegram signup is not enabled",
	RejectDomainRestricted: "Telegram signup is not allowed for this domain",
	RejectCreateFailed:     "Failed to create account",
	RejectIdentifierTaken:  "This Telegram account is already linked to another user",
	RejectNotConfigured:    "Telegram integration is not configured",
	RejectLoginDisabled:    "Telegram authentication is not enabled",
	RejectLoginFailed:      "Failed to log in with Telegram",
}

// Message returns the human readable description of the reason.
func (r RejectReason) Message() string {
	if msg, ok := rejectMessages[r]; ok {
		return msg
	}
	return string(r)
}

// AuthOutcome is the value returned for every authentication attempt. User is
// set for login and signup, Reason for rejections.
type AuthOutcome struct {
	Action AuthAction
	User   *User
	Reason RejectReason
}

func LoggedIn(user *User) AuthOutcome {
	return AuthOutcome{Action: AuthActionLogin, User: user}
}

func SignedUp(user *User) AuthOutcome {
	return AuthOutcome{Action: AuthActionSignup, User: user}
}

func Rejected(reason RejectReason) AuthOutcome {
	return AuthOutcome{Action: AuthActionRejected, Reason: reason}
}

// Succeeded reports whether the attempt produced an authenticated user.
func (o AuthOutcome) Succeeded() bool {
	return o.Action != AuthActionRejected && o.User != nil
}

// Message returns the user facing summary of the outcome.
func (o AuthOutcome) Message() string {
	switch o.Action {
	case AuthActionLogin:
		return "Successfully logged in with Telegram"
	case AuthActionSignup:
		return "Account created successfully with Telegram"
	default:
		return o.Reason.Message()
	}
}
