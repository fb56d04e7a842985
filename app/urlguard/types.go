package urlguard

// ValidatedURL is the guard's verdict on a raw URL string. It is only
// ever constructed by Validate.
type ValidatedURL struct {
	Valid     bool
	Sanitized string
	Warnings  []string
	Reason    string
}

func invalid(reason string) ValidatedURL {
	return ValidatedURL{Valid: false, Reason: reason}
}
