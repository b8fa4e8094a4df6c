package osa

import "strings"

// Human-readable causes mapped from interpreter diagnostics. Callers
// surface these to users in place of raw osascript stderr.
const (
	msgInterpreterMissing = "The osascript interpreter is not available. macOS automation requires running on a Mac with osascript installed."
	msgSyntaxError        = "The automation script contained a syntax error. This usually means the request included characters the script builder could not handle."
	msgPermissionDenied   = "Automation permission was denied. Grant access in System Settings > Privacy & Security > Automation, then retry."
	msgAppNotRunning      = "The target application is not running. Open it and try again."
	msgGenericFailure     = "The automation script failed. Check that the target application is installed and accessible."
)

// classifyCutoff caps how much raw diagnostic text is surfaced when no
// known cause matches.
const classifyCutoff = 200

// Classify maps diagnostic text plus a completion code to a
// human-readable cause. Pure; no side effects.
//
// Returns "" only when the diagnostic text is empty. Checks are ordered
// substring matches, first match wins. If nothing matches and the code
// is 1, a generic failure message is returned; otherwise the first 200
// characters of the diagnostic are passed through verbatim.
func Classify(diagnostic string, exitCode int) string {
	if diagnostic == "" {
		return ""
	}

	lower := strings.ToLower(diagnostic)
	switch {
	case strings.Contains(lower, "tool not found"):
		return msgInterpreterMissing
	case strings.Contains(lower, "syntax error"):
		return msgSyntaxError
	case strings.Contains(lower, "permission denied"):
		return msgPermissionDenied
	case strings.Contains(lower, "application isn't running"):
		return msgAppNotRunning
	}

	if exitCode == 1 {
		return msgGenericFailure
	}
	if len(diagnostic) > classifyCutoff {
		return diagnostic[:classifyCutoff]
	}
	return diagnostic
}
