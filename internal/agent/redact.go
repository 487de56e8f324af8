package agent

import "regexp"

const redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
	regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,}\b`),
	regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}\b`),
	regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`),
}

// key = value assignments; the name is kept and the value replaced.
var assignmentPattern = regexp.MustCompile(`(?i)\b((?:api[_-]?key|secret|token|password|passwd|access[_-]?key)[A-Za-z0-9_\-]*)(["']?\s*[:=]\s*["']?)([^\s"',;]{8,})`)

// Redact masks credentials in text before it is sent to a model.
func Redact(text string) string {
	for _, p := range secretPatterns {
		text = p.ReplaceAllString(text, redacted)
	}
	return assignmentPattern.ReplaceAllString(text, "${1}${2}"+redacted)
}
