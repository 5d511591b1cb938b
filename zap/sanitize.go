package zap

import "strings"

// controlCharReplacer escapes control characters that can forge log lines
// (CWE-117). JSON output already escapes them; the console encoder used for
// local runs does not.
var controlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func sanitizeString(s string) string {
	return controlCharReplacer.Replace(s)
}
