package chatbot

import (
	"regexp"
	"strings"

	"devagents/internal/domain"
)

var (
	issuePattern  = regexp.MustCompile(`(?i)\b(?:issue|work\s*item|ticket)\s*#?(\d+)`)
	prPattern     = regexp.MustCompile(`(?i)\b(?:pull\s*request|merge\s*request|pr|mr)\s*[#!]?(\d+)`)
	branchPattern = regexp.MustCompile(`(?i)\bbranch(?:es)?\s+([\w./-]+)\s*(?:->|\.\.+|against|vs\.?|into)\s*([\w./-]+)`)
	commitPattern = regexp.MustCompile(`\b([0-9a-f]{7,40})\.\.\.?([0-9a-f]{7,40})\b`)
	impactPattern = regexp.MustCompile(`(?i)\bimpact|retest|regression`)
)

// ParseContextRefs extracts issue, PR, branch and commit references from
// a chat message. "branch a -> b" reads as source a, target b; a commit
// range "a..b" follows git's convention of target..source.
func ParseContextRefs(message string) domain.ChatContext {
	var cc domain.ChatContext
	if m := issuePattern.FindStringSubmatch(message); m != nil {
		cc.IssueID = m[1]
	}
	if m := prPattern.FindStringSubmatch(message); m != nil {
		cc.PullReqID = m[1]
	}
	if m := branchPattern.FindStringSubmatch(message); m != nil {
		cc.SourceBranch, cc.TargetBranch = m[1], m[2]
	}
	if m := commitPattern.FindStringSubmatch(message); m != nil {
		cc.TargetCommit, cc.SourceCommit = m[1], m[2]
	}
	return cc
}

func wantsImpactAnalysis(message string) bool {
	return impactPattern.MatchString(strings.ToLower(message))
}
