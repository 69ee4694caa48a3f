package classifier

import (
	"regexp"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"

	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/utils"
)

// ParsedMessage is the minimal view of a fetched email the classifier needs.
type ParsedMessage struct {
	Subject  string
	From     string
	BodyText string
}

// Classification is the outcome for a single reply. TrackingCode is empty when
// the subject carries no approval token, in which case the message is ignored.
type Classification struct {
	TrackingCode string
	SenderEmail  string
	SenderValid  bool
	Decision     enum.ApprovalDecision
	MatchedLine  string
}

var trackingCodeRegex = regexp.MustCompile(`\[PO-APPROVAL-([^\]]+)\]`)

// approvalPrefixes match against the start of a trimmed, lower-cased body
// line. Prefix matching keeps "Approved, thanks" positive while leaving
// "not approved" to the hold check.
var approvalPrefixes = []string{
	"approved",
	"approval",
	"accept",
	"accepted",
	"yes",
	"confirm",
	"confirmed",
	"looks good",
	"i approve",
	"approve",
	"ok",
	"good",
	"fine",
	"agreed",
	"correct",
}

// holdKeywords match anywhere in the lower-cased body.
var holdKeywords = []string{
	"hold",
	"need changes",
	"changes needed",
	"need more info",
	"more information",
	"revise",
	"revision needed",
	"update needed",
	"clarify",
	"clarification needed",
	"modify",
	"modification needed",
	"incomplete",
	"not ready",
	"wait",
	"pending changes",
	"fix",
	"needs fixing",
	"issue",
	"problem",
	"concern",
	"redo",
	"adjust",
	"edit",
	"correction",
}

var holdPatterns = []*regexp.Regexp{
	regexp.MustCompile(`need.*\b(change|update|revision|clarification|info)`),
	regexp.MustCompile(`please.*\b(change|update|revise|clarify)`),
	regexp.MustCompile(`not.*\b(ready|complete|sufficient)`),
	regexp.MustCompile(`\bon\s+hold\b`),
	regexp.MustCompile(`\bhold\b`),
}

// ExtractTrackingCode pulls the opaque approval token out of a subject,
// ignoring any number of leading reply prefixes. Empty when absent.
func ExtractTrackingCode(subject string) string {
	normalized := utils.NormalizeEmailSubject(subject)
	match := trackingCodeRegex.FindStringSubmatch(normalized)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// Classify maps one parsed reply to a decision. It is a pure function with no
// I/O so the keyword heuristics stay testable in isolation.
func Classify(msg ParsedMessage) Classification {
	result := Classification{
		TrackingCode: ExtractTrackingCode(msg.Subject),
		Decision:     enum.DecisionUnknown,
	}

	result.SenderEmail = utils.ExtractEmailAddress(msg.From)
	if result.SenderEmail != "" {
		validation := mailvalidate.ValidateEmailSyntax(result.SenderEmail)
		result.SenderValid = validation.IsValid
		if validation.IsValid {
			result.SenderEmail = validation.CleanEmail
		}
	}

	if result.TrackingCode == "" {
		return result
	}

	body := strings.ToLower(msg.BodyText)
	lines := strings.Split(body, "\n")

	// Hold check runs first and takes precedence over approval wording.
	if line, held := holdSignal(body, lines); held {
		result.Decision = enum.DecisionOnHold
		result.MatchedLine = line
		return result
	}

	if line, approved := approvalSignal(lines); approved {
		result.Decision = enum.DecisionApproved
		result.MatchedLine = line
		return result
	}

	return result
}

func holdSignal(body string, lines []string) (string, bool) {
	if first := firstNonEmptyLine(lines); first == "on hold" {
		return first, true
	}

	for _, keyword := range holdKeywords {
		if strings.Contains(body, keyword) {
			return keyword, true
		}
	}

	for _, pattern := range holdPatterns {
		if match := pattern.FindString(body); match != "" {
			return match, true
		}
	}

	return "", false
}

func approvalSignal(lines []string) (string, bool) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, prefix := range approvalPrefixes {
			if strings.HasPrefix(line, prefix) {
				return line, true
			}
		}
	}
	return "", false
}

func firstNonEmptyLine(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
