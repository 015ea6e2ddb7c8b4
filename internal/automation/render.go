package automation

import "strings"

// RenderMessage builds the outbound message body for a scheduled dispatch from
// the profile's behavioral fields and the scheduled text. The rendering is
// deterministic: same profile and text always yield the same body, so a
// retried job resends the identical message.
func RenderMessage(profile *Profile, scheduledText string) string {
	scheduledText = strings.TrimSpace(scheduledText)
	if profile == nil {
		return scheduledText
	}

	var directives []string
	appendDirective := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			directives = append(directives, label+": "+v)
		}
	}
	appendDirective("Tone", profile.Tone)
	appendDirective("Objective", profile.Objective)
	appendDirective("Priority", profile.Priority)
	appendDirective("If rejected", profile.RejectionStrategy)
	appendDirective("Style", profile.Style)

	var b strings.Builder
	if len(directives) > 0 {
		b.WriteString(strings.Join(directives, "\n"))
		b.WriteString("\n\n")
	}
	if instructions := strings.TrimSpace(profile.Instructions); instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	b.WriteString(scheduledText)

	return strings.TrimSpace(b.String())
}
