package certificate

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders the plain-text document followed by its certificate
// footer. verifyURL, when set, is printed with the document code appended.
func WriteText(w io.Writer, c *Certificate, verifyURL string) error {
	if c == nil {
		return fmt.Errorf("certificate: nothing to render")
	}
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", c.Title)
	var written int
	for _, sec := range c.Sections {
		if strings.TrimSpace(sec.Content) == "" {
			continue
		}
		if written > 0 {
			fmt.Fprintf(&b, "%s\n\n", strings.Repeat("─", 50))
		}
		fmt.Fprintf(&b, "%s\n%s\n", sec.Title, strings.TrimRight(sec.Content, "\n"))
		written++
	}

	b.WriteString("---\n")
	b.WriteString("Human-Verified Certificate\n")
	fmt.Fprintf(&b, "Document Code: %s\n", c.ID)
	fmt.Fprintf(&b, "Trust Level: %s\n", c.TierLabel)
	fmt.Fprintf(&b, "%s\n", c.SummaryLine)
	for _, line := range c.Summary.Bullets() {
		fmt.Fprintf(&b, "• %s\n", line)
	}
	if len(c.Badges) > 0 {
		labels := make([]string, len(c.Badges))
		for i, badge := range c.Badges {
			labels[i] = badge.Label
		}
		fmt.Fprintf(&b, "Assessment: %s\n", strings.Join(labels, " | "))
	}
	if verifyURL != "" {
		fmt.Fprintf(&b, "Verify online: %s/%s\n", strings.TrimRight(verifyURL, "/"), c.ID)
	}
	fmt.Fprintf(&b, "Signed by: %s\n", c.Fingerprint)
	fmt.Fprintf(&b, "Digest: %s\n", c.Digest)
	fmt.Fprintf(&b, "Issued: %s\n", c.IssuedAt.Format("2006-01-02"))

	_, err := io.WriteString(w, b.String())
	return err
}
