package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"advent-mailer/pkg/advent"
)

func testChallenge(day int) advent.Challenge {
	return advent.Challenge{
		Day:         day,
		Title:       "Build Your First Agent",
		Greeting:    "Welcome, AI Engineer!",
		Description: "First paragraph of the story.\n\nSecond paragraph with details.",
		RawMarkdown: "# Day 3: Build Your First Agent\n\nFull markdown body here.",
	}
}

func TestComposeSubjectDayOne(t *testing.T) {
	msg := Compose(testChallenge(1), Template{SiteURL: "https://adventofai.dev"})
	assert.Equal(t, "🎄 Day 1 Challenge is Live - Advent of AI!", msg.Subject)
}

func TestComposeSubjectLaterDays(t *testing.T) {
	msg := Compose(testChallenge(7), Template{SiteURL: "https://adventofai.dev"})
	assert.Equal(t, "🎄 Day 7 Challenge Unlocked - Advent of AI!", msg.Subject)
}

func TestComposeTextIsRawMarkdown(t *testing.T) {
	ch := testChallenge(3)
	msg := Compose(ch, Template{SiteURL: "https://adventofai.dev"})
	assert.Equal(t, ch.RawMarkdown, msg.Text)
}

func TestComposeHTMLContent(t *testing.T) {
	msg := Compose(testChallenge(3), Template{
		SiteURL:        "https://adventofai.dev",
		UnsubscribeURL: "https://adventofai.dev/unsubscribe",
	})

	assert.Contains(t, msg.HTML, "Build Your First Agent")
	assert.Contains(t, msg.HTML, "Welcome, AI Engineer!")
	assert.Contains(t, msg.HTML, "Day 3")
	assert.Contains(t, msg.HTML, `href="https://adventofai.dev/challenges/3"`)
	assert.Contains(t, msg.HTML, `href="https://adventofai.dev/unsubscribe"`)

	// Each description paragraph gets its own element.
	assert.Contains(t, msg.HTML, "<p style=\"margin: 12px 0; line-height: 1.6;\">First paragraph of the story.</p>")
	assert.Contains(t, msg.HTML, "<p style=\"margin: 12px 0; line-height: 1.6;\">Second paragraph with details.</p>")
}

func TestComposeHTMLEscapesContent(t *testing.T) {
	ch := testChallenge(3)
	ch.Title = `<script>alert("x")</script>`
	ch.Description = "a <b>bold</b> claim"

	msg := Compose(ch, Template{SiteURL: "https://adventofai.dev"})

	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.NotContains(t, msg.HTML, "<b>bold</b>")
	assert.Contains(t, msg.HTML, "&lt;b&gt;bold&lt;/b&gt;")
}

func TestComposeOmitsUnsubscribeWhenUnset(t *testing.T) {
	msg := Compose(testChallenge(3), Template{SiteURL: "https://adventofai.dev"})
	assert.False(t, strings.Contains(msg.HTML, "Unsubscribe"))
}
