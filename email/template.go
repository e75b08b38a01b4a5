package email

import (
	"fmt"
	"html"
	"strings"

	"advent-mailer/pkg/advent"
)

// Template holds the static pieces of the notification email.
type Template struct {
	SiteURL        string // Challenge site, used for the CTA button
	UnsubscribeURL string // Optional footer link
}

// Compose renders a challenge into a ready-to-send message. The subject for
// day 1 is a distinct launch variant; later days use the generic unlocked
// form. All interpolated text is HTML-escaped before embedding. The
// plain-text body is the raw challenge markdown, unmodified.
func Compose(ch advent.Challenge, tmpl Template) advent.Message {
	var subject string
	if ch.Day == 1 {
		subject = "🎄 Day 1 Challenge is Live - Advent of AI!"
	} else {
		subject = fmt.Sprintf("🎄 Day %d Challenge Unlocked - Advent of AI!", ch.Day)
	}

	return advent.Message{
		Subject: subject,
		HTML:    renderHTML(ch, tmpl),
		Text:    ch.RawMarkdown,
	}
}

func renderHTML(ch advent.Challenge, tmpl Template) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; line-height: 1.6; color: #1f2937; background: #ffffff; margin: 0; padding: 0; }\n")
	b.WriteString(".container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }\n")
	b.WriteString(".header { text-align: center; margin-bottom: 40px; }\n")
	b.WriteString(".snowflake { font-size: 24px; display: inline-block; margin: 0 4px; }\n")
	b.WriteString(".title { font-size: 42px; font-weight: bold; margin: 20px 0; color: #06b6d4; }\n")
	b.WriteString(".day-badge { display: inline-block; background: linear-gradient(135deg, #06b6d4 0%, #3b82f6 100%); color: white; padding: 12px 24px; border-radius: 12px; font-size: 24px; font-weight: bold; margin: 20px 0; }\n")
	b.WriteString(".content { background: #ffffff; padding: 40px; border-radius: 16px; border: 2px solid #e5e7eb; }\n")
	b.WriteString(".challenge-title { color: #06b6d4; font-size: 24px; font-weight: 600; margin: 0 0 8px 0; }\n")
	b.WriteString(".greeting { color: #6b7280; font-size: 16px; margin: 0 0 24px 0; font-style: italic; }\n")
	b.WriteString(".section-header { color: #374151; font-size: 18px; font-weight: 600; margin: 24px 0 12px 0; }\n")
	b.WriteString(".challenge-description { color: #4b5563; font-size: 15px; line-height: 1.7; margin: 16px 0; }\n")
	b.WriteString(".cta-button { display: inline-block; background: linear-gradient(135deg, #06b6d4 0%, #3b82f6 100%); color: white !important; padding: 16px 40px; text-decoration: none; border-radius: 8px; font-weight: 600; font-size: 18px; margin: 30px 0; }\n")
	b.WriteString(".footer { text-align: center; margin-top: 40px; color: #6b7280; font-size: 14px; }\n")
	b.WriteString("a { color: #06b6d4; text-decoration: none; }\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"container\">\n")
	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<div class=\"snowflake\">❄️ ❄️ ❄️</div>\n")
	b.WriteString("<h1 class=\"title\">Advent of AI</h1>\n")
	b.WriteString(fmt.Sprintf("<div class=\"day-badge\">Day %d</div>\n", ch.Day))
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<h2 class=\"challenge-title\">%s</h2>\n", html.EscapeString(ch.Title)))
	b.WriteString(fmt.Sprintf("<p class=\"greeting\">%s</p>\n", html.EscapeString(ch.Greeting)))

	b.WriteString("<h3 class=\"section-header\">Today's Challenge:</h3>\n")
	b.WriteString("<div class=\"challenge-description\">\n")
	for _, p := range strings.Split(ch.Description, "\n\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("<p style=\"margin: 12px 0; line-height: 1.6;\">%s</p>\n", html.EscapeString(p)))
	}
	b.WriteString("</div>\n")

	b.WriteString("<div style=\"text-align: center; margin: 40px 0;\">\n")
	b.WriteString(fmt.Sprintf("<a href=\"%s/challenges/%d\" class=\"cta-button\">View Full Challenge →</a>\n",
		html.EscapeString(tmpl.SiteURL), ch.Day))
	b.WriteString("</div>\n")

	b.WriteString("<p style=\"font-size: 15px; margin: 24px 0; color: #4b5563; line-height: 1.7;\">")
	b.WriteString("Remember: Each challenge is designed to build your skills with goose and agentic workflows. Take your time, experiment, and learn!")
	b.WriteString("</p>\n")

	b.WriteString("<div style=\"background: #f0f9ff; border-left: 4px solid #06b6d4; padding: 20px; margin: 24px 0; border-radius: 8px;\">\n")
	b.WriteString("<strong style=\"color: #06b6d4; font-size: 16px;\">💡 Tips for Success:</strong>\n")
	b.WriteString("<ul style=\"margin: 12px 0; padding-left: 24px;\">\n")
	b.WriteString("<li style=\"margin: 8px 0; color: #4b5563;\">Read the challenge carefully before starting</li>\n")
	b.WriteString("<li style=\"margin: 8px 0; color: #4b5563;\">Use the goose documentation when you get stuck</li>\n")
	b.WriteString("<li style=\"margin: 8px 0; color: #4b5563;\">Share your progress in the Discord community</li>\n")
	b.WriteString("<li style=\"margin: 8px 0; color: #4b5563;\">Have fun and experiment!</li>\n")
	b.WriteString("</ul>\n")
	b.WriteString("</div>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"footer\">\n")
	b.WriteString("<p>Happy coding! See you tomorrow for the next challenge! ❄️</p>\n")
	b.WriteString(fmt.Sprintf("<p style=\"margin-top: 20px; font-size: 12px;\">You're receiving this because you signed up for <a href=\"%s\">Advent of AI</a> challenge notifications.</p>\n",
		html.EscapeString(tmpl.SiteURL)))
	if tmpl.UnsubscribeURL != "" {
		b.WriteString(fmt.Sprintf("<p style=\"font-size: 12px;\"><a href=\"%s\">Unsubscribe</a></p>\n",
			html.EscapeString(tmpl.UnsubscribeURL)))
	}
	b.WriteString("</div>\n")

	b.WriteString("</div>\n</body>\n</html>")

	return b.String()
}
