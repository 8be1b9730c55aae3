package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// GenerateTrackingPixelURL builds the open-tracking pixel URL for one recipient
func GenerateTrackingPixelURL(baseURL, campaignShortcode, subscriberToken string) string {
	return fmt.Sprintf("%s/t/open/%s/%s", baseURL, campaignShortcode, subscriberToken)
}

// GenerateClickTrackURL builds a counted redirect URL for a link in the email body
func GenerateClickTrackURL(baseURL, campaignShortcode, subscriberToken, originalURL string) string {
	return fmt.Sprintf("%s/t/click/%s/%s?url=%s",
		baseURL, campaignShortcode, subscriberToken, url.QueryEscape(originalURL))
}

// GenerateUnsubscribeURL builds the one-click unsubscribe link for one recipient
func GenerateUnsubscribeURL(baseURL, campaignShortcode, subscriberToken string) string {
	return fmt.Sprintf("%s/t/unsubscribe/%s/%s", baseURL, campaignShortcode, subscriberToken)
}

// InjectTracking rewrites links for click tracking and appends the open pixel
// and unsubscribe footer to the rendered HTML body.
func InjectTracking(htmlContent, baseURL, campaignShortcode, subscriberToken string) string {
	modified := injectClickTracking(htmlContent, baseURL, campaignShortcode, subscriberToken)

	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
		GenerateTrackingPixelURL(baseURL, campaignShortcode, subscriberToken))
	footer := fmt.Sprintf(`<p style="font-size:12px;color:#7f8c8d"><a href="%s">Unsubscribe</a></p>`,
		GenerateUnsubscribeURL(baseURL, campaignShortcode, subscriberToken))

	return modified + footer + pixel
}

func injectClickTracking(html, baseURL, campaignShortcode, subscriberToken string) string {
	// This is a simplified rewriter. Consider an HTML parser if bodies get exotic.
	startTag := "<a href=\""
	endTag := "\""
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		trackedURL := GenerateClickTrackURL(baseURL, campaignShortcode, subscriberToken, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}

// RenderForSubscriber substitutes recipient placeholders into campaign content
func RenderForSubscriber(content, firstName, lastName, email string) string {
	replacements := map[string]string{
		"{{first_name}}": firstName,
		"{{last_name}}":  lastName,
		"{{email}}":      email,
	}
	for placeholder, value := range replacements {
		content = strings.ReplaceAll(content, placeholder, value)
	}
	return content
}
