package utils

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBase      = "http://localhost:5000"
	testShortcode = "abc12345"
	testToken     = "tok123"
)

func TestRenderForSubscriber(t *testing.T) {
	content := "Hi {{first_name}} {{last_name}}, we have news for {{email}}"
	out := RenderForSubscriber(content, "Alice", "Smith", "alice@example.com")

	assert.Equal(t, "Hi Alice Smith, we have news for alice@example.com", out)
}

func TestRenderForSubscriberLeavesPlainContentAlone(t *testing.T) {
	content := "<p>No placeholders here</p>"
	assert.Equal(t, content, RenderForSubscriber(content, "A", "B", "c@d.com"))
}

func TestInjectTrackingAppendsPixelAndFooter(t *testing.T) {
	out := InjectTracking("<p>Hello</p>", testBase, testShortcode, testToken)

	assert.Contains(t, out, testBase+"/t/open/"+testShortcode+"/"+testToken)
	assert.Contains(t, out, testBase+"/t/unsubscribe/"+testShortcode+"/"+testToken)
	assert.Contains(t, out, "Unsubscribe")
	assert.True(t, strings.HasPrefix(out, "<p>Hello</p>"))
}

func TestInjectTrackingRewritesLinks(t *testing.T) {
	body := `<a href="https://example.com/read?id=1">Read</a> and <a href="https://example.com/more">More</a>`
	out := InjectTracking(body, testBase, testShortcode, testToken)

	assert.NotContains(t, out, `href="https://example.com/read?id=1"`)
	assert.NotContains(t, out, `href="https://example.com/more"`)

	escaped := url.QueryEscape("https://example.com/read?id=1")
	assert.Contains(t, out, testBase+"/t/click/"+testShortcode+"/"+testToken+"?url="+escaped)
}

func TestGenerateClickTrackURLEscapesTarget(t *testing.T) {
	tracked := GenerateClickTrackURL(testBase, testShortcode, testToken, "https://example.com/a?b=c&d=e")

	parsed, err := url.Parse(tracked)
	require.NoError(t, err)
	assert.Equal(t, "/t/click/"+testShortcode+"/"+testToken, parsed.Path)
	assert.Equal(t, "https://example.com/a?b=c&d=e", parsed.Query().Get("url"))
}
