package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transcriptPage = `<html>
<head><title>Alphabet Q3 2025 Earnings Call Transcript</title></head>
<body>
<div id="nav"><a href="/">Home</a> | <a href="/markets">Markets</a></div>
<div id="article" class="article-body">
<p>Good afternoon, everyone, and welcome to the Alphabet third quarter 2025 earnings conference call. Revenue grew 16% year over year, driven by Search, YouTube, and Cloud.</p>
<p>Cloud revenue grew 34%, with operating margin expanding to 23.7%, reflecting strong demand for AI infrastructure, and we now expect capital expenditures of $91 billion to $93 billion for the year.</p>
<p>Questions and answers. Our first question comes from an analyst at a large bank, who asked about depreciation headwinds, margin dynamics, and the pace of AI monetization.</p>
</div>
<div id="footer">Copyright, all rights reserved, terms of use, privacy policy.</div>
</body>
</html>`

func TestExtractTranscriptText(t *testing.T) {
	text, err := ExtractTranscriptText(transcriptPage)
	require.NoError(t, err)

	assert.Contains(t, text, "Revenue grew 16% year over year")
	assert.Contains(t, text, "Cloud revenue grew 34%")
	assert.Contains(t, text, "\n\n")
	assert.NotContains(t, text, "<p>")

	sections := ParseTranscript(text)
	require.Len(t, sections, 2)
	assert.True(t, strings.HasPrefix(sections[1].Text, "Questions and answers."))
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "a b c", collapseSpaces("  a\n\tb   c "))
	assert.Equal(t, "", collapseSpaces(" \n "))
}
