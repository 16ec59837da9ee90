package render

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	html := `<table>
		<tr class="row"><td><a href="case.aspx?n=1"> Doe,
			John </a></td></tr>
		<tr class="row"><td><a href="javascript:void(0)">skip</a></td></tr>
		<tr class="row"><td><a href="mailto:clerk@court.example">mail</a></td></tr>
		<tr class="row"><td><a href="#">anchor</a></td></tr>
		<tr class="row"><td><a href="https://other.example/case/2">External</a></td></tr>
		<tr class="row"><td>no link</td></tr>
	</table>`

	links, err := ExtractLinks(html, "https://court.example/search/results.aspx", "tr.row")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, Link{Text: "Doe, John", URL: "https://court.example/search/case.aspx?n=1"}, links[0])
	assert.Equal(t, "https://other.example/case/2", links[1].URL)
}

func TestExtractLinks_NoMatches(t *testing.T) {
	links, err := ExtractLinks("<p>nothing</p>", "https://court.example", "a.case")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExtractLinks_BadPageURL(t *testing.T) {
	_, err := ExtractLinks("<a href='x'>x</a>", "://bad", "a")
	require.Error(t, err)
}

func TestResolveHref(t *testing.T) {
	base, err := url.Parse("https://court.example/a/b/list")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
	}{
		{"detail?id=3", "https://court.example/a/b/detail?id=3"},
		{"../up", "https://court.example/a/up"},
		{"/root", "https://court.example/root"},
		{"//cdn.example/x", "https://cdn.example/x"},
		{"HTTPS://court.example/abs", "https://court.example/abs"},
		{"javascript:alert(1)", ""},
		{"tel:5551234", ""},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveHref(base, tt.href))
		})
	}

	assert.Equal(t, "/x", ResolveHref(nil, "/x"))
}
