package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQueryRejectsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", `<>"\`} {
		_, err := SearchQuery(raw)
		require.ErrorIs(t, err, ErrEmptyQuery, "query %q", raw)
	}
}

func TestSearchQueryTruncatesTo500(t *testing.T) {
	got, err := SearchQuery(strings.Repeat("a", 600))
	require.NoError(t, err)
	assert.Len(t, got, MaxQueryRunes)
}

func TestSearchQueryStripsDangerousCharacters(t *testing.T) {
	got, err := SearchQuery(`  <script>"Genesis\1"</script>  `)
	require.NoError(t, err)
	assert.Equal(t, "scriptGenesis1/script", got)
}

func TestFilenameSanitizesAndForcesExtension(t *testing.T) {
	got, err := Filename("my notes!.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, NoteExtension))
	assert.False(t, strings.ContainsAny(got, `<>:"/\|?*`))

	again, err := Filename(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestFilenameIdempotentAcrossInputs(t *testing.T) {
	inputs := []string{
		"report",
		"a/b\\c:d*e?f|g<h>i\"j",
		"../../etc/passwd",
		".md",
		"notes.md",
		strings.Repeat("x", 200) + ".md",
		strings.Repeat("y", 95) + " . .txt",
	}
	for _, raw := range inputs {
		first, err := Filename(raw)
		require.NoError(t, err, raw)
		second, err := Filename(first)
		require.NoError(t, err, raw)
		assert.Equal(t, first, second, raw)
		assert.LessOrEqual(t, len([]rune(strings.TrimSuffix(first, NoteExtension))), MaxFilenameBaseRunes)
	}
}

func TestFilenameRejectsBlank(t *testing.T) {
	_, err := Filename(" .. ")
	require.ErrorIs(t, err, ErrEmptyFilename)
}

func TestNoteTextBounds(t *testing.T) {
	_, err := NoteText("")
	require.ErrorIs(t, err, ErrEmptyText)

	_, err = NoteText(strings.Repeat("a", MaxNoteBytes+1))
	require.ErrorIs(t, err, ErrTextTooLarge)

	got, err := NoteText("hello\x00 world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestSafeTopic(t *testing.T) {
	assert.Equal(t, "Genesis_1_creation_narrative", SafeTopic("Genesis 1: creation narrative"))
	assert.Equal(t, "research", SafeTopic("???"))
}

func TestHTTPURLSchemeAllowDeny(t *testing.T) {
	_, err := HTTPURL("https://example.com/page")
	require.NoError(t, err)
	_, err = HTTPURL("http://example.com/page")
	require.NoError(t, err)

	for _, raw := range []string{"file:///etc/passwd", "ftp://example.com", "example.com", "", "https://"} {
		_, err := HTTPURL(raw)
		require.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestPublicHTTPURLBlocksPrivateHosts(t *testing.T) {
	_, err := PublicHTTPURL("http://127.0.0.1:8080/admin")
	require.Error(t, err)
	_, err = PublicHTTPURL("http://[::1]/")
	require.ErrorIs(t, err, ErrBlockedHost)
	_, err = PublicHTTPURL("http://printer.local/")
	require.ErrorIs(t, err, ErrBlockedHost)
	_, err = PublicHTTPURL("https://example.com:8443/")
	require.ErrorIs(t, err, ErrBlockedPort)
	_, err = PublicHTTPURL("https://example.com/ok")
	require.NoError(t, err)
}

func TestSecureDialContextRefusesInternalTargets(t *testing.T) {
	dial := SecureDialContext(nil)
	for _, address := range []string{"127.0.0.1:80", "[::1]:443", "10.0.0.8:80", "169.254.169.254:80", "localhost:80", "db.internal:443"} {
		_, err := dial(context.Background(), "tcp", address)
		require.ErrorIs(t, err, ErrBlockedHost, address)
	}
	_, err := dial(context.Background(), "tcp", "example.com")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestInternalHost(t *testing.T) {
	for host, want := range map[string]bool{
		"LOCALHOST":         true,
		"api.localhost":     true,
		"192.168.1.4":       true,
		"::ffff:127.0.0.1":  true,
		"0.0.0.0":           true,
		"ff02::1":           true,
		"93.184.216.34":     false,
		"2606:4700::6810:1": false,
		"example.com":       false,
		"localhost.example": false,
	} {
		assert.Equal(t, want, internalHost(host), host)
	}
}
