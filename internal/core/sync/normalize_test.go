package sync

import "testing"

func TestNormalizeRendered(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"lone shortcode unwrapped",
			"<p>[gallery ids=\"1,2\"]</p>",
			"[gallery ids=\"1,2\"]",
		},
		{
			"shortcode with surrounding markup kept",
			"<p>intro</p>\n<p>[gallery]</p>",
			"<p>intro</p>\n<p>[gallery]</p>",
		},
		{
			"double-encoded numeric entity",
			"A &amp;#8211; B",
			"A &#8211; B",
		},
		{
			"double-encoded named entities",
			"it&amp;rsquo;s &amp;nbsp;here",
			"it&rsquo;s &nbsp;here",
		},
		{
			"crlf and blank run collapse",
			"a\r\n\r\n\r\n\r\nb",
			"a\n\nb",
		},
		{
			"surrounding whitespace trimmed",
			"  <p>x</p>\n\n",
			"<p>x</p>",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeRendered(tc.in); got != tc.want {
				t.Errorf("NormalizeRendered(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeRenderedIdempotent(t *testing.T) {
	inputs := []string{
		"<p>[contact-form-7 id=\"7\"]</p>",
		"A &amp;#8211; B\r\n\r\n\r\nC",
		"<p>plain</p>",
	}
	for _, in := range inputs {
		once := NormalizeRendered(in)
		if twice := NormalizeRendered(once); twice != once {
			t.Errorf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}
