package docsource

import "testing"

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "list items become bullets",
			in:   "<p>Topics</p><ul><li>Cart API</li><li><strong>Login</strong> flow</li></ul>",
			want: "Topics\n- Cart API\n- Login flow",
		},
		{
			name: "inline code",
			in:   "<p>Call <code>order-status</code> first</p>",
			want: "Call `order-status` first",
		},
		{
			name: "entities unescaped",
			in:   "<p>R&amp;D &lt;team&gt;</p>",
			want: "R&D <team>",
		},
		{
			name: "empty code dropped",
			in:   "<p>a<code> </code>b</p>",
			want: "ab",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTMLToText(tt.in); got != tt.want {
				t.Errorf("HTMLToText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
