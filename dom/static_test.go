package dom

import (
	"context"
	"strings"
	"testing"
)

const fixture = `<html><head><title>t</title><script>var x = 1;</script></head>
<body>
  <div class="hero">  Big
     sale </div>
  <div style="display: none"><a href="/hidden">Hidden link</a></div>
  <a href="/about">About</a>
  <a href="https://other.example/x">Other</a>
  <a name="anchor-only">No href</a>
  <img src="img/a.png" alt="A">
  <p hidden>secret</p>
</body></html>`

func parse(t *testing.T) *StaticDocument {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(fixture), "https://site.example/base/")
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	return doc
}

func TestQueryAll(t *testing.T) {
	doc := parse(t)
	tests := []struct {
		selector string
		want     int
	}{
		{"a[href]", 3},
		{"a", 4},
		{`[class*="hero"], img[src]`, 2},
		{"section", 0},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			els, err := doc.QueryAll(context.Background(), tt.selector)
			if err != nil {
				t.Fatalf("QueryAll: %v", err)
			}
			if len(els) != tt.want {
				t.Errorf("got %d elements, want %d", len(els), tt.want)
			}
		})
	}
}

func TestQueryAllGroupInDocumentOrder(t *testing.T) {
	doc := parse(t)
	els, err := doc.QueryAll(context.Background(), `img[src], a[href], [class*="hero"]`)
	if err != nil {
		t.Fatalf("QueryAll: %v", err)
	}
	var tags []string
	for _, el := range els {
		tag, err := el.TagName()
		if err != nil {
			t.Fatalf("TagName: %v", err)
		}
		tags = append(tags, tag)
	}
	want := "div a a a img"
	if got := strings.Join(tags, " "); got != want {
		t.Errorf("tags = %q, want %q", got, want)
	}
}

func TestQueryAllInvalidSelector(t *testing.T) {
	doc := parse(t)
	if _, err := doc.QueryAll(context.Background(), "a[href"); err == nil {
		t.Error("expected error for invalid selector")
	}
}

func TestQueryAllCanceled(t *testing.T) {
	doc := parse(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := doc.QueryAll(ctx, "a"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestElementAccessors(t *testing.T) {
	doc := parse(t)
	ctx := context.Background()

	hero, _ := doc.QueryAll(ctx, ".hero")
	if text, _ := hero[0].Text(); text != "Big sale" {
		t.Errorf("Text = %q, want %q", text, "Big sale")
	}
	if tag, _ := hero[0].TagName(); tag != "div" {
		t.Errorf("TagName = %q, want div", tag)
	}
	if vis, _ := hero[0].Visible(); !vis {
		t.Error("hero should be visible")
	}

	links, _ := doc.QueryAll(ctx, "a[href]")
	wantURLs := []string{
		"https://site.example/hidden",
		"https://site.example/about",
		"https://other.example/x",
	}
	for i, want := range wantURLs {
		got, err := links[i].ResolvedURL("href")
		if err != nil {
			t.Fatalf("ResolvedURL: %v", err)
		}
		if got != want {
			t.Errorf("link %d: ResolvedURL = %q, want %q", i, got, want)
		}
	}
	if vis, _ := links[0].Visible(); vis {
		t.Error("link inside display:none should not be visible")
	}

	imgs, _ := doc.QueryAll(ctx, "img")
	if src, _ := imgs[0].ResolvedURL("src"); src != "https://site.example/base/img/a.png" {
		t.Errorf("src = %q", src)
	}
	if alt, ok, _ := imgs[0].Attr("alt"); !ok || alt != "A" {
		t.Errorf("alt = %q, %v", alt, ok)
	}
	if got, _ := imgs[0].ResolvedURL("longdesc"); got != "" {
		t.Errorf("absent attribute should resolve to empty, got %q", got)
	}

	hidden, _ := doc.QueryAll(ctx, "p")
	if vis, _ := hidden[0].Visible(); vis {
		t.Error("p[hidden] should not be visible")
	}
}

func TestDocumentText(t *testing.T) {
	doc := parse(t)
	text := doc.Text()
	if !strings.Contains(text, "Big sale") {
		t.Errorf("Text() = %q, missing body text", text)
	}
}
