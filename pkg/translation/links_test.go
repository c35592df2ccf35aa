package translation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectLinks(t *testing.T) {
	t.Run("images and links use separate counters", func(t *testing.T) {
		input := "See https://a.com/x.png and https://a.com/x.png again, also https://b.com"
		protected, links, images := ProtectLinks(input)

		assert.Equal(t, []string{"https://a.com/x.png"}, images)
		assert.Equal(t, []string{"https://b.com"}, links)
		assert.Equal(t, 2, strings.Count(protected, "[IMAGE_0]"))
		assert.Equal(t, 1, strings.Count(protected, "[LINK_0]"))
		assert.Equal(t, "See [IMAGE_0] and [IMAGE_0] again, also [LINK_0]", protected)
	})

	t.Run("first occurrence wins", func(t *testing.T) {
		protected, links, _ := ProtectLinks("https://a.com https://b.com https://a.com https://c.com")
		assert.Equal(t, []string{"https://a.com", "https://b.com", "https://c.com"}, links)
		assert.Equal(t, "[LINK_0] [LINK_1] [LINK_0] [LINK_2]", protected)
	})

	t.Run("trailing punctuation is not part of the url", func(t *testing.T) {
		_, links, _ := ProtectLinks("Visit https://example.com/path. Or (https://example.org/a?b=1), fine!")
		assert.Equal(t, []string{"https://example.com/path", "https://example.org/a?b=1"}, links)
	})

	t.Run("image with query string", func(t *testing.T) {
		_, links, images := ProtectLinks("banner https://cdn.x.com/a.JPG?w=100 end")
		assert.Equal(t, []string{"https://cdn.x.com/a.JPG?w=100"}, images)
		assert.Empty(t, links)
	})

	t.Run("extension must end the path", func(t *testing.T) {
		_, links, images := ProtectLinks("see https://x.com/a.png/page now")
		assert.Empty(t, images)
		assert.Equal(t, []string{"https://x.com/a.png/page"}, links)
	})

	t.Run("url free text is normalized", func(t *testing.T) {
		protected, links, images := ProtectLinks("  Hello,\n\n 世界!   Price: $5 #tag  ")
		assert.Equal(t, "Hello, 世界! Price: 5 tag", protected)
		assert.Empty(t, links)
		assert.Empty(t, images)
		assert.NotNil(t, links)
		assert.NotNil(t, images)
	})

	t.Run("balanced parentheses stay in the url", func(t *testing.T) {
		protected, links, _ := ProtectLinks("https://en.wikipedia.org/wiki/Go_(programming_language) ok")
		assert.Equal(t, []string{"https://en.wikipedia.org/wiki/Go_(programming_language)"}, links)
		assert.Equal(t, "[LINK_0] ok", protected)

		_, links, _ = ProtectLinks("(see https://x.com/a_(b)), then")
		assert.Equal(t, []string{"https://x.com/a_(b)"}, links)
	})

	t.Run("punctuation inside a url is kept", func(t *testing.T) {
		_, links, _ := ProtectLinks("go to https://a.com/x...y!? now")
		assert.Equal(t, []string{"https://a.com/x...y"}, links)
	})

	t.Run("long punctuation runs stay linear", func(t *testing.T) {
		input := "see https://a" + strings.Repeat(".", 100000) + "x end"
		done := make(chan []string, 1)
		go func() {
			_, links, _ := ProtectLinks(input)
			done <- links
		}()

		select {
		case links := <-done:
			require.Len(t, links, 1)
			assert.True(t, strings.HasSuffix(links[0], ".x"))
		case <-time.After(5 * time.Second):
			t.Fatal("ProtectLinks did not finish")
		}
	})

	t.Run("existing placeholder text is neutralized", func(t *testing.T) {
		protected, links, _ := ProtectLinks("Reply to ticket [LINK_7] or (連結2) then visit https://a.com today")
		assert.Equal(t, []string{"https://a.com"}, links)
		assert.Equal(t, "Reply to ticket [LINK-7] or (連結-2) then visit [LINK_0] today", protected)

		linkOrdinals, imageOrdinals := ScanPlaceholders(protected)
		assert.Equal(t, []int{0}, linkOrdinals)
		assert.Empty(t, imageOrdinals)

		restored := RestoreLinks(protected, links, nil)
		assert.Equal(t, "Reply to ticket [LINK-7] or (連結-2) then visit [連結1] today\n\n"+
			LinkSectionHeading+"\n\n1. https://a.com\n", restored)
	})

	t.Run("empty input", func(t *testing.T) {
		protected, links, images := ProtectLinks("")
		assert.Equal(t, "", protected)
		assert.Empty(t, links)
		assert.Empty(t, images)
	})
}

func TestScanPlaceholdersOrdinalStability(t *testing.T) {
	protected, links, images := ProtectLinks(
		"a https://one.com b https://two.com/pic.gif c https://one.com d https://three.com e https://two.com/pic.gif")
	require.Len(t, links, 2)
	require.Len(t, images, 1)

	linkOrdinals, imageOrdinals := ScanPlaceholders(protected)
	assert.Equal(t, []int{0, 1}, linkOrdinals)
	assert.Equal(t, []int{0}, imageOrdinals)

	for i, url := range links {
		assert.Contains(t, protected, Placeholder{Kind: KindGeneral, Index: i}.String(), url)
	}
}

func TestRestoreLinks(t *testing.T) {
	t.Run("localized placeholders use display numbering", func(t *testing.T) {
		got := RestoreLinks("refs [連結1] and [連結1] again", []string{"https://x.com", "https://y.com"}, nil)
		assert.Equal(t, "refs [連結1] and [連結1] again\n\n"+LinkSectionHeading+"\n\n1. https://x.com\n", got)
	})

	t.Run("round trip keeps every url", func(t *testing.T) {
		input := "Read https://a.com/doc and look at https://a.com/img.webp then https://b.com/x"
		protected, links, images := ProtectLinks(input)
		got := RestoreLinks(protected, links, images)

		assert.Equal(t, "Read [連結1] and look at [圖片1] then [連結2]\n\n"+
			ImageSectionHeading+"\n\n1. ![圖片1](https://a.com/img.webp)\n\n\n"+
			LinkSectionHeading+"\n\n1. https://a.com/doc\n2. https://b.com/x\n", got)
	})

	t.Run("only surviving ordinals are numbered", func(t *testing.T) {
		links := []string{"https://a.com", "https://b.com", "https://c.com"}
		got := RestoreLinks("只剩 [LINK_2] 了", links, nil)
		assert.Equal(t, "只剩 [連結1] 了\n\n"+LinkSectionHeading+"\n\n1. https://c.com\n", got)
	})

	t.Run("repeated placeholder yields one entry", func(t *testing.T) {
		got := RestoreLinks("[LINK_0] x [LINK_0] y [ LINK _ 0 ]", []string{"https://a.com"}, nil)
		assert.Equal(t, "[連結1] x [連結1] y [連結1]\n\n"+LinkSectionHeading+"\n\n1. https://a.com\n", got)
	})

	t.Run("no placeholders only collapses whitespace", func(t *testing.T) {
		got := RestoreLinks("你好   世界\n\n再見", []string{"https://a.com"}, []string{"https://a.com/i.png"})
		assert.Equal(t, "你好 世界 再見", got)
	})

	t.Run("out of range placeholders are dropped", func(t *testing.T) {
		got := RestoreLinks("text [LINK_5] more [IMAGE_0] (連結 0)", []string{"https://a.com"}, nil)
		assert.Equal(t, "text more", got)
	})

	t.Run("spelling variants", func(t *testing.T) {
		links := []string{"https://a.com", "https://b.com"}
		images := []string{"https://a.com/i.png"}
		got := RestoreLinks("(連結 1) 與 （連結２） 及 [link_0] 和 【圖片1】", links, images)

		assert.Equal(t, "[連結1] 與 [連結2] 及 [連結1] 和 [圖片1]\n\n"+
			ImageSectionHeading+"\n\n1. ![圖片1](https://a.com/i.png)\n\n\n"+
			LinkSectionHeading+"\n\n1. https://a.com\n2. https://b.com\n", got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", RestoreLinks("", nil, nil))
	})
}

func TestBuildReferences(t *testing.T) {
	links := []string{"https://a.com", "https://b.com", "https://c.com"}
	images := []string{"https://a.com/1.png", "https://a.com/2.png"}

	linkRefs, imageRefs := BuildReferences("[LINK_2] [IMAGE_1] [LINK_0] [LINK_2]", links, images)

	require.Len(t, linkRefs, 2)
	assert.Equal(t, 1, linkRefs[0].Number)
	assert.Equal(t, 0, linkRefs[0].Entry.Ordinal)
	assert.Equal(t, 2, linkRefs[1].Number)
	assert.Equal(t, []string{"https://a.com", "https://c.com"}, linkRefs.URLs())

	require.Len(t, imageRefs, 1)
	assert.Equal(t, KindImage, imageRefs[0].Entry.Kind)
	assert.Equal(t, "https://a.com/2.png", imageRefs[0].Entry.URL)
}

func TestSplitReferenceSections(t *testing.T) {
	t.Run("with sections", func(t *testing.T) {
		text := RestoreLinks("正文 [LINK_0] [IMAGE_0]", []string{"https://a.com"}, []string{"https://a.com/i.png"})
		body, sections := SplitReferenceSections(text)
		assert.Equal(t, "正文 [連結1] [圖片1]", body)
		assert.True(t, strings.HasPrefix(sections, "\n\n"+ImageSectionHeading))
		assert.Equal(t, text, body+sections)
	})

	t.Run("without sections", func(t *testing.T) {
		body, sections := SplitReferenceSections("只有正文")
		assert.Equal(t, "只有正文", body)
		assert.Empty(t, sections)
	})
}

func TestPlaceholderString(t *testing.T) {
	assert.Equal(t, "[LINK_3]", Placeholder{Kind: KindGeneral, Index: 3}.String())
	assert.Equal(t, "[IMAGE_0]", Placeholder{Kind: KindImage, Index: 0}.String())
	assert.Equal(t, "image", KindImage.String())
	assert.Equal(t, "link", KindGeneral.String())
}
