package forum

import (
	"fmt"
	"html"
	"html/template"
	"net/url"
	"strings"

	"prosodyweb/internal/models"
)

const treeMarker = `<span class="marker" aria-hidden="true">&#8594;</span> `

// RenderTree turns a topic's posts into the nested markup for the thread
// sidebar. Posts must arrive ordered by Left ascending, which puts every
// ancestor before its descendants and keeps siblings in insertion order —
// exactly what the storage layer's thread query returns.
//
// The walk keeps a stack of pending Right boundaries: before a post is
// emitted, every open container whose boundary falls below the post's
// Left is closed; a post with descendants stays open and pushes its own
// Right, a leaf closes immediately. Whatever is still open after the
// last post is closed in reverse order.
//
// The post matching currentID renders as plain marked text instead of a
// link. Malformed boundaries are not detected here; they produce odd
// nesting but never a failure.
func RenderTree(posts []models.Post, currentID int64) template.HTML {
	var b strings.Builder
	var levels []int

	b.WriteString(`<div class="post-tree">`)
	for _, p := range posts {
		for len(levels) > 0 && levels[len(levels)-1] < p.Left {
			b.WriteString(`</div>`)
			levels = levels[:len(levels)-1]
		}

		if p.ID == currentID {
			fmt.Fprintf(&b, `<div>%s%s by %s on %s`,
				treeMarker,
				html.EscapeString(p.Subject),
				html.EscapeString(p.Author),
				p.CreatedAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(&b, `<div><a href="/forum/%s/post/%d">%s</a> by %s on %s`,
				url.PathEscape(p.BoardSlug),
				p.ID,
				html.EscapeString(p.Subject),
				html.EscapeString(p.Author),
				p.CreatedAt.Format("2006-01-02 15:04"))
		}

		if p.Right-p.Left > 1 {
			levels = append(levels, p.Right)
		} else {
			b.WriteString(`</div>`)
		}
	}
	for range levels {
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)

	return template.HTML(b.String())
}
