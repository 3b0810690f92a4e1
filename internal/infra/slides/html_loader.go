// internal/infra/slides/html_loader.go
package slides

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	sectionClass = "slide-section"
	// maxSlideBytes caps a slide fetched over HTTP.
	maxSlideBytes = 4 << 20
)

var ErrSlideTooLarge = fmt.Errorf("slide exceeds size limit")

// HTMLPageLoader loads slide documents from disk or over HTTP and mounts
// their sections. A slide is returned only once every section element has
// been found and parsed.
type HTMLPageLoader struct {
	baseDir  string
	client   *http.Client
	maxBytes int64
	log      *logrus.Entry
}

func NewHTMLPageLoader(baseDir string, log *logrus.Entry) *HTMLPageLoader {
	return &HTMLPageLoader{
		baseDir:  baseDir,
		client:   &http.Client{Timeout: 15 * time.Second},
		maxBytes: maxSlideBytes,
		log:      log.WithField("component", "html_loader"),
	}
}

func (l *HTMLPageLoader) LoadSlide(ctx context.Context, url string) (*course.Slide, error) {
	raw, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	slide, err := ParseSlide(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse slide %s: %w", url, err)
	}
	slide.URL = url
	l.log.WithFields(logrus.Fields{"url": url, "sections": len(slide.Sections)}).Debug("Slide loaded")
	return slide, nil
}

func (l *HTMLPageLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch slide %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch slide %s: status %d", url, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read slide %s: %w", url, err)
		}
		if int64(len(data)) > l.maxBytes {
			return nil, fmt.Errorf("failed to fetch slide %s: %w", url, ErrSlideTooLarge)
		}
		return data, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := url
	if !filepath.IsAbs(name) {
		name = filepath.Join(l.baseDir, filepath.FromSlash(url))
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read slide %s: %w", url, err)
	}
	return data, nil
}

// ParseSlide extracts the slide title, intro text and sections from an HTML
// document. Sections are elements with the "slide-section" class.
func ParseSlide(raw []byte) (*course.Slide, error) {
	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}

	slide := &course.Slide{}
	if t := findFirst(doc, func(n *html.Node) bool { return n.Data == "title" }); t != nil {
		slide.Title = textOf(t)
	}

	var intro []string
	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, sectionClass):
				sec, err := parseSection(n)
				if err != nil {
					return err
				}
				slide.Sections = append(slide.Sections, sec)
				return nil
			case n.Data == "script" || n.Data == "style" || n.Data == "head":
				return nil
			}
		}
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				intro = append(intro, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc); err != nil {
		return nil, err
	}
	slide.Body = strings.Join(intro, " ")
	if slide.Title == "" {
		if h := findFirst(doc, isHeading); h != nil {
			slide.Title = textOf(h)
		}
	}
	return slide, nil
}

func parseSection(n *html.Node) (course.SectionElement, error) {
	sec := course.SectionElement{
		ID:       attr(n, "data-section-id"),
		Title:    attr(n, "data-title"),
		Function: attr(n, "data-function"),
		Text:     textOf(n),
	}
	if sec.ID == "" {
		sec.ID = attr(n, "id")
	}
	if sec.Title == "" {
		if h := findFirst(n, isHeading); h != nil {
			sec.Title = textOf(h)
		}
	}

	sec.MediaSource = attr(n, "data-audio")
	if sec.MediaSource == "" {
		if m := findFirst(n, func(c *html.Node) bool { return c.Data == "audio" || c.Data == "video" }); m != nil {
			sec.MediaSource = attr(m, "src")
			if sec.MediaSource == "" {
				if src := findFirst(m, func(c *html.Node) bool { return c.Data == "source" }); src != nil {
					sec.MediaSource = attr(src, "src")
				}
			}
		}
	}

	switch c := course.CompletionTrigger(attr(n, "data-complete")); c {
	case "":
	case course.CompleteOnMedia, course.CompleteOnAction:
		sec.CompleteOn = c
	default:
		return sec, fmt.Errorf("section %q: unknown data-complete %q", sec.ID, c)
	}

	if raw := attr(n, "data-cues"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sec.Cues); err != nil {
			return sec, fmt.Errorf("section %q: data-cues: %w", sec.ID, err)
		}
	}
	if raw := attr(n, "data-on-end"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sec.OnEnd); err != nil {
			return sec, fmt.Errorf("section %q: data-on-end: %w", sec.ID, err)
		}
	}
	return sec, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isHeading(n *html.Node) bool {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// findFirst returns the first element below n (n included) matching match.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// textOf collapses the visible text below n.
func textOf(n *html.Node) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return
		}
		if c.Type == html.TextNode {
			if s := strings.Join(strings.Fields(c.Data), " "); s != "" {
				parts = append(parts, s)
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.Join(parts, " ")
}
